package parser

import "fmt"

// MalformedHeaderError indicates a fenced block header whose attributes could
// not be parsed.
type MalformedHeaderError struct {
	Path   string
	Line   int
	Header string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("parser: %s:%d: malformed fragment header %q: %s", e.Path, e.Line, e.Header, e.Reason)
}

// UnterminatedError indicates a fenced block that was not closed before the
// end of input.
type UnterminatedError struct {
	Path string
	Line int
	Name string
}

func (e *UnterminatedError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("parser: %s:%d: unterminated fenced block", e.Path, e.Line)
	}
	return fmt.Sprintf("parser: %s:%d: unterminated fragment %q", e.Path, e.Line, e.Name)
}
