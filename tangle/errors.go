package tangle

import "fmt"

// WriteError indicates a target file could not be written. The tangled
// result stays in memory so a retry does not require re-tangling.
type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("tangle: failed to write %s: %v", e.Path, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}
