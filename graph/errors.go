package graph

import (
	"fmt"
	"strings"
)

// CycleError indicates a circular fragment reference. Path lists the node
// names on the reference chain, ending with the revisited node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: circular reference: %s", strings.Join(e.Path, " -> "))
}

// UnresolvedError indicates a reference to a fragment name with no matching
// node. It blocks only the target being expanded.
type UnresolvedError struct {
	Name     string
	Referrer string
}

func (e *UnresolvedError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("graph: unresolved reference <<%s>>", e.Name)
	}
	return fmt.Sprintf("graph: unresolved reference <<%s>> in %s", e.Name, e.Referrer)
}

// TargetConflictError indicates two same-named blocks declaring different
// target files.
type TargetConflictError struct {
	Name    string
	Targets []string
}

func (e *TargetConflictError) Error() string {
	return fmt.Sprintf("graph: fragment %q declares conflicting targets: %s", e.Name, strings.Join(e.Targets, ", "))
}
