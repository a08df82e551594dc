package service

import (
	"github.com/viant/entangle/reconcile"
)

// TangleRequest defines inputs for one-way document-to-target expansion.
type TangleRequest struct {
	Documents []string
	Force     bool
	Logf      func(format string, args ...any)
}

// StitchRequest defines inputs for one-way target-to-document recovery.
type StitchRequest struct {
	Documents []string
	Logf      func(format string, args ...any)
}

// SyncRequest defines inputs for a bidirectional pass.
type SyncRequest struct {
	// Documents narrows the pass; empty means everything configured.
	Documents []string
	Logf      func(format string, args ...any)
}

// TargetReport records the outcome for one tangled target.
type TargetReport struct {
	Path    string
	Written bool
	Held    bool
	Err     error
}

// DocumentReport records the outcome of one document's pass.
type DocumentReport struct {
	Path      string
	Applied   int
	Targets   []TargetReport
	Conflicts []*reconcile.ConflictError
	Err       error
}

// PassReport aggregates per-document outcomes of one pass. Per-document
// failures never abort unrelated documents.
type PassReport struct {
	Documents []DocumentReport
}

// Written returns the paths of all targets rewritten during the pass.
func (r *PassReport) Written() []string {
	var result []string
	for _, doc := range r.Documents {
		for _, target := range doc.Targets {
			if target.Written {
				result = append(result, target.Path)
			}
		}
	}
	return result
}

// Conflicts returns all conflicts detected during the pass.
func (r *PassReport) Conflicts() []*reconcile.ConflictError {
	var result []*reconcile.ConflictError
	for _, doc := range r.Documents {
		result = append(result, doc.Conflicts...)
	}
	return result
}

// Err returns the first document-level failure, if any.
func (r *PassReport) Err() error {
	for _, doc := range r.Documents {
		if doc.Err != nil {
			return doc.Err
		}
	}
	return nil
}
