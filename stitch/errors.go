package stitch

import (
	"fmt"

	"github.com/viant/entangle/document"
)

// AmbiguousEditError indicates a block expanded at several sites was edited
// to different bodies; no single document-side edit can represent both.
type AmbiguousEditError struct {
	Block  document.BlockID
	Target string
}

func (e *AmbiguousEditError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("stitch: conflicting edits to block %v across expansion sites", e.Block)
	}
	return fmt.Sprintf("stitch: conflicting edits to block %v across expansion sites in %s", e.Block, e.Target)
}

// StaleProvenanceError indicates the provenance map no longer matches the
// document; the caller should re-tangle before stitching.
type StaleProvenanceError struct {
	Block document.BlockID
}

func (e *StaleProvenanceError) Error() string {
	return fmt.Sprintf("stitch: provenance is stale for block %v", e.Block)
}
