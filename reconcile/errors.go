package reconcile

import (
	"fmt"

	"github.com/viant/entangle/document"
)

// ConflictError reports a block edited on both the document side and the
// tangled side since the last pass. The filesystem is left untouched for the
// block and its targets.
type ConflictError struct {
	Document string
	Block    document.BlockID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reconcile: block %v in %s changed on both sides", e.Block, e.Document)
}
