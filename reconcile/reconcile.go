// Package reconcile classifies concurrent changes to a document and its
// tangled targets and decides which recovered edits are safe to apply.
package reconcile

import (
	"sort"

	"github.com/viant/entangle/document"
	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/stitch"
)

// State is the synchronization state of one block.
type State int

const (
	// Clean means document and targets agree with the last recorded pass.
	Clean State = iota
	// DocDirty means the block body changed on the document side only.
	DocDirty
	// TangleDirty means a tangled target changed inside this block's
	// expansion only.
	TangleDirty
	// Conflict means both sides changed the block since the last pass.
	// Neither copy is touched; the conflict must be resolved by hand.
	Conflict
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case DocDirty:
		return "doc-dirty"
	case TangleDirty:
		return "tangle-dirty"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Input describes one document's blocks and the edits recovered from its
// tangled targets. Stored holds block fingerprints recorded by the last pass;
// Current holds fingerprints of the document as it is now.
type Input struct {
	Document string
	Stored   map[document.BlockID]uint64
	Current  map[document.BlockID]uint64
	Edits    []stitch.BlockEdit
}

// Outcome is the reconciliation decision: the per-block states, the edits
// safe to splice into the document, and the conflicts that block a target
// from being rewritten.
type Outcome struct {
	States    map[document.BlockID]State
	Apply     []stitch.BlockEdit
	Conflicts []*ConflictError
}

// Resolve runs the per-block state machine. A block changed only on the
// document side stays as the document has it. A block changed only on the
// tangled side yields an edit to apply. A block changed on both sides is a
// conflict unless both sides arrived at the same content. Edits whose body
// already matches the document are dropped.
func Resolve(in *Input) (*Outcome, error) {
	out := &Outcome{States: make(map[document.BlockID]State, len(in.Current))}
	edited := map[document.BlockID]bool{}
	for _, edit := range in.Edits {
		edited[edit.Block] = true
		current, tracked := in.Current[edit.Block]
		editHash, err := fingerprint.HashString(edit.Body)
		if err != nil {
			return nil, err
		}
		if tracked && editHash == current {
			// The target was edited to what the document already says.
			out.States[edit.Block] = Clean
			continue
		}
		if in.docDirty(edit.Block) {
			out.States[edit.Block] = Conflict
			out.Conflicts = append(out.Conflicts, &ConflictError{
				Document: in.Document,
				Block:    edit.Block,
			})
			continue
		}
		out.States[edit.Block] = TangleDirty
		out.Apply = append(out.Apply, edit)
	}
	for id := range in.Current {
		if edited[id] {
			continue
		}
		if in.docDirty(id) {
			out.States[id] = DocDirty
		} else {
			out.States[id] = Clean
		}
	}
	sort.Slice(out.Conflicts, func(i, j int) bool {
		return out.Conflicts[i].Block.String() < out.Conflicts[j].Block.String()
	})
	return out, nil
}

// docDirty reports whether the document-side body changed since the last
// recorded pass. Blocks with no recorded fingerprint are new and count as
// document-side changes.
func (in *Input) docDirty(id document.BlockID) bool {
	current, tracked := in.Current[id]
	if !tracked {
		// The block vanished from the document while its expansion was
		// edited; only the document side can say what happens next.
		return true
	}
	stored, recorded := in.Stored[id]
	if !recorded {
		return true
	}
	return stored != current
}
