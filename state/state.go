// Package state persists what the last successful synchronization pass saw:
// document, block and target fingerprints plus each target's tangled bytes
// and provenance map. The next pass loads it to tell which side changed.
package state

import (
	"context"

	"github.com/viant/entangle/document"
)

// BlockKey identifies one block of one document.
type BlockKey struct {
	Document string
	Name     string
	Part     int
}

// KeyFor builds a BlockKey for a block of the given document.
func KeyFor(documentPath string, id document.BlockID) BlockKey {
	return BlockKey{Document: documentPath, Name: id.Name, Part: id.Part}
}

// BlockID converts the key back to the in-document block identity.
func (k BlockKey) BlockID() document.BlockID {
	return document.BlockID{Name: k.Name, Part: k.Part}
}

// TargetState is the recorded outcome of tangling one target: the fingerprint
// and bytes that were written and the encoded provenance map. Content is kept
// so the next pass can diff the on-disk file against what the last pass
// produced.
type TargetState struct {
	Document   string
	Hash       uint64
	Content    []byte
	Provenance []byte
}

// DocumentState is everything recorded for one document in one pass.
type DocumentState struct {
	Hash    uint64
	Blocks  map[BlockKey]uint64
	Targets map[string]TargetState
}

// Snapshot is the full recorded state across documents.
type Snapshot struct {
	Documents map[string]uint64
	Blocks    map[BlockKey]uint64
	Targets   map[string]TargetState
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Documents: map[string]uint64{},
		Blocks:    map[BlockKey]uint64{},
		Targets:   map[string]TargetState{},
	}
}

// Target returns the recorded state for a target path.
func (s *Snapshot) Target(path string) (TargetState, bool) {
	target, ok := s.Targets[path]
	return target, ok
}

// BlocksOf returns the recorded block fingerprints of one document keyed by
// block identity.
func (s *Snapshot) BlocksOf(documentPath string) map[document.BlockID]uint64 {
	result := map[document.BlockID]uint64{}
	for key, hash := range s.Blocks {
		if key.Document == documentPath {
			result[key.BlockID()] = hash
		}
	}
	return result
}

// Store loads and persists pass state. Save replaces everything recorded for
// the document atomically; a document that failed its pass keeps its previous
// record.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, documentPath string, state *DocumentState) error
	Delete(ctx context.Context, documentPath string) error
	Close() error
}
