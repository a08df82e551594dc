package reconcile

import (
	"testing"

	"github.com/viant/entangle/document"
	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/stitch"
)

func hashOf(t *testing.T, body string) uint64 {
	t.Helper()
	hash, err := fingerprint.HashString(body)
	if err != nil {
		t.Fatalf("HashString failed: %v", err)
	}
	return hash
}

func TestResolve(t *testing.T) {
	blockID := document.BlockID{Name: "greeting"}
	stored := hashOf(t, "\"hi\"")
	edited := hashOf(t, "\"hello\"")

	testCases := []struct {
		description string
		input       Input
		state       State
		applied     int
		conflicts   int
	}{
		{
			description: "untouched block stays clean",
			input: Input{
				Stored:  map[document.BlockID]uint64{blockID: stored},
				Current: map[document.BlockID]uint64{blockID: stored},
			},
			state: Clean,
		},
		{
			description: "document-side change only",
			input: Input{
				Stored:  map[document.BlockID]uint64{blockID: stored},
				Current: map[document.BlockID]uint64{blockID: edited},
			},
			state: DocDirty,
		},
		{
			description: "tangled-side change only yields an edit",
			input: Input{
				Stored:  map[document.BlockID]uint64{blockID: stored},
				Current: map[document.BlockID]uint64{blockID: stored},
				Edits:   []stitch.BlockEdit{{Block: blockID, Body: "\"hello\""}},
			},
			state:   TangleDirty,
			applied: 1,
		},
		{
			description: "both sides changed is a conflict",
			input: Input{
				Document: "doc.md",
				Stored:   map[document.BlockID]uint64{blockID: stored},
				Current:  map[document.BlockID]uint64{blockID: edited},
				Edits:    []stitch.BlockEdit{{Block: blockID, Body: "\"howdy\""}},
			},
			state:     Conflict,
			conflicts: 1,
		},
		{
			description: "both sides converged on the same content",
			input: Input{
				Stored:  map[document.BlockID]uint64{blockID: stored},
				Current: map[document.BlockID]uint64{blockID: edited},
				Edits:   []stitch.BlockEdit{{Block: blockID, Body: "\"hello\""}},
			},
			state: Clean,
		},
		{
			description: "block new to the document conflicts with a target edit",
			input: Input{
				Current: map[document.BlockID]uint64{blockID: stored},
				Edits:   []stitch.BlockEdit{{Block: blockID, Body: "\"hello\""}},
			},
			state:     Conflict,
			conflicts: 1,
		},
	}

	for _, testCase := range testCases {
		out, err := Resolve(&testCase.input)
		if err != nil {
			t.Fatalf("%s: Resolve failed: %v", testCase.description, err)
		}
		if actual := out.States[blockID]; actual != testCase.state {
			t.Errorf("%s: expected state %v, got %v", testCase.description, testCase.state, actual)
		}
		if len(out.Apply) != testCase.applied {
			t.Errorf("%s: expected %d applied edits, got %+v", testCase.description, testCase.applied, out.Apply)
		}
		if len(out.Conflicts) != testCase.conflicts {
			t.Errorf("%s: expected %d conflicts, got %+v", testCase.description, testCase.conflicts, out.Conflicts)
		}
	}
}

func TestResolve_ConflictPayload(t *testing.T) {
	blockID := document.BlockID{Name: "greeting", Part: 1}
	out, err := Resolve(&Input{
		Document: "doc.md",
		Stored:   map[document.BlockID]uint64{blockID: hashOf(t, "old")},
		Current:  map[document.BlockID]uint64{blockID: hashOf(t, "new")},
		Edits:    []stitch.BlockEdit{{Block: blockID, Body: "other"}},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(out.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", out.Conflicts)
	}
	conflict := out.Conflicts[0]
	if conflict.Document != "doc.md" || conflict.Block != blockID {
		t.Errorf("conflict names wrong document or block: %+v", conflict)
	}
	if conflict.Error() == "" {
		t.Errorf("expected a descriptive message")
	}
}
