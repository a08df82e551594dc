package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/entangle/document"
	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/graph"
	"github.com/viant/entangle/state"
	"github.com/viant/entangle/tangle"
)

// blockHashes fingerprints every block body of a document.
func blockHashes(doc *document.Document) (map[document.BlockID]uint64, error) {
	result := make(map[document.BlockID]uint64, len(doc.Blocks))
	for _, block := range doc.Blocks {
		hash, err := fingerprint.HashString(block.Body)
		if err != nil {
			return nil, err
		}
		result[block.ID] = hash
	}
	return result, nil
}

// newTargetState records a tangled result as the baseline for the next pass.
func newTargetState(docPath string, result *tangle.Result) (state.TargetState, error) {
	hash, err := fingerprint.Hash(result.Data)
	if err != nil {
		return state.TargetState{}, err
	}
	encoded, err := result.Prov.Marshal()
	if err != nil {
		return state.TargetState{}, err
	}
	return state.TargetState{
		Document:   docPath,
		Hash:       hash,
		Content:    result.Data,
		Provenance: encoded,
	}, nil
}

// emitTarget expands one node and writes its target unless the on-disk file
// is an untracked stranger. It returns the target report and, when the
// expansion succeeded, the new state baseline.
func (s *Service) emitTarget(ctx context.Context, docPath string, g *graph.Graph, node *graph.Node, disk []byte, tracked, force bool, logf func(string, ...any)) (TargetReport, *state.TargetState) {
	targetPath := s.resolveTarget(node.Target)
	report := TargetReport{Path: targetPath}
	result, err := tangle.Expand(g, node.Name)
	if err != nil {
		report.Err = err
		return report, nil
	}
	if !force && !tracked && disk != nil && !bytes.Equal(disk, result.Data) {
		report.Held = true
		report.Err = fmt.Errorf("service: %s exists with unrelated content, refusing to overwrite", targetPath)
		return report, nil
	}
	if disk == nil || !bytes.Equal(disk, result.Data) {
		if err := s.tangler.Write(ctx, s.config.TargetRoot, result); err != nil {
			report.Err = err
			return report, nil
		}
		report.Written = true
		if logf != nil {
			logf("entangle: %s: tangled %s (%d bytes)", docPath, targetPath, len(result.Data))
		}
	}
	targetState, err := newTargetState(docPath, result)
	if err != nil {
		report.Err = err
		return report, nil
	}
	return report, &targetState
}
