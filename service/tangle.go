package service

import (
	"context"
	"fmt"

	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/graph"
	"github.com/viant/entangle/parser"
	"github.com/viant/entangle/state"
	"golang.org/x/sync/errgroup"
)

// Tangle runs the one-way document-to-target direction: expand every
// document and write its targets, ignoring edits made on the tangled side.
// Force overwrites targets whose on-disk content is not recorded state.
func (s *Service) Tangle(ctx context.Context, req TangleRequest) (*PassReport, error) {
	paths, err := s.documents(ctx, req.Documents)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	report := &PassReport{Documents: make([]DocumentReport, len(paths))}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelDocuments)
	for i := range paths {
		i := i
		path := paths[i]
		group.Go(func() error {
			report.Documents[i] = s.tangleDocument(groupCtx, path, snapshot, req.Force, req.Logf)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) tangleDocument(ctx context.Context, path string, snapshot *state.Snapshot, force bool, logf func(string, ...any)) DocumentReport {
	report := DocumentReport{Path: path}
	data, err := s.fs.DownloadWithURL(ctx, path)
	if err != nil {
		report.Err = fmt.Errorf("service: reading %s: %w", path, err)
		return report
	}
	doc, err := parser.Parse(path, data)
	if err != nil {
		report.Err = err
		return report
	}
	g, err := graph.Build(doc)
	if err != nil {
		report.Err = err
		return report
	}
	currentBlocks, err := blockHashes(doc)
	if err != nil {
		report.Err = err
		return report
	}
	docHash, err := fingerprint.Hash(data)
	if err != nil {
		report.Err = err
		return report
	}
	docState := &state.DocumentState{
		Hash:    docHash,
		Blocks:  map[state.BlockKey]uint64{},
		Targets: map[string]state.TargetState{},
	}
	for id, hash := range currentBlocks {
		docState.Blocks[state.KeyFor(path, id)] = hash
	}
	for _, node := range g.Targets() {
		targetPath := s.resolveTarget(node.Target)
		disk, err := s.tangler.Read(ctx, s.config.TargetRoot, node.Target)
		if err != nil {
			report.Targets = append(report.Targets, TargetReport{Path: targetPath, Err: err})
			continue
		}
		stored, tracked := snapshot.Target(targetPath)
		targetReport, targetState := s.emitTarget(ctx, path, g, node, disk, tracked, force, logf)
		if targetState != nil {
			docState.Targets[targetPath] = *targetState
		} else if tracked {
			docState.Targets[targetPath] = stored
		}
		report.Targets = append(report.Targets, targetReport)
	}
	if err := s.store.Save(ctx, path, docState); err != nil {
		report.Err = fmt.Errorf("service: persisting state for %s: %w", path, err)
	}
	return report
}
