package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/viant/afs/file"
	"github.com/viant/entangle/document"
	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/graph"
	"github.com/viant/entangle/parser"
	"github.com/viant/entangle/state"
	"github.com/viant/entangle/stitch"
	"github.com/viant/entangle/tangle"
	"golang.org/x/sync/errgroup"
)

// Stitch runs the one-way target-to-document direction: recover edits from
// tangled files and splice them back into documents, taking the tangled side
// as the truth. Targets themselves are not rewritten; the next tangle
// normalizes them.
func (s *Service) Stitch(ctx context.Context, req StitchRequest) (*PassReport, error) {
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
			report.Documents[i] = s.stitchDocument(groupCtx, path, snapshot, req.Logf)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) stitchDocument(ctx context.Context, path string, snapshot *state.Snapshot, logf func(string, ...any)) DocumentReport {
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

	// Stitch needs a recorded baseline; only tracked targets contribute.
	var targetPaths []string
	for targetPath, stored := range snapshot.Targets {
		if stored.Document == path {
			targetPaths = append(targetPaths, targetPath)
		}
	}
	sort.Strings(targetPaths)

	var editLists [][]stitch.BlockEdit
	for _, targetPath := range targetPaths {
		stored := snapshot.Targets[targetPath]
		disk, err := s.tangler.Read(ctx, "", targetPath)
		if err != nil || disk == nil {
			report.Targets = append(report.Targets, TargetReport{Path: targetPath, Err: err})
			continue
		}
		diskHash, err := fingerprint.Hash(disk)
		if err != nil {
			report.Targets = append(report.Targets, TargetReport{Path: targetPath, Err: err})
			continue
		}
		if diskHash == stored.Hash {
			report.Targets = append(report.Targets, TargetReport{Path: targetPath})
			continue
		}
		prov := &tangle.Provenance{}
		if err := prov.Unmarshal(stored.Provenance); err != nil {
			report.Targets = append(report.Targets, TargetReport{Path: targetPath, Err: err})
			continue
		}
		edits, err := stitch.Project(doc, stored.Content, disk, prov)
		if err != nil {
			report.Targets = append(report.Targets, TargetReport{Path: targetPath, Held: true, Err: err})
			continue
		}
		if len(edits) > 0 {
			editLists = append(editLists, edits)
			if logf != nil {
				logf("entangle: %s: recovered %d edit(s) from %s", path, len(edits), targetPath)
			}
		}
		report.Targets = append(report.Targets, TargetReport{Path: targetPath})
	}

	merged, err := stitch.Merge(editLists...)
	if err != nil {
		report.Err = err
		return report
	}
	if len(merged) > 0 {
		docEdits := make([]document.Edit, 0, len(merged))
		for _, edit := range merged {
			docEdits = append(docEdits, document.Edit{Block: edit.Block, Body: edit.Body})
		}
		newData, err := doc.Apply(docEdits)
		if err != nil {
			report.Err = err
			return report
		}
		if err := s.fs.Upload(ctx, path, file.DefaultFileOsMode, bytes.NewReader(newData)); err != nil {
			report.Err = fmt.Errorf("service: writing %s: %w", path, err)
			return report
		}
		report.Applied = len(merged)
		if logf != nil {
			logf("entangle: %s: stitched %d block(s) back", path, len(merged))
		}
		data = newData
		if doc, err = parser.Parse(path, data); err != nil {
			report.Err = err
			return report
		}
	}

	// Refresh the baseline from in-memory expansions; targets stay as the
	// user left them until the next tangle.
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
		result, err := tangle.Expand(g, node.Name)
		if err != nil {
			if stored, tracked := snapshot.Target(targetPath); tracked {
				docState.Targets[targetPath] = stored
			}
			continue
		}
		targetState, err := newTargetState(path, result)
		if err != nil {
			report.Err = err
			return report
		}
		docState.Targets[targetPath] = targetState
	}
	if err := s.store.Save(ctx, path, docState); err != nil {
		report.Err = fmt.Errorf("service: persisting state for %s: %w", path, err)
	}
	return report
}
