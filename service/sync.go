package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs/file"
	"github.com/viant/entangle/document"
	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/graph"
	"github.com/viant/entangle/parser"
	"github.com/viant/entangle/reconcile"
	"github.com/viant/entangle/state"
	"github.com/viant/entangle/stitch"
	"github.com/viant/entangle/tangle"
	"golang.org/x/sync/errgroup"
)

const maxParallelDocuments = 4

// Sync runs one bidirectional pass: recover edits from tangled targets,
// reconcile them against document-side changes, splice the safe ones back,
// re-tangle, and persist the new baseline. Documents run in parallel; all
// work on one document is serialized. Per-document failures land in the
// report without aborting the rest.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*PassReport, error) {
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
			report.Documents[i] = s.syncDocument(groupCtx, path, snapshot, req.Logf)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// blockSet records every block an expansion touches.
type blockSet map[document.BlockID]bool

func (s blockSet) Literal(block document.BlockID, _ int, _ string) { s[block] = true }
func (s blockSet) Synthetic(block document.BlockID, _ string)     { s[block] = true }

// targetPass carries per-target pass state from edit recovery to re-tangle.
type targetPass struct {
	name    string
	path    string
	stored  state.TargetState
	tracked bool
	disk    []byte
	edits   []stitch.BlockEdit
	held    bool
	err     error
}

func (s *Service) syncDocument(ctx context.Context, path string, snapshot *state.Snapshot, logf func(string, ...any)) DocumentReport {
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
	storedBlocks := snapshot.BlocksOf(path)

	// Phase 1: recover edits from every dirty tangled target.
	passes := map[string]*targetPass{}
	var editLists [][]stitch.BlockEdit
	for _, node := range g.Targets() {
		pass := &targetPass{name: node.Name, path: s.resolveTarget(node.Target)}
		passes[pass.path] = pass
		if pass.disk, err = s.tangler.Read(ctx, s.config.TargetRoot, node.Target); err != nil {
			pass.held, pass.err = true, err
			continue
		}
		pass.stored, pass.tracked = snapshot.Target(pass.path)
		if !pass.tracked || pass.disk == nil {
			continue
		}
		diskHash, err := fingerprint.Hash(pass.disk)
		if err != nil {
			pass.held, pass.err = true, err
			continue
		}
		if diskHash == pass.stored.Hash {
			continue
		}
		prov := &tangle.Provenance{}
		if err := prov.Unmarshal(pass.stored.Provenance); err != nil {
			pass.held, pass.err = true, fmt.Errorf("service: decoding provenance for %s: %w", pass.path, err)
			continue
		}
		edits, err := stitch.Project(doc, pass.stored.Content, pass.disk, prov)
		if err != nil {
			// Ambiguous or stale projections hold the target untouched.
			pass.held, pass.err = true, err
			continue
		}
		if len(edits) > 0 {
			pass.edits = edits
			editLists = append(editLists, edits)
			if logf != nil {
				logf("entangle: %s: recovered %d edit(s) from %s", path, len(edits), pass.path)
			}
		}
	}

	merged, err := stitch.Merge(editLists...)
	if err != nil {
		var ambiguous *stitch.AmbiguousEditError
		if !errors.As(err, &ambiguous) {
			report.Err = err
			return report
		}
		// Two targets disagree about the same block: apply nothing from
		// the tangled side this pass.
		report.Conflicts = append(report.Conflicts, &reconcile.ConflictError{Document: path, Block: ambiguous.Block})
		for _, pass := range passes {
			if len(pass.edits) > 0 {
				pass.held = true
			}
		}
		merged = nil
	}

	// Phase 2: reconcile against document-side changes.
	outcome, err := reconcile.Resolve(&reconcile.Input{
		Document: path,
		Stored:   storedBlocks,
		Current:  currentBlocks,
		Edits:    merged,
	})
	if err != nil {
		report.Err = err
		return report
	}
	report.Conflicts = append(report.Conflicts, outcome.Conflicts...)
	conflicted := map[document.BlockID]bool{}
	for _, conflict := range report.Conflicts {
		conflicted[conflict.Block] = true
		if logf != nil {
			logf("entangle: %s", conflict.Error())
		}
	}

	// Phase 3: splice the safe edits back into the document.
	if len(outcome.Apply) > 0 {
		docEdits := make([]document.Edit, 0, len(outcome.Apply))
		for _, edit := range outcome.Apply {
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
		report.Applied = len(outcome.Apply)
		if logf != nil {
			logf("entangle: %s: stitched %d block(s) back", path, len(outcome.Apply))
		}
		data = newData
		if doc, err = parser.Parse(path, data); err != nil {
			report.Err = err
			return report
		}
		if g, err = graph.Build(doc); err != nil {
			report.Err = err
			return report
		}
		if currentBlocks, err = blockHashes(doc); err != nil {
			report.Err = err
			return report
		}
	}

	// Phase 4: re-tangle and persist the new baseline. Conflicted blocks
	// keep their old fingerprint so the conflict re-surfaces until resolved.
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
		if conflicted[id] {
			if stored, ok := storedBlocks[id]; ok {
				docState.Blocks[state.KeyFor(path, id)] = stored
			}
			continue
		}
		docState.Blocks[state.KeyFor(path, id)] = hash
	}

	for _, node := range g.Targets() {
		targetPath := s.resolveTarget(node.Target)
		pass := passes[targetPath]
		if pass == nil {
			// Target introduced by the edits applied this pass.
			pass = &targetPass{name: node.Name, path: targetPath}
			pass.disk, _ = s.tangler.Read(ctx, s.config.TargetRoot, node.Target)
			pass.stored, pass.tracked = snapshot.Target(targetPath)
		}
		// A conflicted block freezes every target whose expansion contains
		// it, edited or not, until the conflict is resolved.
		if !pass.held && len(conflicted) > 0 {
			blocks := blockSet{}
			if err := g.Expand(node.Name, blocks); err == nil {
				for id := range blocks {
					if conflicted[id] {
						pass.held = true
						break
					}
				}
			}
		}
		if pass.held {
			if pass.tracked {
				docState.Targets[targetPath] = pass.stored
			}
			report.Targets = append(report.Targets, TargetReport{Path: targetPath, Held: true, Err: pass.err})
			continue
		}
		targetReport, targetState := s.emitTarget(ctx, path, g, node, pass.disk, pass.tracked, false, logf)
		if targetState != nil {
			docState.Targets[targetPath] = *targetState
		} else if pass.tracked {
			docState.Targets[targetPath] = pass.stored
		}
		report.Targets = append(report.Targets, targetReport)
	}

	if err := s.store.Save(ctx, path, docState); err != nil {
		report.Err = fmt.Errorf("service: persisting state for %s: %w", path, err)
	}
	return report
}
