// Package watch runs the synchronization daemon: a filesystem watcher over
// documents and tangled targets whose events, debounced per path, trigger
// serialized sync passes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/viant/entangle/service"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher coalesces filesystem events into sync passes. Passes run one at a
// time; events arriving during a pass fold into the next one.
type Watcher struct {
	service  *service.Service
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logf     func(format string, args ...any)

	mu      sync.Mutex
	lastHit map[string]time.Time
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce sets how long a path must stay quiet before it is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogf sets the progress logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(w *Watcher) { w.logf = logf }
}

// New creates a watcher over the service's documents and target root.
func New(svc *service.Service, opts ...Option) (*Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		service:  svc,
		watcher:  notifier,
		debounce: defaultDebounce,
		lastHit:  map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if ms := svc.Config().DebounceMS; ms > 0 {
		w.debounce = time.Duration(ms) * time.Millisecond
	}
	roots := append([]string{}, svc.Config().Documents...)
	if root := svc.Config().TargetRoot; root != "" {
		roots = append(roots, root)
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = notifier.Close()
			return nil, fmt.Errorf("watch: %s: %w", root, err)
		}
	}
	return w, nil
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run blocks processing events until the context is cancelled. An initial
// pass runs before watching so the daemon starts from a consistent state.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.pass(ctx, nil); err != nil {
		return err
	}
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logf != nil {
				w.logf("entangle: watch error: %v", err)
			}
		case <-ticker.C:
			settled := w.settled(time.Now())
			if len(settled) == 0 {
				continue
			}
			for _, path := range settled {
				w.service.OnFileChanged(path)
			}
			documents, pending, err := w.service.PendingDocuments(ctx)
			if err != nil {
				if w.logf != nil {
					w.logf("entangle: watch: %v", err)
				}
				continue
			}
			if !pending {
				continue
			}
			if err := w.steadyPass(ctx, documents); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) pass(ctx context.Context, documents []string) error {
	report, err := w.service.Sync(ctx, service.SyncRequest{Documents: documents, Logf: w.logf})
	if err != nil {
		return err
	}
	if w.logf != nil {
		for _, conflict := range report.Conflicts() {
			w.logf("entangle: %s", conflict.Error())
		}
	}
	return nil
}

// steadyPass runs a pass in the steady state: transient failures are logged
// and watching continues; only cancellation stops the daemon.
func (w *Watcher) steadyPass(ctx context.Context, documents []string) error {
	err := w.pass(ctx, documents)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if w.logf != nil {
		w.logf("entangle: sync pass failed: %v", err)
	}
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.ignored(event.Name) {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
			return
		}
	}
	w.mark(event.Name, time.Now())
}

// mark records event time for debouncing.
func (w *Watcher) mark(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastHit[path] = at
}

// settled returns the paths quiet for at least the debounce window.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var result []string
	for path, at := range w.lastHit {
		if now.Sub(at) >= w.debounce {
			result = append(result, path)
			delete(w.lastHit, path)
		}
	}
	sort.Strings(result)
	return result
}

// ignored filters the watcher's own noise: the state database and its
// sidecars, lock files, and editor temp files.
func (w *Watcher) ignored(path string) bool {
	if dsn := w.service.Config().State.DSN; dsn != "" && strings.HasPrefix(path, dsn) {
		return true
	}
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".lock") && strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}
	return false
}

// addTree watches a file or directory tree, skipping excluded directories.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(root))
	}
	matcher := w.service.Matcher()
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && matcher.IsSkippedDir(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
