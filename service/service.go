package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/entangle/fingerprint"
	"github.com/viant/entangle/matching"
	"github.com/viant/entangle/matching/option"
	"github.com/viant/entangle/state"
	"github.com/viant/entangle/state/sqlitestate"
	"github.com/viant/entangle/tangle"
)

// Option configures the Service.
type Option func(*Service)

// WithStore sets an existing state store.
func WithStore(store state.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithMatcher sets a custom document matcher.
func WithMatcher(matcher *matching.Manager) Option {
	return func(s *Service) { s.matcher = matcher }
}

// WithFS sets a custom afs service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// Service runs tangle, stitch and bidirectional sync passes over a literate
// project.
type Service struct {
	config     *Config
	fs         afs.Service
	store      state.Store
	tangler    *tangle.Tangler
	matcher    *matching.Manager
	ownedStore bool
	pending    *fingerprint.Map[string, bool]
}

// New creates a Service for a project config.
func New(config *Config, opts ...Option) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("service: config required")
	}
	s := &Service{
		config:  config,
		fs:      afs.New(),
		pending: fingerprint.NewMap[string, bool](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tangler = tangle.NewWithFS(s.fs)
	if s.matcher == nil {
		var matcherOptions []option.Option
		if len(config.Include) > 0 {
			matcherOptions = append(matcherOptions, option.WithInclusionPatterns(config.Include...))
		}
		if len(config.Exclude) > 0 {
			matcherOptions = append(matcherOptions, option.WithExclusionPatterns(config.Exclude...))
		}
		if config.MaxSize > 0 {
			matcherOptions = append(matcherOptions, option.WithMaxDocumentSize(config.MaxSize))
		}
		s.matcher = matching.New(matcherOptions...)
	}
	if s.store == nil {
		if config.State.DSN == "" {
			return nil, fmt.Errorf("service: state dsn required")
		}
		store, err := sqlitestate.New(sqlitestate.WithDSN(config.State.DSN))
		if err != nil {
			return nil, err
		}
		s.store = store
		s.ownedStore = true
	}
	return s, nil
}

// Close releases the owned state store (if any).
func (s *Service) Close() error {
	if s.ownedStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Config returns the project configuration the service was built with.
func (s *Service) Config() *Config { return s.config }

// Matcher returns the document matcher in effect.
func (s *Service) Matcher() *matching.Manager { return s.matcher }

// OnFileChanged marks a path dirty; the next PendingDocuments call resolves
// it to the documents a pass should cover.
func (s *Service) OnFileChanged(path string) {
	marked := true
	s.pending.Set(path, &marked)
}

// PendingDocuments drains changed paths recorded by OnFileChanged and maps
// them to document paths: a changed document names itself, a changed target
// names its owning document via recorded state. Unattributable paths widen
// the pass to everything configured (nil result).
func (s *Service) PendingDocuments(ctx context.Context) ([]string, bool, error) {
	changed := s.pending.Drain()
	if len(changed) == 0 {
		return nil, false, nil
	}
	snapshot, err := s.store.Load(ctx)
	if err != nil {
		return nil, true, err
	}
	seen := map[string]bool{}
	var documents []string
	for _, path := range changed {
		if _, ok := snapshot.Documents[path]; ok {
			if !seen[path] {
				seen[path] = true
				documents = append(documents, path)
			}
			continue
		}
		if target, ok := snapshot.Target(path); ok {
			if !seen[target.Document] {
				seen[target.Document] = true
				documents = append(documents, target.Document)
			}
			continue
		}
		if s.matcher.IsDocument(path, 0) {
			if !seen[path] {
				seen[path] = true
				documents = append(documents, path)
			}
			continue
		}
		// Unknown path: possibly a brand-new target; cover everything.
		return nil, true, nil
	}
	sort.Strings(documents)
	return documents, true, nil
}

// documents resolves the pass scope: explicit paths or the configured roots,
// expanded recursively through the matcher.
func (s *Service) documents(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = s.config.Documents
	}
	seen := map[string]bool{}
	var result []string
	for _, path := range paths {
		if err := s.collect(ctx, path, seen, &result); err != nil {
			return nil, err
		}
	}
	sort.Strings(result)
	return result, nil
}

func (s *Service) collect(ctx context.Context, location string, seen map[string]bool, result *[]string) error {
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		var err error
		norm, err = filepath.Abs(norm)
		if err != nil {
			return fmt.Errorf("service: resolving %s: %w", location, err)
		}
	}
	objects, err := s.fs.List(ctx, norm)
	if err != nil {
		return err
	}
	for _, object := range objects {
		objectPath := url.Path(object.URL())
		if object.IsDir() {
			if url.Equals(objectPath, norm) || url.Equals(object.URL(), norm) {
				continue
			}
			if s.matcher.IsSkippedDir(objectPath) {
				continue
			}
			if err := s.collect(ctx, url.Join(norm, object.Name()), seen, result); err != nil {
				return err
			}
			continue
		}
		if !s.matcher.IsDocument(objectPath, int(object.Size())) {
			continue
		}
		if seen[objectPath] {
			continue
		}
		seen[objectPath] = true
		*result = append(*result, objectPath)
	}
	return nil
}

// resolveTarget returns the absolute path a relative target lands on.
func (s *Service) resolveTarget(target string) string {
	if target == "" {
		return target
	}
	if url.IsRelative(target) && s.config.TargetRoot != "" {
		return url.Path(url.Join(s.config.TargetRoot, target))
	}
	return url.Path(target)
}
