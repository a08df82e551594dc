// Package tangle expands a document's reference graph into target files and
// records byte-level provenance for every character emitted.
package tangle

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/entangle/document"
	"github.com/viant/entangle/graph"
)

// Result holds the in-memory outcome of tangling one target. It stays valid
// after a failed write so a retry does not require re-tangling.
type Result struct {
	Node   string
	Target string
	Data   []byte
	Prov   Provenance
}

// Expand tangles the named node into its target content and provenance map.
// Identical document state yields byte-identical output.
func Expand(g *graph.Graph, name string) (*Result, error) {
	node, ok := g.Node(name)
	if !ok {
		return nil, &graph.UnresolvedError{Name: name}
	}
	emitter := &provEmitter{}
	if err := g.Expand(name, emitter); err != nil {
		return nil, err
	}
	if size := len(emitter.data); size > 0 && emitter.data[size-1] != '\n' {
		last := node.Blocks[len(node.Blocks)-1]
		emitter.Synthetic(last.ID, "\n")
	}
	result := &Result{
		Node:   name,
		Target: node.Target,
		Data:   emitter.data,
		Prov:   Provenance{Target: node.Target, Entries: emitter.entries},
	}
	if err := result.Prov.Validate(len(result.Data)); err != nil {
		return nil, err
	}
	return result, nil
}

// provEmitter accumulates tangled bytes and provenance entries, merging
// contiguous pieces of the same origin into single entries.
type provEmitter struct {
	data    []byte
	entries []Entry
}

func (e *provEmitter) Literal(block document.BlockID, offset int, text string) {
	start := len(e.data)
	e.data = append(e.data, text...)
	if n := len(e.entries); n > 0 {
		last := &e.entries[n-1]
		if !last.Synthetic && last.Block == block && last.Offset+last.Len() == offset {
			last.End += len(text)
			return
		}
	}
	e.entries = append(e.entries, Entry{Start: start, End: start + len(text), Block: block, Offset: offset})
}

func (e *provEmitter) Synthetic(block document.BlockID, text string) {
	start := len(e.data)
	e.data = append(e.data, text...)
	if n := len(e.entries); n > 0 {
		last := &e.entries[n-1]
		if last.Synthetic && last.Block == block {
			last.End += len(text)
			last.Text += text
			return
		}
	}
	e.entries = append(e.entries, Entry{Start: start, End: start + len(text), Block: block, Synthetic: true, Text: text})
}

// Tangler writes tangled results to disk. Each target path is a single-writer
// resource: a second write to the same path waits for the first to complete.
type Tangler struct {
	fs    afs.Service
	mux   sync.Mutex
	paths map[string]*sync.Mutex
}

// New creates a tangler backed by the default afs service.
func New() *Tangler {
	return &Tangler{fs: afs.New(), paths: map[string]*sync.Mutex{}}
}

// NewWithFS creates a tangler with a custom afs service.
func NewWithFS(fs afs.Service) *Tangler {
	if fs == nil {
		return New()
	}
	return &Tangler{fs: fs, paths: map[string]*sync.Mutex{}}
}

// Write persists a result under baseURL. On failure it returns a WriteError
// while res keeps the tangled bytes and provenance for retry.
func (t *Tangler) Write(ctx context.Context, baseURL string, res *Result) error {
	targetURL := res.Target
	if baseURL != "" && url.IsRelative(targetURL) {
		targetURL = url.Join(baseURL, res.Target)
	}
	mux := t.pathLock(targetURL)
	mux.Lock()
	defer mux.Unlock()

	if url.Scheme(targetURL, file.Scheme) == file.Scheme {
		if release, err := lockTarget(url.Path(targetURL)); err == nil {
			defer release()
		}
	}
	if err := t.fs.Upload(ctx, targetURL, file.DefaultFileOsMode, bytes.NewReader(res.Data)); err != nil {
		return &WriteError{Path: targetURL, Cause: err}
	}
	return nil
}

// Read returns the current on-disk content of a target, nil when absent.
func (t *Tangler) Read(ctx context.Context, baseURL, target string) ([]byte, error) {
	targetURL := target
	if baseURL != "" && url.IsRelative(targetURL) {
		targetURL = url.Join(baseURL, target)
	}
	if exists, _ := t.fs.Exists(ctx, targetURL); !exists {
		return nil, nil
	}
	return t.fs.DownloadWithURL(ctx, targetURL)
}

func (t *Tangler) pathLock(targetURL string) *sync.Mutex {
	t.mux.Lock()
	defer t.mux.Unlock()
	mux, ok := t.paths[targetURL]
	if !ok {
		mux = &sync.Mutex{}
		t.paths[targetURL] = mux
	}
	return mux
}

// lockName returns the sidecar lock file path for a target.
func lockName(path string) string {
	index := strings.LastIndexByte(path, '/')
	return path[:index+1] + "." + path[index+1:] + ".lock"
}
