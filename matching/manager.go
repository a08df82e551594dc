// Package matching decides which files a synchronization pass treats as
// literate documents.
package matching

import (
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/entangle/matching/option"
)

// Manager applies document include/exclude rules to candidate paths.
type Manager struct {
	options *option.Options
	fs      afs.Service
}

// New creates a document matcher with the given options
func New(opts ...option.Option) *Manager {
	options := option.NewOptions(opts...)
	manager := &Manager{
		options: options,
		fs:      afs.New(),
	}
	return manager
}

// IsDocument reports whether a path should be picked up as a literate
// document. Size guards against parsing generated or binary artifacts.
func (m *Manager) IsDocument(location string, size int) bool {
	return !m.IsExcluded(location, size)
}

// IsSkippedDir reports whether a directory should not be descended into.
// Inclusion patterns select documents, not directories, so only exclusions
// apply here.
func (m *Manager) IsSkippedDir(location string) bool {
	path := filepath.ToSlash(url.Path(location))
	for _, pattern := range m.options.Exclusions {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if m.matches(path+"/", pattern) {
			return true
		}
	}
	return false
}

// IsExcluded checks if a path should be skipped based on the patterns
func (m *Manager) IsExcluded(location string, size int) bool {
	if m.options.MaxFileSize > 0 {
		if size > m.options.MaxFileSize {
			return true
		}
	}

	path := url.Path(location)
	// Normalize path to use forward slashes
	path = filepath.ToSlash(path)

	if len(m.options.Inclusions) > 0 {
		if !m.isIncluded(path) {
			return true
		}
	}

	for _, pattern := range m.options.Exclusions {
		pattern = strings.TrimSpace(pattern)
		// Skip comments or empty lines
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}

		if m.matches(path, pattern) {
			return true
		}
	}

	return false
}

func (m *Manager) matches(path string, pattern string) bool {
	// Directory patterns (node_modules/) match anywhere on the path
	if strings.HasSuffix(pattern, "/") {
		if strings.Contains(path, "/"+pattern) || strings.HasPrefix(path, pattern) {
			return true
		}
	}

	// .gitignore-style glob against the full path and against any suffix
	cleanPattern := strings.TrimPrefix(pattern, "/")
	if matched, _ := filepath.Match(cleanPattern, path); matched {
		return true
	}

	// Match just basename
	baseName := filepath.Base(path)
	if matched, _ := filepath.Match(cleanPattern, baseName); matched {
		return true
	}
	return pattern == baseName || strings.HasSuffix(pattern, "/"+baseName)
}

func (m *Manager) isIncluded(path string) bool {
	baseName := filepath.Base(path)
	for _, pattern := range m.options.Inclusions {
		pattern = strings.TrimSpace(pattern)
		// Skip comments or empty lines
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if matched, _ := filepath.Match(pattern, baseName); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
