// Package option holds document selection settings shared by the sync
// service and the watch daemon.
package option

import (
	"bufio"
	"io"
	"strings"
)

// Options selects which files a pass treats as literate documents.
type Options struct {

	// Exclusions contains patterns of files/directories to skip
	Exclusions []string

	// Inclusions contains patterns of files/directories to consider
	Inclusions []string

	// MaxFileSize is the maximum size of documents to parse in bytes
	MaxFileSize int
}

// Options returns a slice of Option functions based on the Options fields
func (o *Options) Options() []Option {
	var result []Option
	if o.MaxFileSize > 0 {
		result = append(result, WithMaxDocumentSize(o.MaxFileSize))
	}
	if o.Exclusions != nil {
		result = append(result, WithExclusionPatterns(o.Exclusions...))
	}
	if o.Inclusions != nil {
		result = append(result, WithInclusionPatterns(o.Inclusions...))
	}
	return result
}

// NewOptions creates a new Options instance with default values
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Inclusions == nil {
		options.Inclusions = defaultInclusions()
	}
	if options.Exclusions == nil {
		options.Exclusions = defaultExclusions()
	}
	return options
}

// Option is a function that modifies Options
type Option func(*Options)

// WithExclusionPatterns sets exclusion patterns
func WithExclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, patterns...)
	}
}

// WithMaxDocumentSize sets the maximum parseable document size
func WithMaxDocumentSize(size int) Option {
	return func(o *Options) {
		o.MaxFileSize = size
	}
}

// WithGitignore adds patterns from a .gitignore file
func WithGitignore(reader io.Reader) Option {
	return func(o *Options) {
		if patterns := parseGitignore(reader); len(patterns) > 0 {
			o.Exclusions = append(o.Exclusions, patterns...)
		}
	}
}

// WithInclusionPatterns adds patterns to include
func WithInclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Inclusions = append(o.Inclusions, patterns...)
	}
}

// defaultInclusions lists the markdown extensions treated as documents.
func defaultInclusions() []string {
	return []string{
		"*.md",
		"*.markdown",
	}
}

// defaultExclusions lists paths never scanned for documents.
func defaultExclusions() []string {
	return []string{
		// Directories
		"node_modules/",
		".git/",
		".github/",
		".vscode/",
		".idea/",
		"dist/",
		"build/",
		"target/",
		"vendor/",
		"__pycache__/",

		// Files
		".DS_Store",
		"*.lock",
		"*.log",
		"*.swp",
		"*.bak",
		"*.tmp",
	}
}

// parseGitignore reads .gitignore-style patterns from a reader
func parseGitignore(reader io.Reader) []string {
	var patterns []string
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns
}
