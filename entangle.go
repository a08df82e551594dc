// Package entangle keeps markdown documents and the source files tangled
// from them synchronized in both directions. Documents hold named, composable
// code blocks; tangling expands them into target files while recording
// byte-level provenance, and stitching folds edits made on the tangled files
// back into the owning blocks. The service package drives full passes with
// fingerprint-based conflict detection; this package is the entry point.
package entangle

import (
	"github.com/viant/entangle/service"
)

// New creates a synchronization service for a project configuration.
func New(config *service.Config, opts ...service.Option) (*service.Service, error) {
	return service.New(config, opts...)
}

// NewFromConfig loads a yaml project configuration and builds the service.
func NewFromConfig(path string, opts ...service.Option) (*service.Service, error) {
	config, err := service.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return service.New(config, opts...)
}
