// Package service orchestrates synchronization passes between literate
// documents and their tangled targets: tangle, stitch, and the bidirectional
// sync pass with conflict detection.
//
// This package is intended for embedding the synchronization engine into
// other programs without shelling out to the CLI.
package service
