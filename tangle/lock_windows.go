//go:build windows

package tangle

import (
	"os"
)

// lockTarget approximates an exclusive lock on Windows by creating the
// sidecar lock file; in-process serialization is handled by the Tangler.
func lockTarget(path string) (func(), error) {
	f, err := os.OpenFile(lockName(path), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return func() { _ = f.Close() }, nil
}
