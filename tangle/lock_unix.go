//go:build !windows

package tangle

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockTarget takes an exclusive advisory lock on the target's sidecar lock
// file so no two processes write the same target concurrently.
func lockTarget(path string) (func(), error) {
	f, err := os.OpenFile(lockName(path), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
