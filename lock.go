package unwrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = ".lock"

// RunLock guards the fixed mount points of a work directory against a second
// unwrap running on the same host.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock of dir without blocking.
func AcquireRunLock(dir string) (*RunLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(dir, lockName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("Failed to lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another unwrap is already using %s", dir)
	}

	return &RunLock{fl: fl}, nil
}

func (l *RunLock) Release() error {
	return l.fl.Unlock()
}
