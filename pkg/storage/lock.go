package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	errs "fanslydl/pkg/errors"
)

// LockFile is the name of the per-creator lock
const LockFile = ".fanslydl.lock"

// CreatorLock guards a creator directory against a concurrent run
type CreatorLock struct {
	lock *flock.Flock
}

// LockCreator acquires the lock in dir, creating the directory if needed.
// It fails immediately when another process holds the lock.
func LockCreator(dir string) (*CreatorLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create creator directory")
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "acquire lock")
	}
	if !ok {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("%s is in use by another process", dir))
	}
	return &CreatorLock{lock: lock}, nil
}

// Unlock releases the lock
func (c *CreatorLock) Unlock() error {
	return c.lock.Unlock()
}
