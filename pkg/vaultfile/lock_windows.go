//go:build windows

package vaultfile

import (
	"fmt"
	"os"
)

// Lock holds the vault lock file. On Windows the O_CREATE|O_EXCL semantics
// of the lock file itself provide the mutual exclusion; there is no flock.
type Lock struct {
	f    *os.File
	path string
}

// AcquireLock takes the process lock for the vault at path.
func AcquireLock(path string) (*Lock, error) {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, FileMode)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("vaultfile: failed to open lock file: %w", err)
	}
	return &Lock{f: f, path: lockPath}, nil
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	_ = os.Remove(l.path)
	return err
}
