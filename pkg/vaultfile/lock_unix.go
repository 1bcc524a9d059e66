//go:build !windows

package vaultfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock acquires an advisory, non-blocking exclusive lock on path+".lock".
// A second process attempting to unlock the same vault gets ErrLocked
// immediately instead of racing on the file.
type Lock struct {
	f *os.File
}

// AcquireLock takes the process lock for the vault at path.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, fmt.Errorf("vaultfile: failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("vaultfile: failed to lock vault: %w", err)
	}

	return &Lock{f: f}, nil
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	// Closing the descriptor releases the flock.
	err := l.f.Close()
	l.f = nil
	return err
}
