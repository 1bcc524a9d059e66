// Package vaultfile owns durable storage of the encrypted vault file:
// atomic reads and writes, rotating backups of prior commits, and an
// advisory lock that keeps two processes from opening the same vault.
//
// Commit is crash-safe: the new contents are written to a temporary file in
// the same directory, flushed to disk, and then atomically renamed over the
// target path. A crash mid-write can never leave a half-written file in
// place of a good one.
package vaultfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File permissions: vault contents are owner-only.
const (
	FileMode = 0600
	DirMode  = 0700
)

// DefaultKeepBackups is the number of prior commits retained as
// path.bak.1 (newest) through path.bak.N (oldest).
const DefaultKeepBackups = 3

// Errors
var (
	// ErrNotFound indicates no vault file exists at the path.
	ErrNotFound = errors.New("vaultfile: vault file not found")

	// ErrLocked indicates another process holds the vault lock.
	ErrLocked = errors.New("vaultfile: vault is locked by another process")
)

// Exists reports whether a vault file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads the vault file at path. A missing file is reported as
// ErrNotFound; other failures surface as wrapped I/O errors.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("vaultfile: failed to read vault file: %w", err)
	}
	return data, nil
}

// Commit atomically replaces the vault file at path with data, keeping up to
// keepBackups rotating copies of previously committed versions.
//
// Sequence: write temp file and fsync it, rotate existing backups, copy the
// current file to .bak.1 (a copy, not a rename, so the newest good version
// is never the only casualty of a crash mid-rotation), rename the temp file
// over the target, fsync the directory.
func Commit(path string, data []byte, keepBackups int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("vaultfile: failed to create vault directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("vaultfile: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup if anything below fails before the rename.
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("vaultfile: failed to set temp file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("vaultfile: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("vaultfile: failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vaultfile: failed to close temp file: %w", err)
	}

	if Exists(path) && keepBackups > 0 {
		if err := rotateBackups(path, keepBackups); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("vaultfile: failed to replace vault file: %w", err)
	}

	syncDir(dir)
	return nil
}

// BackupPath returns the path of the n-th rotating backup (1 = newest).
func BackupPath(path string, n int) string {
	return fmt.Sprintf("%s.bak.%d", path, n)
}

// rotateBackups shifts path.bak.N-1 -> path.bak.N and copies the current
// vault file to path.bak.1. The oldest backup falls off the end.
func rotateBackups(path string, keep int) error {
	// Shift older backups up, dropping the one past the retention limit.
	if err := os.Remove(BackupPath(path, keep)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vaultfile: failed to drop oldest backup: %w", err)
	}
	for n := keep - 1; n >= 1; n-- {
		src := BackupPath(path, n)
		if !Exists(src) {
			continue
		}
		if err := os.Rename(src, BackupPath(path, n+1)); err != nil {
			return fmt.Errorf("vaultfile: failed to rotate backup %d: %w", n, err)
		}
	}

	// Copy (never rename) the current file into the .bak.1 slot: until the
	// new version lands via rename, the canonical path must keep holding the
	// last known-good vault.
	if err := copyFile(path, BackupPath(path, 1)); err != nil {
		return fmt.Errorf("vaultfile: failed to back up current vault: %w", err)
	}
	return nil
}

// copyFile copies src to dst with owner-only permissions and fsyncs dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// syncDir fsyncs the directory so the rename itself is durable. Failure is
// non-fatal: the data file is already synced, and some filesystems do not
// support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
