package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LockPath returns the sidecar lock file guarding path.
func LockPath(path string) string {
	return path + ".lock"
}

// WriteFileAtomic replaces path with data while holding the sidecar lock.
// Readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	l := flock.New(LockPath(path))
	if err := l.Lock(); err != nil {
		return fmt.Errorf("cannot acquire lock for %s: %w", path, err)
	}
	defer func() { _ = l.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}

// ReadFileLocked reads path while holding a shared lock on its sidecar lock
// file. A missing path returns an fs.ErrNotExist error without touching the
// directory.
func ReadFileLocked(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	l := flock.New(LockPath(path))
	if err := l.RLock(); err != nil {
		return nil, fmt.Errorf("cannot acquire lock for %s: %w", path, err)
	}
	defer func() { _ = l.Unlock() }()

	return os.ReadFile(path)
}
