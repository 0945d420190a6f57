// Package fsutil provides filesystem utilities for atomic writes and syncing.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// TmpPrefix names the temporary files AtomicWrite leaves behind if interrupted.
const TmpPrefix = ".safeedit-tmp-"

// AtomicWrite writes data to a temporary file, fsyncs, then renames to target path.
// Readers of path never observe a partially written file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, TmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("atomic write create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up on failure
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}
	if err := FsyncDir(dir); err != nil {
		return fmt.Errorf("atomic write fsync dir: %w", err)
	}

	success = true
	return nil
}

// ReplaceFile atomically overwrites an existing file, keeping its permission bits.
// A symlink is followed so the link itself survives and its target gets the
// new content. If path does not exist the file is created with mode 0644.
func ReplaceFile(path string, data []byte) error {
	perm := os.FileMode(0644)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if info, err := os.Stat(path); err == nil {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("replace %s: not a regular file", path)
		}
		perm = info.Mode().Perm()
	}
	return AtomicWrite(path, data, perm)
}

// FsyncDir fsyncs a directory to ensure rename visibility is durable.
func FsyncDir(dirPath string) error {
	d, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("fsync dir open: %w", err)
	}
	defer d.Close()
	return d.Sync()
}
