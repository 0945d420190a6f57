package model

import "time"

// BackupRecord describes the snapshot of a file taken before a rewrite attempt.
// It is immutable once written; operation log entries reference it by BackupPath.
type BackupRecord struct {
	SourcePath string    `json:"source_path"`
	BackupPath string    `json:"backup_path"`
	Timestamp  time.Time `json:"timestamp"`
	Content    []byte    `json:"-"`
}

// BackupInfo is a backup file found on disk.
type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}
