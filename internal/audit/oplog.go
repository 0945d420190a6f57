// Package audit persists the operation log: a JSON array of every rewrite
// that reached disk, used for history and rollback.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/fsutil"
	"github.com/safeedit/safeedit/pkg/model"
)

// ErrNoLog is returned when the operation log file does not exist yet.
var ErrNoLog = errors.New("operation log not found")

// Log is the on-disk operation log. Writers serialize on an advisory lock
// held on a sibling .lock file, so separate processes may share one log.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates a Log stored at path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append adds entry to the end of the log, rewriting the file in full.
func (l *Log) Append(entry model.OperationLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errclass.ErrLog.WithMessagef("create log dir: %v", err)
	}

	lock, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errclass.ErrLog.WithMessagef("open log lock: %v", err)
	}
	defer lock.Close()

	if err := lockFile(lock); err != nil {
		return errclass.ErrLog.WithMessagef("lock operation log: %v", err)
	}
	defer unlockFile(lock)

	entries, err := l.read()
	if err != nil && !errors.Is(err, ErrNoLog) {
		return errclass.ErrLog.WithMessage(err.Error())
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errclass.ErrLog.WithMessagef("marshal operation log: %v", err)
	}
	if err := fsutil.AtomicWrite(l.path, append(data, '\n'), 0644); err != nil {
		return errclass.ErrLog.WithMessagef("write operation log: %v", err)
	}
	return nil
}

func (l *Log) read() ([]model.OperationLogEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLog
		}
		return nil, fmt.Errorf("read operation log: %w", err)
	}

	var entries []model.OperationLogEntry
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse operation log: %w", err)
	}
	return entries, nil
}

// Entries returns all entries in insertion order. It returns ErrNoLog when
// the log has never been written.
func (l *Log) Entries() ([]model.OperationLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// EntriesFor returns the entries recorded for key, newest first.
func (l *Log) EntriesFor(key string) ([]model.OperationLogEntry, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	var out []model.OperationLogEntry
	for i := len(entries) - 1; i >= 0; i-- {
		if key == "" || entries[i].FilePath == key {
			out = append(out, entries[i])
		}
	}
	return out, nil
}

// BackupsFor returns the backup paths recorded for key, newest first.
func (l *Log) BackupsFor(key string) ([]string, error) {
	entries, err := l.EntriesFor(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.BackupPath != "" {
			out = append(out, e.BackupPath)
		}
	}
	return out, nil
}

// FindLastBackup returns the backup path of the most recent entry for key.
func (l *Log) FindLastBackup(key string) (string, error) {
	backups, err := l.BackupsFor(key)
	if err != nil {
		if errors.Is(err, ErrNoLog) {
			return "", errclass.ErrNoBackup.WithMessagef("no backup found for %s", key)
		}
		return "", err
	}
	if len(backups) == 0 {
		return "", errclass.ErrNoBackup.WithMessagef("no backup found for %s", key)
	}
	return backups[0], nil
}
