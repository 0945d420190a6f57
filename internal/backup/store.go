// Package backup keeps verbatim copies of files before they are rewritten.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/fsutil"
	"github.com/safeedit/safeedit/pkg/logging"
	"github.com/safeedit/safeedit/pkg/model"
	"github.com/safeedit/safeedit/pkg/pathutil"
)

const (
	// Ext is the extension of every backup file.
	Ext = ".backup"
	// TimeLayout is the timestamp suffix of backup names, second resolution.
	TimeLayout = "20060102_150405"
)

// Store creates and restores backups under a single directory.
type Store struct {
	root string
	dir  string
	now  func() time.Time
	log  *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for restore failures.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a store for files under root, keeping backups in dir.
func New(root, dir string, opts ...Option) *Store {
	s := &Store{
		root: root,
		dir:  dir,
		now:  time.Now,
		log:  logging.Global(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the backup directory.
func (s *Store) Dir() string {
	return s.dir
}

// Create copies the current content of path into a new backup file.
func (s *Store) Create(path string) (*model.BackupRecord, error) {
	abs, key, err := pathutil.Resolve(s.root, path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errclass.ErrBackup.WithMessagef("read %s: %v", key, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, errclass.ErrBackup.WithMessagef("create backup dir: %v", err)
	}

	ts := s.now()
	backupPath := filepath.Join(s.dir, Name(key, ts))
	// Two rewrites of one file within a second must not share a backup.
	for seq := 1; exists(backupPath); seq++ {
		backupPath = filepath.Join(s.dir, seqName(key, ts, seq))
	}
	if err := fsutil.AtomicWrite(backupPath, content, 0644); err != nil {
		return nil, errclass.ErrBackup.WithMessagef("write backup: %v", err)
	}

	return &model.BackupRecord{
		SourcePath: key,
		BackupPath: backupPath,
		Timestamp:  ts,
		Content:    content,
	}, nil
}

// Restore copies the backup at backupPath back onto path. It reports false,
// after logging the reason, when the backup is missing or cannot be written back.
func (s *Store) Restore(path, backupPath string) bool {
	fields := map[string]any{"path": path, "backup": backupPath}

	abs, _, err := pathutil.Resolve(s.root, path)
	if err != nil {
		s.log.ErrorErr("restore target rejected", err, fields)
		return false
	}
	content, err := os.ReadFile(backupPath)
	if err != nil {
		s.log.ErrorErr("backup unreadable", err, fields)
		return false
	}
	if err := fsutil.ReplaceFile(abs, content); err != nil {
		s.log.ErrorErr("restore write failed", err, fields)
		return false
	}
	s.log.Info("restored from backup", fields)
	return true
}

// Name returns the backup file name for a workspace key at ts.
func Name(key string, ts time.Time) string {
	return pathutil.SanitizeBackupName(key) + "_" + ts.Format(TimeLayout) + Ext
}

func seqName(key string, ts time.Time, seq int) string {
	return pathutil.SanitizeBackupName(key) + "_" + ts.Format(TimeLayout) + "-" + strconv.Itoa(seq) + Ext
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// ParseName splits a backup file name into its sanitized source and timestamp.
func ParseName(name string) (source string, ts time.Time, ok bool) {
	source, ts, _, ok = parseName(name)
	return source, ts, ok
}

func parseName(name string) (source string, ts time.Time, seq int, ok bool) {
	base, found := strings.CutSuffix(name, Ext)
	if !found {
		return "", time.Time{}, 0, false
	}
	if i := strings.LastIndexByte(base, '-'); i >= 0 {
		if n, err := strconv.Atoi(base[i+1:]); err == nil && n > 0 {
			if src, t, ok := parseStamp(base[:i]); ok {
				return src, t, n, true
			}
		}
	}
	source, ts, ok = parseStamp(base)
	return source, ts, 0, ok
}

func parseStamp(base string) (string, time.Time, bool) {
	if len(base) < len(TimeLayout)+2 {
		return "", time.Time{}, false
	}
	stamp := base[len(base)-len(TimeLayout):]
	rest := base[:len(base)-len(TimeLayout)]
	if !strings.HasSuffix(rest, "_") {
		return "", time.Time{}, false
	}
	ts, err := time.ParseInLocation(TimeLayout, stamp, time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return strings.TrimSuffix(rest, "_"), ts, true
}

// List returns backups on disk, newest first. A non-empty path limits the
// result to backups of that file.
func (s *Store) List(path string) ([]model.BackupInfo, error) {
	var want string
	if path != "" {
		_, key, err := pathutil.Resolve(s.root, path)
		if err != nil {
			return nil, err
		}
		want = pathutil.SanitizeBackupName(key)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var out []model.BackupInfo
	seqs := make(map[string]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		source, ts, seq, ok := parseName(e.Name())
		if !ok || (want != "" && source != want) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		seqs[e.Name()] = seq
		out = append(out, model.BackupInfo{
			Name:      e.Name(),
			Path:      filepath.Join(s.dir, e.Name()),
			Source:    source,
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return seqs[out[i].Name] > seqs[out[j].Name]
	})
	return out, nil
}
