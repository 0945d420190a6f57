// Package workspace locates and initializes safeedit workspaces: a directory
// tree whose root holds a .safeedit/ metadata directory.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/fsutil"
)

const (
	FormatVersion     = 1
	FormatVersionFile = "format_version"
)

// ErrNotFound is returned by Discover when no workspace encloses the directory.
var ErrNotFound = errors.New("no safeedit workspace found (no .safeedit/ in parent directories)")

// Workspace is an initialized safeedit workspace.
type Workspace struct {
	Root          string `json:"root"`
	FormatVersion int    `json:"format_version"`
}

// MetaDir returns the .safeedit directory.
func (w *Workspace) MetaDir() string {
	return filepath.Join(w.Root, config.DirName)
}

// Init creates the workspace metadata under root. An existing config file is
// left untouched so re-running init is safe.
func Init(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	cfg := config.Default()
	metaDir := filepath.Join(abs, config.DirName)
	for _, dir := range []string{metaDir, cfg.BackupDir(abs)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	versionPath := filepath.Join(metaDir, FormatVersionFile)
	if _, err := os.Stat(versionPath); errors.Is(err, os.ErrNotExist) {
		if err := fsutil.AtomicWrite(versionPath, []byte(fmt.Sprintf("%d\n", FormatVersion)), 0644); err != nil {
			return nil, fmt.Errorf("write format_version: %w", err)
		}
	}

	if _, err := os.Stat(config.Path(abs)); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(abs, cfg); err != nil {
			return nil, err
		}
	}

	if err := fsutil.FsyncDir(metaDir); err != nil {
		return nil, fmt.Errorf("fsync %s: %w", metaDir, err)
	}
	return &Workspace{Root: abs, FormatVersion: FormatVersion}, nil
}

// Discover walks up from cwd to the nearest directory containing .safeedit/.
func Discover(cwd string) (*Workspace, error) {
	path, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cwd, err)
	}
	for {
		metaDir := filepath.Join(path, config.DirName)
		if info, err := os.Stat(metaDir); err == nil && info.IsDir() {
			version, err := readFormatVersion(metaDir)
			if err != nil {
				return nil, err
			}
			if version > FormatVersion {
				return nil, errclass.ErrConfigInvalid.WithMessagef(
					"format version %d > supported %d", version, FormatVersion)
			}
			return &Workspace{Root: path, FormatVersion: version}, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return nil, ErrNotFound
		}
		path = parent
	}
}

// LoadConfig reads the workspace configuration, or the file at override when
// it is set.
func (w *Workspace) LoadConfig(override string) (*config.Config, error) {
	if override != "" {
		return config.LoadFile(override)
	}
	return config.Load(w.Root)
}

// A workspace created by hand (just the directory) is treated as version 1.
func readFormatVersion(metaDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(metaDir, FormatVersionFile))
	if errors.Is(err, os.ErrNotExist) {
		return FormatVersion, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read format_version: %w", err)
	}
	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		return 0, fmt.Errorf("parse format_version: %w", err)
	}
	return version, nil
}
