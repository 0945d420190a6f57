package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/safeedit/safeedit/internal/workspace"
	"github.com/safeedit/safeedit/pkg/logging"
	"github.com/safeedit/safeedit/pkg/safeedit"
)

// requireWorkspace discovers the workspace from CWD.
func requireWorkspace() (*workspace.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot get current directory: %w", err)
	}
	w, err := workspace.Discover(cwd)
	if errors.Is(err, workspace.ErrNotFound) {
		return nil, errors.New(formatNotInWorkspaceError())
	}
	return w, err
}

// openClient opens the workspace containing CWD with the global flags applied.
func openClient() (*safeedit.Client, error) {
	w, err := requireWorkspace()
	if err != nil {
		return nil, err
	}
	cfg, err := w.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	applyLogConfig(cfg.Logging.Level, cfg.Logging.Format)

	client, err := safeedit.Open(w.Root, safeedit.Options{ConfigPath: configPath, Logger: logging.Global()})
	if err != nil {
		return nil, err
	}
	if metricsFile == "" && cfg.MetricsFile != "" {
		metricsFile = cfg.MetricsFile
		if !filepath.IsAbs(metricsFile) {
			metricsFile = filepath.Join(w.Root, metricsFile)
		}
	}
	return client, nil
}

// argPath maps a command-line path, relative to CWD, to a path relative to
// the workspace root.
func argPath(root, arg string) string {
	if filepath.IsAbs(arg) {
		return arg
	}
	cwd, err := os.Getwd()
	if err != nil {
		return arg
	}
	abs := filepath.Join(cwd, arg)
	if rel, err := filepath.Rel(root, abs); err == nil {
		return filepath.ToSlash(rel)
	}
	return arg
}
