package doctor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safeedit/safeedit/internal/audit"
	"github.com/safeedit/safeedit/internal/rewrite"
	"github.com/safeedit/safeedit/internal/workspace"
	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/fsutil"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "critical" || f.Severity == "error" {
		r.Healthy = false
	}
}

// Doctor performs workspace health checks.
type Doctor struct {
	root     string
	cfg      *config.Config
	lookPath func(string) (string, error)
	getenv   func(string) string
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithLookPath replaces exec.LookPath.
func WithLookPath(f func(string) (string, error)) Option {
	return func(d *Doctor) { d.lookPath = f }
}

// WithGetenv replaces os.Getenv for the API key check.
func WithGetenv(f func(string) string) Option {
	return func(d *Doctor) { d.getenv = f }
}

// NewDoctor creates a new doctor.
func NewDoctor(root string, cfg *config.Config, opts ...Option) *Doctor {
	d := &Doctor{root: root, cfg: cfg, lookPath: exec.LookPath, getenv: os.Getenv}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check runs all diagnostic checks.
func (d *Doctor) Check() *Result {
	result := &Result{Healthy: true}

	d.checkFormatVersion(result)
	d.checkConfig(result)
	d.checkAPIKey(result)
	d.checkCheckers(result)
	d.checkBackupDir(result)
	d.checkLog(result)
	d.checkTargets(result)
	d.checkOrphanTmp(result)

	return result
}

func (d *Doctor) checkFormatVersion(result *Result) {
	versionPath := filepath.Join(d.root, config.DirName, workspace.FormatVersionFile)
	data, err := os.ReadFile(versionPath)
	if err != nil {
		result.add(Finding{
			Category:    "format",
			Description: "format_version file missing or unreadable",
			Severity:    "warning",
			Path:        versionPath,
		})
		return
	}

	var version int
	fmt.Sscanf(string(data), "%d", &version)
	if version > workspace.FormatVersion {
		result.add(Finding{
			Category:    "format",
			Description: fmt.Sprintf("format version %d > supported %d", version, workspace.FormatVersion),
			Severity:    "critical",
		})
	}
}

func (d *Doctor) checkConfig(result *Result) {
	if err := d.cfg.Validate(); err != nil {
		result.add(Finding{
			Category:    "config",
			Description: err.Error(),
			Severity:    "critical",
			Path:        config.Path(d.root),
		})
	}
}

func (d *Doctor) checkAPIKey(result *Result) {
	if err := d.cfg.ResolveAPIKey(d.getenv); err != nil {
		result.add(Finding{
			Category:    "generation",
			Description: fmt.Sprintf("API key not available: %s is not set", d.cfg.Generation.APIKeyEnv),
			Severity:    "error",
		})
	}
}

func (d *Doctor) checkCheckers(result *Result) {
	exts := make([]string, 0, len(d.cfg.Syntax.Checkers))
	for ext := range d.cfg.Syntax.Checkers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		argv := d.cfg.Syntax.Checkers[ext]
		if len(argv) == 0 {
			continue
		}
		if _, err := d.lookPath(argv[0]); err != nil {
			result.add(Finding{
				Category:    "syntax",
				Description: fmt.Sprintf("checker for %s not found on PATH: %s", ext, argv[0]),
				Severity:    "warning",
			})
		}
	}
}

func (d *Doctor) checkBackupDir(result *Result) {
	dir := d.cfg.BackupDir(d.root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		result.add(Finding{
			Category:    "backup",
			Description: fmt.Sprintf("cannot create backup directory: %v", err),
			Severity:    "critical",
			Path:        dir,
		})
		return
	}
	probe, err := os.CreateTemp(dir, fsutil.TmpPrefix+"probe-*")
	if err != nil {
		result.add(Finding{
			Category:    "backup",
			Description: fmt.Sprintf("backup directory not writable: %v", err),
			Severity:    "critical",
			Path:        dir,
		})
		return
	}
	probe.Close()
	os.Remove(probe.Name())
}

func (d *Doctor) checkLog(result *Result) {
	path := d.cfg.LogPath(d.root)
	_, err := audit.NewLog(path).Entries()
	if err == nil || errors.Is(err, audit.ErrNoLog) {
		return
	}
	result.add(Finding{
		Category:    "log",
		Description: fmt.Sprintf("operation log unreadable, rollback will not work: %v", err),
		Severity:    "critical",
		Path:        path,
	})
}

func (d *Doctor) checkTargets(result *Result) {
	for _, pattern := range d.cfg.Targets {
		matches, err := rewrite.ExpandTargets(d.root, []string{pattern})
		if err != nil {
			result.add(Finding{
				Category:    "targets",
				Description: fmt.Sprintf("invalid target pattern %q: %v", pattern, err),
				Severity:    "error",
			})
			continue
		}
		found := false
		for _, m := range matches {
			if info, err := os.Stat(filepath.Join(d.root, m)); err == nil && !info.IsDir() {
				found = true
				break
			}
		}
		if !found {
			result.add(Finding{
				Category:    "targets",
				Description: fmt.Sprintf("target %q matches no files", pattern),
				Severity:    "info",
			})
		}
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := entry.Name()
		if entry.IsDir() && (name == ".git" || name == "node_modules") {
			return filepath.SkipDir
		}
		if strings.HasPrefix(name, fsutil.TmpPrefix) {
			result.add(Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan temp file: %s", name),
				Severity:    "info",
				Path:        path,
			})
		}
		return nil
	})
}
