// Package syntax validates generated code with external checker commands.
package syntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/model"
)

// FilePlaceholder in a checker argv is replaced with the staged file path.
const FilePlaceholder = "{file}"

const waitDelay = 2 * time.Second

// Checker runs the configured command for a file's extension.
type Checker struct {
	timeout  time.Duration
	checkers map[string][]string
	tmpDir   string
}

// New creates a checker from the syntax section of the config.
func New(cfg config.SyntaxConfig) *Checker {
	return &Checker{
		timeout:  cfg.Timeout.Std(),
		checkers: cfg.Checkers,
	}
}

// WithTempDir stages content under dir instead of the system temp dir.
func (c *Checker) WithTempDir(dir string) *Checker {
	c.tmpDir = dir
	return c
}

// Applies reports whether a checker is configured for path.
func (c *Checker) Applies(path string) bool {
	_, ok := c.checkers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the extensions with a configured checker, sorted.
func (c *Checker) Extensions() []string {
	exts := make([]string, 0, len(c.checkers))
	for ext := range c.checkers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Command returns the argv configured for ext.
func (c *Checker) Command(ext string) []string {
	return c.checkers[ext]
}

// Check stages content in a temp file and runs the checker on it. Files
// without a configured checker pass trivially.
func (c *Checker) Check(ctx context.Context, path string, content []byte) model.SyntaxResult {
	ext := strings.ToLower(filepath.Ext(path))
	argv, ok := c.checkers[ext]
	if !ok || len(argv) == 0 {
		if ext == "" {
			ext = "files without extension"
		}
		return model.SyntaxResult{Passed: true, Message: "no syntax checker for " + ext}
	}

	tmp, err := os.CreateTemp(c.tmpDir, "safeedit-syntax-*"+ext)
	if err != nil {
		return failed("syntax check failed: %v", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, werr := tmp.Write(content)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return failed("syntax check failed: %v", err)
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := buildArgs(argv[1:], tmpPath)
	cmd := exec.CommandContext(cmdCtx, argv[0], args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return failed("syntax check timed out after %s", timeout)
	}
	if ctx.Err() != nil {
		return failed("syntax check failed: %v", ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return failed("syntax check failed: %v", err)
		}
		out := strings.TrimSpace(stderr.String())
		if out == "" {
			out = strings.TrimSpace(stdout.String())
		}
		if out == "" {
			out = exitErr.Error()
		}
		return failed("syntax error: %s", strings.ReplaceAll(out, tmpPath, path))
	}
	return model.SyntaxResult{Passed: true, Message: "syntax valid"}
}

func buildArgs(args []string, file string) []string {
	out := make([]string, 0, len(args)+1)
	replaced := false
	for _, a := range args {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, file)
			replaced = true
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, file)
	}
	return out
}

func failed(format string, args ...any) model.SyntaxResult {
	return model.SyntaxResult{Passed: false, Message: fmt.Sprintf(format, args...)}
}
