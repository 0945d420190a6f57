package safeedit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/safeedit/safeedit/internal/audit"
	"github.com/safeedit/safeedit/internal/diff"
	"github.com/safeedit/safeedit/internal/doctor"
	"github.com/safeedit/safeedit/internal/generate"
	"github.com/safeedit/safeedit/internal/rewrite"
	"github.com/safeedit/safeedit/internal/workspace"
	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/logging"
	"github.com/safeedit/safeedit/pkg/metrics"
	"github.com/safeedit/safeedit/pkg/model"
	"github.com/safeedit/safeedit/pkg/pathutil"
	"github.com/safeedit/safeedit/pkg/progress"
	"github.com/safeedit/safeedit/pkg/webhook"
)

// Client provides high-level operations on a workspace.
type Client struct {
	ws       *workspace.Workspace
	cfg      *config.Config
	opts     Options
	notifier *webhook.Client
	gen      Generator
}

// Generator produces improved content for a file.
type Generator = generate.Generator

// GenerateRequest is the input of a Generator.
type GenerateRequest = generate.Request

// Writer replaces file content; the default writes atomically.
type Writer = rewrite.Writer

// Options configures a Client. Zero values select the defaults.
type Options struct {
	ConfigPath string            // Explicit config file; defaults to .safeedit/config.yaml
	Generator  Generator         // Defaults to the OpenAI client built from config
	Logger     *logging.Logger   // Defaults to logging.Global()
	Metrics    *metrics.Registry // Defaults to metrics.Default()
	Getenv     func(string) string
	Writer     Writer
}

// ImproveOptions configures a rewrite.
type ImproveOptions struct {
	Kind   string // Improvement label passed to the model; defaults to "general"
	DryRun bool   // Report the diff without writing or logging
}

// Summary counts the outcomes of a batch.
type Summary = rewrite.Summary

// CheckReport is the result of Check.
type CheckReport = rewrite.CheckReport

// DiffResult is the result of Diff.
type DiffResult struct {
	*diff.Result
	BackupPath string `json:"backup_path"`
}

// Init initializes a workspace at path and opens it.
func Init(path string, opts Options) (*Client, error) {
	if _, err := workspace.Init(path); err != nil {
		return nil, fmt.Errorf("safeedit init: %w", err)
	}
	return Open(path, opts)
}

// Open opens the workspace at or above path.
func Open(path string, opts Options) (*Client, error) {
	ws, err := workspace.Discover(path)
	if err != nil {
		return nil, fmt.Errorf("safeedit open: %w", err)
	}
	cfg, err := ws.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("safeedit open: %w", err)
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}

	return &Client{
		ws:       ws,
		cfg:      cfg,
		opts:     opts,
		notifier: webhook.NewClient(webhook.FromConfig(cfg.Webhooks)),
		gen:      opts.Generator,
	}, nil
}

// OpenOrInit opens an existing workspace rooted at path, or initializes one.
func OpenOrInit(path string, opts Options) (*Client, error) {
	if info, err := os.Stat(filepath.Join(path, config.DirName)); err == nil && info.IsDir() {
		return Open(path, opts)
	}
	return Init(path, opts)
}

// Root returns the workspace root.
func (c *Client) Root() string { return c.ws.Root }

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config { return c.cfg }

// Close flushes pending webhook deliveries.
func (c *Client) Close() error {
	return c.notifier.Close()
}

// generator builds the default model client on first use, so commands that
// never generate do not need an API key.
func (c *Client) generator() (Generator, error) {
	if c.gen != nil {
		return c.gen, nil
	}
	if err := c.cfg.ResolveAPIKey(c.opts.Getenv); err != nil {
		return nil, err
	}
	c.gen = generate.NewOpenAI(c.cfg.Generation, c.cfg.APIKey())
	return c.gen, nil
}

func (c *Client) orchestrator(gen Generator) *rewrite.Orchestrator {
	opts := []rewrite.Option{
		rewrite.WithLogger(c.opts.Logger),
		rewrite.WithMetrics(c.opts.Metrics),
		rewrite.WithNotifier(c.notifier),
	}
	if c.opts.Writer != nil {
		opts = append(opts, rewrite.WithWriter(c.opts.Writer))
	}
	return rewrite.New(c.ws.Root, c.cfg, gen, opts...)
}

// Improve rewrites one file. Failures are reported in the outcome.
func (c *Client) Improve(ctx context.Context, path string, opts ImproveOptions) model.RewriteOutcome {
	return c.run(ctx, []string{path}, opts, nil)[0]
}

// ImproveAll rewrites paths one after another. Patterns may use ** globs;
// without paths the configured targets are used.
func (c *Client) ImproveAll(ctx context.Context, paths []string, opts ImproveOptions, cb progress.Callback) ([]model.RewriteOutcome, error) {
	if len(paths) == 0 {
		paths = c.cfg.Targets
	}
	targets, err := rewrite.ExpandTargets(c.ws.Root, paths)
	if err != nil {
		return nil, fmt.Errorf("expand targets: %w", err)
	}
	return c.run(ctx, targets, opts, cb), nil
}

// run yields one outcome per target, even when the model client cannot be
// created.
func (c *Client) run(ctx context.Context, targets []string, opts ImproveOptions, cb progress.Callback) []model.RewriteOutcome {
	gen, err := c.generator()
	if err != nil {
		outcomes := make([]model.RewriteOutcome, 0, len(targets))
		for _, p := range targets {
			outcomes = append(outcomes, model.RewriteOutcome{
				FilePath: p,
				Stage:    model.StageFailed,
				FailedAt: model.StageStart,
				Code:     errclass.Code(err),
				Message:  errclass.Message(err),
			})
		}
		return outcomes
	}
	return c.orchestrator(gen).Run(ctx, targets, rewrite.Options{Kind: opts.Kind, DryRun: opts.DryRun}, cb)
}

// Rollback restores path from its newest usable backup.
func (c *Client) Rollback(ctx context.Context, path string) model.RewriteOutcome {
	return c.orchestrator(nil).Rollback(ctx, path)
}

// History returns operation log entries for path, newest first. An empty path
// returns every entry.
func (c *Client) History(path string) ([]model.OperationLogEntry, error) {
	key := ""
	if path != "" {
		var err error
		if _, key, err = pathutil.Resolve(c.ws.Root, path); err != nil {
			return nil, err
		}
	}
	entries, err := c.orchestrator(nil).Log().EntriesFor(key)
	if errors.Is(err, audit.ErrNoLog) {
		return nil, nil
	}
	return entries, err
}

// Backups lists backup files for path, newest first. An empty path lists all.
func (c *Client) Backups(path string) ([]model.BackupInfo, error) {
	return c.orchestrator(nil).Backups().List(path)
}

// Check validates the current content of path without generating anything.
func (c *Client) Check(ctx context.Context, path string) (*CheckReport, error) {
	return c.orchestrator(nil).Check(ctx, path)
}

// Diff compares the latest backup of path with its current content.
func (c *Client) Diff(path string) (*DiffResult, error) {
	res, backupPath, err := c.orchestrator(nil).DiffLatest(path)
	if err != nil {
		return nil, err
	}
	return &DiffResult{Result: res, BackupPath: backupPath}, nil
}

// Doctor runs workspace health checks.
func (c *Client) Doctor() *doctor.Result {
	return doctor.NewDoctor(c.ws.Root, c.cfg, doctor.WithGetenv(c.opts.Getenv)).Check()
}

// Summarize tallies outcomes.
func Summarize(outcomes []model.RewriteOutcome) Summary {
	return rewrite.Summarize(outcomes)
}
