// Package rewrite drives the safe rewrite pipeline for one file at a time:
// backup, validation, generation, syntax check, change audit, write, log, and
// restoration when the write fails. It also implements rollback.
package rewrite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/safeedit/safeedit/internal/audit"
	"github.com/safeedit/safeedit/internal/backup"
	"github.com/safeedit/safeedit/internal/diff"
	"github.com/safeedit/safeedit/internal/generate"
	"github.com/safeedit/safeedit/internal/safety"
	"github.com/safeedit/safeedit/internal/syntax"
	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/fsutil"
	"github.com/safeedit/safeedit/pkg/logging"
	"github.com/safeedit/safeedit/pkg/metrics"
	"github.com/safeedit/safeedit/pkg/webhook"
)

// Writer replaces the content of the file at path.
type Writer func(path string, data []byte) error

// Notifier publishes terminal outcomes.
type Notifier interface {
	Send(event webhook.Event, async bool) error
}

// Options controls a single rewrite.
type Options struct {
	Kind   string
	DryRun bool
}

// Orchestrator owns the collaborators of the pipeline. It is not safe for
// concurrent use; batches run strictly one file after another.
type Orchestrator struct {
	root string
	cfg  *config.Config

	backups   *backup.Store
	validator *safety.Validator
	checker   *syntax.Checker
	oplog     *audit.Log
	differ    *diff.Differ
	gen       generate.Generator

	write    Writer
	limiter  *rate.Limiter
	metrics  *metrics.Registry
	notifier Notifier
	log      *logging.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWriter replaces the file writer, mainly to inject faults in tests.
func WithWriter(w Writer) Option {
	return func(o *Orchestrator) { o.write = w }
}

// WithMetrics records pipeline metrics in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithNotifier publishes outcomes through n.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock overrides the clock for log entries and backup names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDFunc overrides operation id generation.
func WithIDFunc(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// WithSyntaxChecker replaces the checker built from config.
func WithSyntaxChecker(c *syntax.Checker) Option {
	return func(o *Orchestrator) { o.checker = c }
}

// New creates an orchestrator for the workspace at root. gen may be nil for
// callers that only roll back, check or diff.
func New(root string, cfg *config.Config, gen generate.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		root:      root,
		cfg:       cfg,
		validator: safety.New(cfg.Safety),
		checker:   syntax.New(cfg.Syntax),
		oplog:     audit.NewLog(cfg.LogPath(root)),
		differ:    diff.NewDiffer(diff.DefaultContext),
		gen:       gen,
		write:     fsutil.ReplaceFile,
		limiter:   newLimiter(cfg.Generation.RequestsPerMinute),
		metrics:   metrics.Default(),
		log:       logging.Global(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.backups = backup.New(root, cfg.BackupDir(root), backup.WithClock(o.now), backup.WithLogger(o.log))
	return o
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// Backups returns the backup store.
func (o *Orchestrator) Backups() *backup.Store {
	return o.backups
}

// Log returns the operation log.
func (o *Orchestrator) Log() *audit.Log {
	return o.oplog
}

func (o *Orchestrator) notify(event webhook.Event) {
	if o.notifier == nil {
		return
	}
	event.Workspace = o.root
	if err := o.notifier.Send(event, true); err != nil {
		o.log.ErrorErr("webhook send failed", err, map[string]any{"event": string(event.Event)})
	}
}

// message strips the class code; the code is reported separately in the
// outcome.
func message(err error) string {
	return errclass.Message(err)
}

// Check validates the current content of path and runs its syntax checker
// without generating anything.
func (o *Orchestrator) Check(ctx context.Context, path string) (*CheckReport, error) {
	abs, key, err := o.resolveExisting(path)
	if err != nil {
		return nil, err
	}
	content, err := readFile(abs)
	if err != nil {
		return nil, err
	}
	return &CheckReport{
		FilePath:    key,
		Fingerprint: string(fingerprint(content)),
		Issues:      o.validator.Validate(key, content),
		Syntax:      o.checker.Check(ctx, key, content),
	}, nil
}
