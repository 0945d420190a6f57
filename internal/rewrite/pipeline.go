package rewrite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/safeedit/safeedit/internal/generate"
	"github.com/safeedit/safeedit/internal/integrity"
	"github.com/safeedit/safeedit/internal/safety"
	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/logging"
	"github.com/safeedit/safeedit/pkg/model"
	"github.com/safeedit/safeedit/pkg/pathutil"
	"github.com/safeedit/safeedit/pkg/telemetry"
	"github.com/safeedit/safeedit/pkg/webhook"
)

// Outcome messages.
const (
	MsgSuccess   = "success"
	MsgNoChanges = "no changes required"
	MsgDryRun    = "dry run: changes not written"
	MsgNotFound  = "file not found"
)

// CheckReport is the result of Check.
type CheckReport struct {
	FilePath    string              `json:"filepath"`
	Fingerprint string              `json:"fingerprint"`
	Issues      []model.SafetyIssue `json:"issues"`
	Syntax      model.SyntaxResult  `json:"syntax"`
}

func fingerprint(b []byte) model.Fingerprint {
	return integrity.Fingerprint(b)
}

func (o *Orchestrator) resolveExisting(path string) (abs, key string, err error) {
	abs, key, err = pathutil.Resolve(o.root, path)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", "", errclass.ErrFileNotFound.WithMessage(MsgNotFound)
	}
	return abs, key, nil
}

func readFile(abs string) ([]byte, error) {
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errclass.ErrBackup.WithMessagef("read file: %v", err)
	}
	return content, nil
}

// attempt tracks one pass through the state machine.
type attempt struct {
	o   *Orchestrator
	ctx context.Context
	out model.RewriteOutcome
	log *logging.Logger
}

// step opens a span for one stage; the returned func ends it, recording err.
func (a *attempt) step(name string) (context.Context, func(error)) {
	ctx, span := telemetry.Tracer().Start(a.ctx, "rewrite."+name, pathAttr(a.out.FilePath))
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, message(err))
		}
		span.End()
		a.o.metrics.ObserveStage(name, time.Since(start))
	}
}

func (a *attempt) advance(stage model.Stage) {
	a.out.Stage = stage
	a.log.Debug("stage reached", map[string]any{"stage": string(stage)})
}

func (a *attempt) fail(err error) model.RewriteOutcome {
	a.out.FailedAt = a.out.Stage
	a.out.Stage = model.StageFailed
	a.out.Success = false
	a.out.Code = errclass.Code(err)
	a.out.Message = message(err)
	return a.out
}

func (a *attempt) succeed(msg string) model.RewriteOutcome {
	a.out.Stage = model.StageDone
	a.out.Success = true
	a.out.Message = msg
	return a.out
}

// Improve runs the rewrite pipeline on one file. Failures are reported in the
// outcome, never returned; the file is left untouched unless the outcome says
// it was written or restored.
func (o *Orchestrator) Improve(ctx context.Context, path string, opts Options) model.RewriteOutcome {
	if opts.Kind == "" {
		opts.Kind = model.DefaultImprovementKind
	}

	ctx, span := telemetry.Tracer().Start(ctx, "rewrite.Improve", pathAttr(path))
	defer span.End()

	a := &attempt{
		o:   o,
		ctx: ctx,
		out: model.RewriteOutcome{FilePath: path, Stage: model.StageStart},
		log: o.log.WithFields(map[string]any{"path": path, "kind": opts.Kind}),
	}

	out := a.run(opts)

	span.SetAttributes(
		attribute.String("safeedit.stage", string(out.Stage)),
		attribute.Bool("safeedit.success", out.Success),
	)
	if !out.Success {
		span.SetStatus(codes.Error, out.Message)
	}
	o.metrics.RecordRewrite(string(out.Stage), out.Success)
	o.report(a.log, out, !opts.DryRun)
	return out
}

func (a *attempt) run(opts Options) model.RewriteOutcome {
	o := a.o

	abs, key, err := o.resolveExisting(a.out.FilePath)
	if err != nil {
		return a.fail(err)
	}
	a.out.FilePath = key

	// Backup must exist before anything else runs.
	_, end := a.step("backup")
	rec, err := o.backups.Create(key)
	end(err)
	if err != nil {
		return a.fail(err)
	}
	a.out.BackupPath = rec.BackupPath
	a.advance(model.StageBackedUp)
	original := rec.Content

	// Pre-generation findings are advisory.
	_, end = a.step("validate_pre")
	for _, issue := range o.validator.Validate(key, original) {
		o.metrics.RecordSafetyIssue("pre", string(issue.Kind))
		a.log.Warn("pre-generation safety warning", map[string]any{"issue": issue.String()})
	}
	end(nil)
	a.advance(model.StageValidatedPre)

	improved, err := a.generate(key, opts.Kind, original)
	if err != nil {
		return a.fail(err)
	}
	a.advance(model.StageGenerated)

	_, end = a.step("validate_post")
	issues := safety.Blocking(o.validator.Validate(key, improved))
	for _, issue := range issues {
		o.metrics.RecordSafetyIssue("post", string(issue.Kind))
	}
	if len(issues) > 0 {
		err := errclass.ErrSafetyViolation.WithMessage(safety.Describe(issues))
		end(err)
		return a.fail(err)
	}
	end(nil)
	a.advance(model.StageValidatedPost)

	sctx, end := a.step("syntax_check")
	res := o.checker.Check(sctx, key, improved)
	if !res.Passed {
		err := errclass.ErrSyntax.WithMessage(res.Message)
		end(err)
		return a.fail(err)
	}
	end(nil)
	a.advance(model.StageSyntaxChecked)

	origFP, newFP := integrity.Fingerprint(original), integrity.Fingerprint(improved)
	if integrity.NoChangeDetected(origFP, newFP) {
		return a.succeed(MsgNoChanges)
	}
	a.out.Changed = true

	ratio := integrity.ChangeRatio(original, improved)
	a.out.Ratio = ratio
	if integrity.LargeChange(ratio, o.cfg.Safety.LargeChangeThreshold) {
		a.log.Warn("large change detected", map[string]any{"change_ratio": fmt.Sprintf("%.1f%%", ratio*100)})
	}
	if gate := o.cfg.Safety.RequireConfirmationAbove; gate > 0 && ratio > gate {
		return a.fail(errclass.ErrLargeChange.WithMessagef(
			"large change: %.1f%% of content modified exceeds %.1f%%", ratio*100, gate*100))
	}

	d, err := o.differ.Diff(key, original, improved)
	if err != nil {
		// Diff stats are informational only.
		a.log.ErrorErr("diff failed", err)
	}

	if opts.DryRun {
		if d != nil {
			a.out.Diff = d.Unified
		}
		return a.succeed(MsgDryRun)
	}

	_, end = a.step("write")
	if err := o.write(abs, improved); err != nil {
		end(err)
		return a.restoreAfterWriteFailure(key, rec.BackupPath, err)
	}
	end(nil)
	a.advance(model.StageWritten)

	entry := model.OperationLogEntry{
		OperationID:         o.newID(),
		Timestamp:           o.now().UTC(),
		FilePath:            key,
		ImprovementKind:     opts.Kind,
		OriginalFingerprint: origFP,
		NewFingerprint:      newFP,
		BackupPath:          rec.BackupPath,
		ModelIdentifier:     o.gen.Model(),
		SafetyChecksPassed:  true,
		ChangeRatio:         ratio,
	}
	if d != nil {
		entry.LinesAdded, entry.LinesRemoved = d.LinesAdded, d.LinesRemoved
	}

	_, end = a.step("log")
	if err := o.oplog.Append(entry); err != nil {
		end(err)
		// The write stands; only rollback-by-log loses track of it.
		return a.fail(errclass.ErrLog.WithMessagef(
			"file was written but the operation log was not updated: %s", message(err)))
	}
	end(nil)
	a.advance(model.StageLogged)

	o.metrics.ObserveChangeRatio(ratio)
	return a.succeed(MsgSuccess)
}

func (a *attempt) generate(key, kind string, original []byte) ([]byte, error) {
	o := a.o
	if o.gen == nil {
		return nil, errclass.ErrGeneration.WithMessage("no generator configured")
	}

	ctx, end := a.step("generate")
	if err := o.limiter.Wait(ctx); err != nil {
		err = errclass.ErrGeneration.WithMessagef("generation failed: %v", err)
		end(err)
		return nil, err
	}

	timeout := o.cfg.Generation.Timeout.Std()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := o.gen.Generate(ctx, generate.Request{Path: key, Kind: kind, Content: original})
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = errclass.ErrGeneration.WithMessagef("generation timed out after %s", timeout)
		case errclass.Code(err) == "":
			err = errclass.ErrGeneration.WithMessagef("generation failed: %v", err)
		}
		end(err)
		return nil, err
	}
	end(nil)

	if raw == string(original) {
		return original, nil
	}
	return generate.MatchTrailingNewline(original, []byte(generate.StripFences(raw))), nil
}

func (a *attempt) restoreAfterWriteFailure(key, backupPath string, writeErr error) model.RewriteOutcome {
	o := a.o
	_, end := a.step("restore")
	restored := o.backups.Restore(key, backupPath)
	o.metrics.RecordRestore(restored)

	a.out.FailedAt = a.out.Stage
	a.out.Stage = model.StageRestoredAfterFailure
	a.out.Success = false
	if restored {
		end(nil)
		a.out.Code = errclass.ErrWrite.Code
		a.out.Message = fmt.Sprintf("write failed: %v; restored from backup %s", writeErr, backupPath)
	} else {
		err := errclass.ErrRestore.WithMessagef("restore from %s failed", backupPath)
		end(err)
		a.out.Code = errclass.ErrRestore.Code
		a.out.Message = fmt.Sprintf("write failed: %v; restore from backup %s failed", writeErr, backupPath)
	}
	return a.out
}

func (o *Orchestrator) report(log *logging.Logger, out model.RewriteOutcome, publish bool) {
	fields := map[string]any{
		"stage":   string(out.Stage),
		"success": out.Success,
		"message": out.Message,
	}
	if out.Code != "" {
		fields["code"] = out.Code
	}

	event := webhook.Event{
		FilePath:   out.FilePath,
		Stage:      string(out.Stage),
		Code:       out.Code,
		Message:    out.Message,
		BackupPath: out.BackupPath,
	}
	switch {
	case out.Success && out.Changed:
		log.Info("rewrite finished", fields)
		event.Event = webhook.EventRewriteSucceeded
		event.Metadata = map[string]any{"change_ratio": out.Ratio}
	case out.Success:
		log.Info("rewrite finished", fields)
		event.Event = webhook.EventRewriteUnchanged
	default:
		log.Error("rewrite failed", fields)
		event.Event = webhook.EventRewriteFailed
	}
	if publish {
		o.notify(event)
	}
}

func pathAttr(path string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("safeedit.path", path))
}
