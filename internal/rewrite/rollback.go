package rewrite

import (
	"context"
	"errors"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safeedit/safeedit/internal/audit"
	"github.com/safeedit/safeedit/internal/diff"
	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/model"
	"github.com/safeedit/safeedit/pkg/pathutil"
	"github.com/safeedit/safeedit/pkg/telemetry"
	"github.com/safeedit/safeedit/pkg/webhook"
)

// Rollback restores path from the newest logged backup that still exists on
// disk. Without a usable backup the file is not touched.
func (o *Orchestrator) Rollback(ctx context.Context, path string) model.RewriteOutcome {
	_, span := telemetry.Tracer().Start(ctx, "rewrite.Rollback", pathAttr(path))
	defer span.End()

	out := o.rollback(path)

	span.SetAttributes(attribute.Bool("safeedit.success", out.Success))
	if !out.Success {
		span.SetStatus(codes.Error, out.Message)
	}
	o.metrics.RecordRollback(out.Success)

	log := o.log.WithFields(map[string]any{"path": out.FilePath})
	event := webhook.Event{
		Event:      webhook.EventRollbackDone,
		FilePath:   out.FilePath,
		Stage:      string(out.Stage),
		Code:       out.Code,
		Message:    out.Message,
		BackupPath: out.BackupPath,
	}
	if out.Success {
		log.Info("rollback finished", map[string]any{"backup": out.BackupPath})
	} else {
		log.Error("rollback failed", map[string]any{"code": out.Code, "message": out.Message})
		event.Event = webhook.EventRollbackFailed
	}
	o.notify(event)
	return out
}

func (o *Orchestrator) rollback(path string) model.RewriteOutcome {
	out := model.RewriteOutcome{FilePath: path, Stage: model.StageStart}
	fail := func(err error) model.RewriteOutcome {
		out.FailedAt = out.Stage
		out.Stage = model.StageFailed
		out.Code = errclass.Code(err)
		out.Message = message(err)
		return out
	}

	_, key, err := pathutil.Resolve(o.root, path)
	if err != nil {
		return fail(err)
	}
	out.FilePath = key
	noBackup := errclass.ErrNoBackup.WithMessagef("no backup found for %s", key)

	last, err := o.oplog.FindLastBackup(key)
	switch {
	case errors.Is(err, errclass.ErrNoBackup):
		return fail(noBackup)
	case err != nil:
		return fail(errclass.ErrLog.WithMessage(err.Error()))
	}

	backups := []string{last}
	if _, err := os.Stat(last); err != nil {
		// The newest backup is gone; older ones may still be on disk.
		if backups, err = o.oplog.BackupsFor(key); err != nil {
			return fail(errclass.ErrLog.WithMessage(err.Error()))
		}
	}

	for _, b := range backups {
		if _, err := os.Stat(b); err != nil {
			o.log.Warn("skipping missing backup", map[string]any{"path": key, "backup": b})
			continue
		}
		out.BackupPath = b
		if !o.backups.Restore(key, b) {
			return fail(errclass.ErrRestore.WithMessagef("restore from %s failed", b))
		}
		out.Stage = model.StageDone
		out.Success = true
		out.Changed = true
		out.Message = "restored from " + b
		return out
	}
	return fail(noBackup)
}

// LatestBackup returns the newest backup of path that still exists: the last
// logged one if any, otherwise the newest on disk.
func (o *Orchestrator) LatestBackup(path string) (string, error) {
	_, key, err := pathutil.Resolve(o.root, path)
	if err != nil {
		return "", err
	}

	logged, err := o.oplog.BackupsFor(key)
	if err != nil && !errors.Is(err, audit.ErrNoLog) {
		return "", errclass.ErrLog.WithMessage(err.Error())
	}
	for _, b := range logged {
		if _, err := os.Stat(b); err == nil {
			return b, nil
		}
	}

	onDisk, err := o.backups.List(key)
	if err != nil {
		return "", err
	}
	if len(onDisk) == 0 {
		return "", errclass.ErrNoBackup.WithMessagef("no backup found for %s", key)
	}
	return onDisk[0].Path, nil
}

// DiffLatest compares the latest backup of path with its current content.
func (o *Orchestrator) DiffLatest(path string) (*diff.Result, string, error) {
	abs, key, err := o.resolveExisting(path)
	if err != nil {
		return nil, "", err
	}
	backupPath, err := o.LatestBackup(key)
	if err != nil {
		return nil, "", err
	}
	before, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, "", errclass.ErrNoBackup.WithMessagef("read backup: %v", err)
	}
	after, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", errclass.ErrFileNotFound.WithMessage(MsgNotFound)
	}
	res, err := o.differ.Diff(key, before, after)
	if err != nil {
		return nil, "", err
	}
	return res, backupPath, nil
}
