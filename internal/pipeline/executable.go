package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"go-migrate-pipeline/internal/destination"
	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/process"
	"go-migrate-pipeline/internal/source"
)

// Migration is a definition with its plugins constructed.
type Migration struct {
	Definition  *model.MigrationDefinition
	Source      source.Source
	Process     *Pipeline
	Destination destination.Destination
}

// ID returns the migration id.
func (m *Migration) ID() string { return m.Definition.ID }

// Options tune one run.
type Options struct {
	// Limit stops the import after this many processed rows. Zero means no limit.
	Limit int
	// IDList restricts the import to these source keys.
	IDList []model.Key
	// Update reprocesses every row, changed or not.
	Update bool
	// RecordSkippedRows writes skipped rows to the id map as ignored unless
	// the skipping plugin says otherwise.
	RecordSkippedRows bool
	Retry             model.RetryConfig
	// RunID names the run. Empty means a fresh id.
	RunID string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{RecordSkippedRows: true, Retry: model.DefaultRetryConfig}
}

// Executable runs one migration against its id map.
type Executable struct {
	Migration *Migration
	IDMap     idmap.Map
	Options   Options
	// Runs receives the run summary when set.
	Runs   RunStore
	Logger *zap.SugaredLogger

	tracker atomic.Pointer[RunTracker]
}

// NewExecutable wires an executable. A nil logger logs nowhere.
func NewExecutable(m *Migration, ids idmap.Map, opts Options, runs RunStore, log *zap.SugaredLogger) *Executable {
	return &Executable{
		Migration: m,
		IDMap:     ids,
		Options:   opts,
		Runs:      runs,
		Logger:    logger.OrNop(log).With("migration", m.ID()),
	}
}

// Progress returns the summary of the run in flight, or false when no run
// has started.
func (e *Executable) Progress() (model.RunSummary, bool) {
	rt := e.tracker.Load()
	if rt == nil {
		return model.RunSummary{}, false
	}
	return rt.Snapshot(), true
}

func (e *Executable) log() *zap.SugaredLogger { return logger.OrNop(e.Logger) }

// Import processes the source rows and writes them to the destination.
//
// Rows are handled one at a time. Rows that did not change since the last
// import are left alone. A skipped or failed row is recorded in the id map
// and the run moves on; only a source error or cancellation ends it early.
func (e *Executable) Import(ctx context.Context) (model.RunSummary, error) {
	log := e.log()
	rt := NewRunTracker(ctx, e.Options.RunID, e.Migration.ID(), model.OperationImport, e.Runs, log)
	e.tracker.Store(rt)
	log.Infow("Import started", "run_id", rt.RunID(), "source", e.Migration.Source.String())

	if e.Options.Update {
		if err := e.IDMap.PrepareUpdate(ctx); err != nil {
			return rt.Finish(ctx, model.RunFailed, err), err
		}
	}

	ids := e.Migration.Source.IDs()
	for rec, err := range e.Migration.Source.Rows(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return e.interrupted(ctx, rt)
			}
			err = errors.Wrapf(err, "read source %s", e.Migration.Source.PluginID())
			log.Errorw("Import aborted", "run_id", rt.RunID(), "error", err)
			return rt.Finish(ctx, model.RunFailed, err), err
		}
		if ctx.Err() != nil {
			return e.interrupted(ctx, rt)
		}
		if e.Options.Limit > 0 && rt.Processed() >= e.Options.Limit {
			break
		}

		row, err := model.NewRow(rec, ids)
		if err != nil {
			log.Warnw("Row has no usable source key", "error", err)
			rt.Failed()
			rt.Message(nil, model.LevelError, err.Error())
			continue
		}
		if !e.selected(row.SourceIDs()) {
			continue
		}
		if err := e.importRow(ctx, rt, row); err != nil {
			if ctx.Err() != nil {
				return e.interrupted(ctx, rt)
			}
			log.Errorw("Import aborted", "run_id", rt.RunID(), "error", err)
			return rt.Finish(ctx, model.RunFailed, err), err
		}
	}
	if ctx.Err() != nil {
		return e.interrupted(ctx, rt)
	}

	s := rt.Finish(ctx, model.RunCompleted, nil)
	log.Infow("Import finished", "run_id", s.RunID,
		"imported", s.Imported, "updated", s.Updated, "skipped", s.Skipped,
		"failed", s.Failed, "unchanged", s.Unchanged, "duration", s.Duration)
	return s, nil
}

func (e *Executable) interrupted(ctx context.Context, rt *RunTracker) (model.RunSummary, error) {
	e.log().Warnw("Import interrupted", "run_id", rt.RunID(), "processed", rt.Processed())
	return rt.Finish(ctx, model.RunInterrupted, ctx.Err()), ctx.Err()
}

func (e *Executable) selected(key model.Key) bool {
	if len(e.Options.IDList) == 0 {
		return true
	}
	for _, k := range e.Options.IDList {
		if k.Equal(key) {
			return true
		}
	}
	return false
}

// importRow handles one row. Per-row failures are recorded and counted; the
// returned error is reserved for id map read failures and cancellation,
// which end the run.
func (e *Executable) importRow(ctx context.Context, rt *RunTracker, row *model.Row) error {
	log := e.log()
	key := row.SourceIDs()
	hash := row.Hash()

	entry, err := e.IDMap.Lookup(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "look up %s", key)
	}
	if !idmap.NeedsUpdate(entry, hash) {
		rt.Unchanged()
		return nil
	}

	row.Freeze()
	if err := e.IDMap.ClearMessages(ctx, key); err != nil {
		log.Warnw("Failed to clear messages", "source_ids", key.String(), "error", err)
	}

	outcome, err := e.Migration.Process.Process(ctx, row)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.fail(ctx, rt, key, hash, entry, err)
		return nil
	}
	if outcome.Skipped {
		e.skip(ctx, rt, key, hash, entry, outcome)
		return nil
	}

	var previous model.Key
	if entry != nil {
		previous = entry.DestinationKey
	}
	var res destination.ImportResult
	attempts, err := withRetry(ctx, e.Options.Retry, log, func() error {
		var ierr error
		res, ierr = e.Migration.Destination.Import(ctx, row, previous)
		return ierr
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = errors.Mark(errors.Wrapf(err, "destination %s", e.Migration.Destination.PluginID()), errors.ErrDestination)
		e.fail(ctx, rt, key, hash, entry, err)
		return nil
	}

	// The first import decides whether a record belongs to this migration.
	action := res.Rollback
	existed := entry != nil && len(entry.DestinationKey) > 0
	if existed {
		action = entry.Rollback
	}
	err = e.IDMap.RecordStatus(ctx, model.MapRecord{
		SourceKey:      key,
		DestinationKey: res.Key,
		Status:         model.StatusImported,
		Hash:           hash,
		Rollback:       action,
	})
	if err != nil {
		log.Errorw("Failed to record imported row", "source_ids", key.String(), "destination_ids", res.Key.String(), "error", err)
		rt.Failed()
		rt.Message(key, model.LevelError, err.Error())
		return nil
	}
	if existed {
		rt.Updated()
	} else {
		rt.Imported()
	}
	log.Debugw("Row imported", "source_ids", key.String(), "destination_ids", res.Key.String(), "attempts", attempts)
	return nil
}

// kept carries over the destination of an earlier import so a later
// rollback still finds it.
func kept(rec model.MapRecord, prev *model.MapEntry) model.MapRecord {
	if prev != nil && len(prev.DestinationKey) > 0 {
		rec.DestinationKey = prev.DestinationKey
		rec.Rollback = prev.Rollback
	}
	return rec
}

func (e *Executable) fail(ctx context.Context, rt *RunTracker, key model.Key, hash string, prev *model.MapEntry, cause error) {
	log := e.log()
	log.Warnw("Row failed", "source_ids", key.String(), "error", cause)
	rt.Failed()
	rt.Message(key, model.LevelError, cause.Error())
	err := e.IDMap.RecordStatus(ctx, kept(model.MapRecord{
		SourceKey: key,
		Status:    model.StatusFailed,
		Hash:      hash,
		Message:   cause.Error(),
		Level:     model.LevelError,
	}, prev))
	if err != nil {
		log.Errorw("Failed to record failed row", "source_ids", key.String(), "error", err)
	}
}

func (e *Executable) skip(ctx context.Context, rt *RunTracker, key model.Key, hash string, prev *model.MapEntry, o Outcome) {
	log := e.log()
	record := e.Options.RecordSkippedRows
	switch o.Record {
	case process.RecordAlways:
		record = true
	case process.RecordNever:
		record = false
	}
	if record {
		err := e.IDMap.RecordStatus(ctx, kept(model.MapRecord{
			SourceKey: key,
			Status:    model.StatusIgnored,
			Hash:      hash,
			Message:   o.Message,
			Level:     model.LevelInformational,
		}, prev))
		if err != nil {
			log.Errorw("Failed to record skipped row", "source_ids", key.String(), "error", err)
			rt.Failed()
			rt.Message(key, model.LevelError, err.Error())
			return
		}
	}
	rt.Skipped()
	rt.Message(key, model.LevelInformational, o.Message)
	log.Debugw("Row skipped", "source_ids", key.String(), "field", o.Field, "plugin", o.Plugin, "message", o.Message)
}

// Rollback deletes every destination record the migration created and
// clears its id map. Records that existed before the migration touched them
// are kept.
func (e *Executable) Rollback(ctx context.Context) (model.RunSummary, error) {
	log := e.log()
	rt := NewRunTracker(ctx, e.Options.RunID, e.Migration.ID(), model.OperationRollback, e.Runs, log)
	e.tracker.Store(rt)
	log.Infow("Rollback started", "run_id", rt.RunID())

	n, err := e.IDMap.Rollback(ctx, func(ctx context.Context, entry model.MapEntry) error {
		return e.Migration.Destination.Rollback(ctx, entry.DestinationKey)
	})
	rt.RolledBack(n)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Warnw("Rollback interrupted", "run_id", rt.RunID(), "rolled_back", n)
		return rt.Finish(ctx, model.RunInterrupted, ctx.Err()), ctx.Err()
	case err != nil:
		err = errors.Wrap(err, "rollback")
		log.Errorw("Rollback failed", "run_id", rt.RunID(), "rolled_back", n, "error", err)
		return rt.Finish(ctx, model.RunFailed, err), err
	}
	s := rt.Finish(ctx, model.RunCompleted, nil)
	log.Infow("Rollback finished", "run_id", s.RunID, "rolled_back", n, "duration", s.Duration)
	return s, nil
}
