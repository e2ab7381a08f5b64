package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-migrate-pipeline/internal/model"
)

// maxSummaryMessages caps the row messages kept in a run summary. The id map
// keeps all of them.
const maxSummaryMessages = 200

// RunStore persists run summaries.
type RunStore interface {
	Save(ctx context.Context, s model.RunSummary) error
}

// RunTracker accumulates the counts of one run. It is safe to read Snapshot
// from another goroutine while the run is going.
type RunTracker struct {
	mu      sync.RWMutex
	summary model.RunSummary
	store   RunStore
	log     *zap.SugaredLogger
}

// NewRunTracker starts tracking a run and saves it as running. An empty
// runID gets a fresh one.
func NewRunTracker(ctx context.Context, runID, migrationID, operation string, store RunStore, log *zap.SugaredLogger) *RunTracker {
	if runID == "" {
		runID = NewRunID()
	}
	rt := &RunTracker{
		summary: model.RunSummary{
			RunID:       runID,
			MigrationID: migrationID,
			Operation:   operation,
			Status:      model.RunRunning,
			StartedAt:   time.Now().UTC(),
		},
		store: store,
		log:   log,
	}
	rt.persist(ctx)
	return rt
}

// NewRunID returns a new unique run id.
func NewRunID() string { return uuid.New().String() }

// RunID returns the run's id.
func (rt *RunTracker) RunID() string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.summary.RunID
}

func (rt *RunTracker) add(f func(s *model.RunSummary)) {
	rt.mu.Lock()
	f(&rt.summary)
	rt.mu.Unlock()
}

func (rt *RunTracker) Imported()  { rt.add(func(s *model.RunSummary) { s.Processed++; s.Imported++ }) }
func (rt *RunTracker) Updated()   { rt.add(func(s *model.RunSummary) { s.Processed++; s.Updated++ }) }
func (rt *RunTracker) Skipped()   { rt.add(func(s *model.RunSummary) { s.Processed++; s.Skipped++ }) }
func (rt *RunTracker) Failed()    { rt.add(func(s *model.RunSummary) { s.Processed++; s.Failed++ }) }
func (rt *RunTracker) Unchanged() { rt.add(func(s *model.RunSummary) { s.Unchanged++ }) }

// RolledBack sets the number of entries a rollback removed.
func (rt *RunTracker) RolledBack(n int) { rt.add(func(s *model.RunSummary) { s.RolledBack = n }) }

// Message adds a row message to the summary.
func (rt *RunTracker) Message(key model.Key, level model.MessageLevel, msg string) {
	if msg == "" {
		return
	}
	rt.add(func(s *model.RunSummary) {
		if len(s.Messages) < maxSummaryMessages {
			s.Messages = append(s.Messages, model.RowMessage{SourceKey: key, Level: level, Message: msg})
		}
	})
}

// Processed returns how many rows went through processing so far.
func (rt *RunTracker) Processed() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.summary.Processed
}

// Snapshot returns a copy of the summary as it stands.
func (rt *RunTracker) Snapshot() model.RunSummary {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	s := rt.summary
	s.Messages = append([]model.RowMessage(nil), rt.summary.Messages...)
	if s.FinishedAt.IsZero() {
		s.Duration = time.Since(s.StartedAt)
	}
	return s
}

// Finish closes the run with status and an optional error, saves it, and
// returns the final summary.
func (rt *RunTracker) Finish(ctx context.Context, status string, err error) model.RunSummary {
	rt.add(func(s *model.RunSummary) {
		s.Status = status
		s.FinishedAt = time.Now().UTC()
		s.Duration = s.FinishedAt.Sub(s.StartedAt)
		if err != nil {
			s.Error = err.Error()
		}
	})
	// The run context may already be cancelled; the final state must still land.
	rt.persist(context.WithoutCancel(ctx))
	return rt.Snapshot()
}

func (rt *RunTracker) persist(ctx context.Context) {
	if rt.store == nil {
		return
	}
	if err := rt.store.Save(ctx, rt.Snapshot()); err != nil {
		rt.log.Warnw("Failed to save run", "run_id", rt.RunID(), "error", err)
	}
}
