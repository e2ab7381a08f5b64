package model

import "time"

// Run operations
const (
	OperationImport   = "import"
	OperationRollback = "rollback"
)

// Run statuses
const (
	RunPending     = "pending"
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
	RunFailed      = "failed"
	// RunSkipped marks a migration left out of a batch because a required
	// dependency did not complete.
	RunSkipped = "skipped"
)

// RowMessage is a per-row diagnostic surfaced in a run summary.
type RowMessage struct {
	SourceKey Key          `json:"source_ids"`
	Level     MessageLevel `json:"level"`
	Message   string       `json:"message"`
}

// RunSummary is the end-of-run report of one import or rollback.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	MigrationID string        `json:"migration_id"`
	Operation   string        `json:"operation"`
	Status      string        `json:"status"`
	Processed   int           `json:"processed"`
	Imported    int           `json:"imported"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Unchanged   int           `json:"unchanged"`
	RolledBack  int           `json:"rolled_back"`
	Messages    []RowMessage  `json:"messages,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// StatusReport is the per-migration overview used by the status command and API.
type StatusReport struct {
	MigrationID string     `json:"migration_id"`
	Label       string     `json:"label"`
	Group       string     `json:"group,omitempty"`
	Total       int        `json:"total"`
	Imported    int        `json:"imported"`
	Unprocessed int        `json:"unprocessed"`
	NeedsUpdate int        `json:"needs_update"`
	Ignored     int        `json:"ignored"`
	Failed      int        `json:"failed"`
	Messages    int        `json:"messages"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastStatus  string     `json:"last_status,omitempty"`
	Error       string     `json:"error,omitempty"`
}
