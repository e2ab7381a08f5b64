// Package idmap defines the identifier map: the per-migration table that
// correlates source keys with destination keys, the outcome of each row, and
// a hash of the source row for change detection.
package idmap

import (
	"context"

	"go-migrate-pipeline/internal/model"
)

// Map is the identifier map of one migration. Implementations must make
// each RecordStatus call atomic: the entry and its message are written
// together or not at all.
type Map interface {
	// MigrationID names the migration the map belongs to.
	MigrationID() string

	// Lookup returns the entry for a source key, or nil when there is none.
	Lookup(ctx context.Context, sourceKey model.Key) (*model.MapEntry, error)

	// LookupDestination returns the destination key recorded for a source key.
	LookupDestination(ctx context.Context, sourceKey model.Key) (model.Key, bool, error)

	// LookupSource is the reverse of LookupDestination.
	LookupSource(ctx context.Context, destKey model.Key) (model.Key, bool, error)

	// RecordStatus upserts the outcome of one row.
	RecordStatus(ctx context.Context, rec model.MapRecord) error

	// NeedsUpdate reports whether a row must be processed: no entry, a
	// different hash, or a needs_update/failed status.
	NeedsUpdate(ctx context.Context, sourceKey model.Key, hash string) (bool, error)

	// ClearMessages drops the messages of a source key. Status is kept.
	ClearMessages(ctx context.Context, sourceKey model.Key) error

	// Messages lists every message of the migration, oldest first.
	Messages(ctx context.Context) ([]model.Message, error)

	// Entries lists every entry of the migration.
	Entries(ctx context.Context) ([]model.MapEntry, error)

	// Counts returns the number of entries per status.
	Counts(ctx context.Context) (map[model.Status]int, error)

	// PrepareUpdate marks every entry needs_update so the next import
	// reprocesses all rows.
	PrepareUpdate(ctx context.Context) error

	// Rollback calls destroy for every entry whose destination must be
	// deleted, then removes the entry and its messages. Entries are handled
	// one at a time so an interrupted rollback can simply be run again.
	Rollback(ctx context.Context, destroy DestroyFunc) (int, error)
}

// DestroyFunc deletes the destination record of an entry. It must treat an
// already missing record as success.
type DestroyFunc func(ctx context.Context, entry model.MapEntry) error

// ShouldDestroy reports whether rollback must call destroy for the entry.
func ShouldDestroy(e model.MapEntry) bool {
	return len(e.DestinationKey) > 0 && e.Rollback == model.RollbackDelete
}

// NeedsUpdate applies the reprocessing rule to an entry that may be nil.
func NeedsUpdate(e *model.MapEntry, hash string) bool {
	if e == nil {
		return true
	}
	switch e.Status {
	case model.StatusNeedsUpdate, model.StatusFailed:
		return true
	}
	return e.Hash != hash
}
