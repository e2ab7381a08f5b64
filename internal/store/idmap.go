package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
)

// IDMap is the SQLite identifier map of one migration. Rows live in
// migrate_map keyed by (migration_id, source_ids_hash); messages live in
// migrate_message.
type IDMap struct {
	db          *sql.DB
	migrationID string
	log         *zap.SugaredLogger
	now         func() time.Time
}

// NewIDMap binds an identifier map to a migration.
func NewIDMap(db *sql.DB, migrationID string, log *zap.SugaredLogger) *IDMap {
	return &IDMap{
		db:          db,
		migrationID: migrationID,
		log:         logger.OrNop(log).With("migration", migrationID),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MigrationID implements idmap.Map.
func (m *IDMap) MigrationID() string { return m.migrationID }

const entryColumns = `source_ids, destination_ids, source_row_status, rollback_action, hash, last_imported`

type scanner interface {
	Scan(dest ...interface{}) error
}

func (m *IDMap) scanEntry(s scanner) (*model.MapEntry, error) {
	var (
		srcJSON  string
		destJSON sql.NullString
		e        = model.MapEntry{MigrationID: m.migrationID}
	)
	if err := s.Scan(&srcJSON, &destJSON, &e.Status, &e.Rollback, &e.Hash, &e.LastImported); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(srcJSON), &e.SourceKey); err != nil {
		return nil, errors.Wrap(err, "decode source_ids")
	}
	if destJSON.Valid && destJSON.String != "" {
		if err := json.Unmarshal([]byte(destJSON.String), &e.DestinationKey); err != nil {
			return nil, errors.Wrap(err, "decode destination_ids")
		}
	}
	return &e, nil
}

// Lookup implements idmap.Map.
func (m *IDMap) Lookup(ctx context.Context, sourceKey model.Key) (*model.MapEntry, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM migrate_map WHERE migration_id = ? AND source_ids_hash = ?`,
		m.migrationID, sourceKey.Hash())
	e, err := m.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lookup %s", sourceKey)
	}
	return e, nil
}

// LookupDestination implements idmap.Map.
func (m *IDMap) LookupDestination(ctx context.Context, sourceKey model.Key) (model.Key, bool, error) {
	e, err := m.Lookup(ctx, sourceKey)
	if err != nil || e == nil || len(e.DestinationKey) == 0 {
		return nil, false, err
	}
	return e.DestinationKey, true, nil
}

// LookupSource implements idmap.Map.
func (m *IDMap) LookupSource(ctx context.Context, destKey model.Key) (model.Key, bool, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM migrate_map WHERE migration_id = ? AND destination_ids_hash = ?`,
		m.migrationID, destKey.Hash())
	e, err := m.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reverse lookup %s", destKey)
	}
	return e.SourceKey, true, nil
}

// RecordStatus implements idmap.Map. The entry and its message share one
// transaction.
func (m *IDMap) RecordStatus(ctx context.Context, rec model.MapRecord) error {
	srcJSON, err := json.Marshal(rec.SourceKey)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode source_ids"), errors.ErrPersistence)
	}
	var destJSON, destHash interface{}
	if len(rec.DestinationKey) > 0 {
		b, err := json.Marshal(rec.DestinationKey)
		if err != nil {
			return errors.Mark(errors.Wrap(err, "encode destination_ids"), errors.ErrPersistence)
		}
		destJSON, destHash = string(b), rec.DestinationKey.Hash()
	}
	now := m.now()
	srcHash := rec.SourceKey.Hash()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "begin id map tx"), errors.ErrPersistence)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO migrate_map
		(migration_id, source_ids_hash, source_ids, destination_ids_hash, destination_ids,
		 source_row_status, rollback_action, hash, last_imported)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (migration_id, source_ids_hash) DO UPDATE SET
			destination_ids_hash = excluded.destination_ids_hash,
			destination_ids = excluded.destination_ids,
			source_row_status = excluded.source_row_status,
			rollback_action = excluded.rollback_action,
			hash = excluded.hash,
			last_imported = excluded.last_imported`,
		m.migrationID, srcHash, string(srcJSON), destHash, destJSON,
		int(rec.Status), int(rec.Rollback), rec.Hash, now)
	if err != nil {
		tx.Rollback()
		return errors.Mark(errors.Wrapf(err, "upsert map entry %s", rec.SourceKey), errors.ErrPersistence)
	}

	if rec.Message != "" {
		level := rec.Level
		if level == 0 {
			level = model.LevelError
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO migrate_message
			(migration_id, source_ids_hash, source_ids, level, message, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.migrationID, srcHash, string(srcJSON), int(level), rec.Message, now)
		if err != nil {
			tx.Rollback()
			return errors.Mark(errors.Wrapf(err, "save message for %s", rec.SourceKey), errors.ErrPersistence)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Mark(errors.Wrap(err, "commit id map tx"), errors.ErrPersistence)
	}
	return nil
}

// NeedsUpdate implements idmap.Map.
func (m *IDMap) NeedsUpdate(ctx context.Context, sourceKey model.Key, hash string) (bool, error) {
	e, err := m.Lookup(ctx, sourceKey)
	if err != nil {
		return false, err
	}
	return idmap.NeedsUpdate(e, hash), nil
}

// ClearMessages implements idmap.Map.
func (m *IDMap) ClearMessages(ctx context.Context, sourceKey model.Key) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM migrate_message WHERE migration_id = ? AND source_ids_hash = ?`,
		m.migrationID, sourceKey.Hash())
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "clear messages of %s", sourceKey), errors.ErrPersistence)
	}
	return nil
}

// Messages implements idmap.Map.
func (m *IDMap) Messages(ctx context.Context) ([]model.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, source_ids, level, message, created_at FROM migrate_message
		 WHERE migration_id = ? ORDER BY id`, m.migrationID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			msg     model.Message
			srcJSON string
		)
		if err := rows.Scan(&msg.ID, &srcJSON, &msg.Level, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		if err := json.Unmarshal([]byte(srcJSON), &msg.SourceKey); err != nil {
			return nil, errors.Wrap(err, "decode message source_ids")
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Entries implements idmap.Map.
func (m *IDMap) Entries(ctx context.Context) ([]model.MapEntry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM migrate_map WHERE migration_id = ? ORDER BY source_ids`, m.migrationID)
	if err != nil {
		return nil, errors.Wrap(err, "list map entries")
	}
	defer rows.Close()

	var out []model.MapEntry
	for rows.Next() {
		e, err := m.scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan map entry")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Counts implements idmap.Map.
func (m *IDMap) Counts(ctx context.Context) (map[model.Status]int, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT source_row_status, COUNT(*) FROM migrate_map WHERE migration_id = ? GROUP BY source_row_status`,
		m.migrationID)
	if err != nil {
		return nil, errors.Wrap(err, "count map entries")
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var (
			status model.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan count")
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// MessageCount returns the number of messages of the migration.
func (m *IDMap) MessageCount(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM migrate_message WHERE migration_id = ?`, m.migrationID).Scan(&n)
	return n, errors.Wrap(err, "count messages")
}

// PrepareUpdate implements idmap.Map.
func (m *IDMap) PrepareUpdate(ctx context.Context) error {
	res, err := m.db.ExecContext(ctx,
		`UPDATE migrate_map SET source_row_status = ? WHERE migration_id = ?`,
		int(model.StatusNeedsUpdate), m.migrationID)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "prepare update"), errors.ErrPersistence)
	}
	n, _ := res.RowsAffected()
	m.log.Infow("Flagged entries for update", "entries", n)
	return nil
}

// Rollback implements idmap.Map.
func (m *IDMap) Rollback(ctx context.Context, destroy idmap.DestroyFunc) (int, error) {
	entries, err := m.Entries(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if idmap.ShouldDestroy(e) && destroy != nil {
			if err := destroy(ctx, e); err != nil {
				return n, errors.Wrapf(err, "roll back %s", e.SourceKey)
			}
		}
		if err := m.deleteEntry(ctx, e.SourceKey); err != nil {
			return n, err
		}
		n++
	}
	m.log.Infow("Rolled back identifier map", "entries", n)
	return n, nil
}

func (m *IDMap) deleteEntry(ctx context.Context, sourceKey model.Key) error {
	h := sourceKey.Hash()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "begin rollback tx"), errors.ErrPersistence)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM migrate_map WHERE migration_id = ? AND source_ids_hash = ?`, m.migrationID, h); err != nil {
		tx.Rollback()
		return errors.Mark(errors.Wrapf(err, "delete map entry %s", sourceKey), errors.ErrPersistence)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM migrate_message WHERE migration_id = ? AND source_ids_hash = ?`, m.migrationID, h); err != nil {
		tx.Rollback()
		return errors.Mark(errors.Wrapf(err, "delete messages of %s", sourceKey), errors.ErrPersistence)
	}
	if err := tx.Commit(); err != nil {
		return errors.Mark(errors.Wrap(err, "commit rollback tx"), errors.ErrPersistence)
	}
	return nil
}

var _ idmap.Map = (*IDMap)(nil)
