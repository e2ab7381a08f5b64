package model

import (
	"time"

	"go-migrate-pipeline/internal/errors"
)

// Status is the outcome recorded for a source row in the identifier map.
type Status int

const (
	StatusImported Status = iota
	StatusNeedsUpdate
	StatusIgnored
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusImported:
		return "imported"
	case StatusNeedsUpdate:
		return "needs_update"
	case StatusIgnored:
		return "ignored"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the status name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for _, c := range []Status{StatusImported, StatusNeedsUpdate, StatusIgnored, StatusFailed} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return errors.Newf("unknown status %q", b)
}

// RollbackAction says what a rollback does with the destination record.
type RollbackAction int

const (
	// RollbackDelete removes the destination record on rollback.
	RollbackDelete RollbackAction = iota
	// RollbackPreserve keeps it; the record existed before the migration touched it.
	RollbackPreserve
)

func (a RollbackAction) String() string {
	if a == RollbackPreserve {
		return "preserve"
	}
	return "delete"
}

// MarshalText renders the action name in JSON.
func (a RollbackAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts an action name.
func (a *RollbackAction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "delete":
		*a = RollbackDelete
	case "preserve":
		*a = RollbackPreserve
	default:
		return errors.Newf("unknown rollback action %q", b)
	}
	return nil
}

// MessageLevel grades identifier map messages.
type MessageLevel int

const (
	LevelError MessageLevel = iota + 1
	LevelWarning
	LevelNotice
	LevelInformational
)

func (l MessageLevel) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNotice:
		return "notice"
	case LevelInformational:
		return "informational"
	}
	return "unknown"
}

// MarshalText renders the level name in JSON.
func (l MessageLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts a level name.
func (l *MessageLevel) UnmarshalText(b []byte) error {
	for c := LevelError; c <= LevelInformational; c++ {
		if c.String() == string(b) {
			*l = c
			return nil
		}
	}
	return errors.Newf("unknown message level %q", b)
}

// MapEntry is one row of the identifier map.
type MapEntry struct {
	MigrationID    string         `json:"migration_id"`
	SourceKey      Key            `json:"source_ids"`
	DestinationKey Key            `json:"destination_ids,omitempty"`
	Status         Status         `json:"source_row_status"`
	Rollback       RollbackAction `json:"rollback_action"`
	Hash           string         `json:"hash"`
	LastImported   time.Time      `json:"last_imported"`
}

// MapRecord is the input of an identifier map upsert.
type MapRecord struct {
	SourceKey      Key
	DestinationKey Key
	Status         Status
	Hash           string
	Rollback       RollbackAction
	Message        string
	Level          MessageLevel
}

// Message is a diagnostic attached to a source row.
type Message struct {
	ID        int64        `json:"id"`
	SourceKey Key          `json:"source_ids"`
	Level     MessageLevel `json:"level"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
}
