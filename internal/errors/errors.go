// Package errors re-exports github.com/cockroachdb/errors for the migration
// runtime and declares the sentinel errors shared across packages.
//
// Wrap sentinels with Wrap/Wrapf to add context, or tag an unrelated error
// with Mark so that Is still matches:
//
//	if err := destination.Import(ctx, row); err != nil {
//	    return errors.Mark(errors.Wrap(err, "import row"), errors.ErrDestination)
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
	GetStack       = crdb.GetReportableStackTrace
)

var (
	// ErrInvalidConfig indicates a plugin or migration definition is missing a
	// required option or carries an invalid one. Fatal before a run starts.
	ErrInvalidConfig = New("invalid configuration")

	// ErrUnknownPlugin indicates no constructor is registered under a plugin id.
	ErrUnknownPlugin = New("unknown plugin")

	// ErrNotFound indicates the requested migration, entry or run does not exist.
	ErrNotFound = New("not found")

	// ErrDestination indicates the destination rejected a row.
	ErrDestination = New("destination write failed")

	// ErrPersistence indicates the identifier map could not be written.
	ErrPersistence = New("identifier map write failed")

	// ErrDependencyCycle indicates migration_dependencies form a cycle.
	ErrDependencyCycle = New("migration dependency cycle")

	// ErrRunInProgress indicates a migration already has a run in flight.
	ErrRunInProgress = New("migration run already in progress")
)

// InvalidConfig returns an ErrInvalidConfig wrapped with a formatted reason.
func InvalidConfig(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidConfig, format, args...)
}

// IsInvalidConfig checks if an error is or wraps ErrInvalidConfig
func IsInvalidConfig(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
