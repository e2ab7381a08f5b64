// Package process implements process plugins: single transformation steps
// applied to one destination field's value.
//
// Plugins are stateless. Instead of flagging themselves as stopped they
// return a Result whose Signal tells the pipeline how to continue:
//
//	Continue   hand Value to the next plugin of the field
//	StopField  Value is final for this field; later fields still run
//	SkipRow    abandon the whole row, optionally recording it in the id map
//
// A returned error is a real failure and marks the row failed.
package process

import (
	"context"

	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
)

// Signal is the control decision a plugin returns with its value.
type Signal int

const (
	SignalContinue Signal = iota
	SignalStopField
	SignalSkipRow
)

func (s Signal) String() string {
	switch s {
	case SignalStopField:
		return "stop_field"
	case SignalSkipRow:
		return "skip_row"
	}
	return "continue"
}

// RecordPolicy overrides whether a skipped row is written to the id map.
type RecordPolicy int

const (
	// RecordDefault defers to the runner's configured policy.
	RecordDefault RecordPolicy = iota
	RecordAlways
	RecordNever
)

// Result is what a plugin returns for one value.
type Result struct {
	Value   interface{}
	Signal  Signal
	Message string       // SkipRow only
	Record  RecordPolicy // SkipRow only
}

// Continue passes v on to the next plugin.
func Continue(v interface{}) Result { return Result{Value: v} }

// StopField ends the current field's chain with v as its value.
func StopField(v interface{}) Result { return Result{Value: v, Signal: SignalStopField} }

// SkipRow abandons the row with an optional message.
func SkipRow(message string) Result { return Result{Signal: SignalSkipRow, Message: message} }

// Plugin is one process step.
type Plugin interface {
	// ID is the plugin id the instance was registered under.
	ID() string
	// Transform maps value to a Result. destination names the field being built.
	Transform(ctx context.Context, value interface{}, row *model.Row, destination string) (Result, error)
}

// Registry is the process plugin registry type.
type Registry = plugin.Registry[Plugin]

// NewRegistry returns a registry holding every built-in process plugin.
func NewRegistry() *Registry {
	r := plugin.NewRegistry[Plugin]("process")
	r.Register("get", newGet)
	r.Register("default_value", newDefaultValue)
	r.Register("skip_on_value", NewSkipOnValue)
	r.Register("skip_on_empty", newSkipOnEmpty)
	r.Register("static_map", newStaticMap)
	r.Register("concat", newConcat)
	r.Register("explode", newExplode)
	r.Register("trim", newStringTransform("trim"))
	r.Register("lowercase", newStringTransform("lowercase"))
	r.Register("uppercase", newStringTransform("uppercase"))
	r.Register("title_case", newStringTransform("title_case"))
	r.Register("migration_lookup", newMigrationLookup)
	return r
}

// Default is the registry used when a caller does not supply its own.
var Default = NewRegistry()
