// Package destination provides the plugins a migration writes rows to.
package destination

import (
	"context"
	"encoding/json"
	"regexp"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// ImportResult is what a destination reports for a written row.
type ImportResult struct {
	// Key identifies the written record.
	Key model.Key
	// Rollback is RollbackPreserve when the record existed before this
	// migration wrote it.
	Rollback model.RollbackAction
}

// Destination persists processed rows.
type Destination interface {
	PluginID() string
	// Fields lists the properties the destination accepts, name to label.
	Fields() map[string]string
	// IDs names the properties that form the destination key.
	IDs() []string
	// Import writes the row. previous is the destination key recorded for the
	// row by an earlier run, if any.
	Import(ctx context.Context, row *model.Row, previous model.Key) (ImportResult, error)
	// Rollback deletes the record with key. A missing record is not an error.
	Rollback(ctx context.Context, key model.Key) error
}

// Registry is the destination plugin registry type.
type Registry = plugin.Registry[Destination]

// NewRegistry returns a registry holding every built-in destination plugin.
func NewRegistry() *Registry {
	r := plugin.NewRegistry[Destination]("destination")
	r.Register("table", newTable)
	r.Register("json", newJSONFiles)
	return r
}

// Default is the registry used when a caller does not supply its own.
var Default = NewRegistry()

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifier(kind, name string) error {
	if !identifier.MatchString(name) {
		return errors.InvalidConfig("%s %q is not a valid identifier", kind, name)
	}
	return nil
}

func quote(name string) string { return `"` + name + `"` }

// columnValue converts a destination property to something the sqlite driver
// stores. Lists and maps are stored as JSON text.
func columnValue(v interface{}) (interface{}, error) {
	if utils.IsScalar(v) {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode value")
	}
	return string(b), nil
}
