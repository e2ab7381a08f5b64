// Package plugin holds what source, process and destination plugins share:
// the option map they are constructed from, the environment handed to their
// constructors, and the name to constructor registry.
package plugin

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/pkg/utils"
)

// Config is the option map a plugin is constructed from.
type Config map[string]interface{}

// Has reports whether key is present, even with a nil value.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Value returns the raw option.
func (c Config) Value(key string) (interface{}, bool) {
	v, ok := c[key]
	return v, ok
}

// String returns a string option, or def when absent.
func (c Config) String(key, def string) (string, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	if !utils.IsScalar(v) {
		return "", errors.InvalidConfig("option %q must be a string", key)
	}
	return utils.ToString(v), nil
}

// RequiredString returns a non-empty string option.
func (c Config) RequiredString(key string) (string, error) {
	if !c.Has(key) {
		return "", errors.InvalidConfig("%q option is required", key)
	}
	s, err := c.String(key, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.InvalidConfig("%q option must not be empty", key)
	}
	return s, nil
}

// Bool returns a bool option. Accepts YAML booleans and "true"/"false"/"1"/"0".
func (c Config) Bool(key string, def bool) (bool, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, errors.InvalidConfig("option %q must be a boolean", key)
		}
		return parsed, nil
	case int:
		return b != 0, nil
	}
	return false, errors.InvalidConfig("option %q must be a boolean", key)
}

// Int returns an integer option.
func (c Config) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, nil
		}
	}
	return 0, errors.InvalidConfig("option %q must be an integer", key)
}

// Strings returns an option that may be a single string or a list of strings.
func (c Config) Strings(key string) ([]string, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, nil
	}
	if list, ok := utils.ToSlice(v); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if !utils.IsScalar(item) {
				return nil, errors.InvalidConfig("option %q must be a list of strings", key)
			}
			out = append(out, utils.ToString(item))
		}
		return out, nil
	}
	if !utils.IsScalar(v) {
		return nil, errors.InvalidConfig("option %q must be a string or a list of strings", key)
	}
	return []string{utils.ToString(v)}, nil
}

// Map returns a mapping option.
func (c Config) Map(key string) (map[string]interface{}, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		// yaml decodes mappings with non-string keys this way
		out := make(map[string]interface{}, len(m))
		for k, item := range m {
			if k == nil || !utils.IsScalar(k) {
				return nil, errors.InvalidConfig("option %q has a key that is not a scalar: %v", key, k)
			}
			out[utils.ToString(k)] = item
		}
		return out, nil
	}
	return nil, errors.InvalidConfig("option %q must be a mapping", key)
}

// LookupFunc resolves a source key through another migration's identifier map.
type LookupFunc func(ctx context.Context, migrationID string, sourceKey model.Key) (model.Key, bool, error)

// Env is what plugin constructors may depend on besides their options.
type Env struct {
	// MigrationID is the migration the plugin is built for.
	MigrationID string
	// BaseDir resolves relative file paths (the directory of the definition file).
	BaseDir string
	// DB is the target database used by sqlite sources and table destinations.
	DB *sql.DB
	// Output lays out files for file based destinations.
	Output *utils.OutputManager
	// Lookup reads other migrations' identifier maps.
	Lookup LookupFunc
	Logger *zap.SugaredLogger
}

// Path resolves p against BaseDir unless it is absolute.
func (e Env) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || e.BaseDir == "" {
		return p
	}
	return filepath.Join(e.BaseDir, p)
}
