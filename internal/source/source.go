// Package source provides the plugins a migration reads its rows from.
package source

import (
	"context"
	"io"
	"iter"
	"net/http"
	"os"
	"sort"
	"strings"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
)

// Source yields the rows of a migration.
type Source interface {
	PluginID() string
	// Fields describes the available source properties, name to label.
	Fields() map[string]string
	// IDs names the properties that together identify a row.
	IDs() []string
	// Rows iterates the records. Iteration stops at the first error.
	Rows(ctx context.Context) iter.Seq2[map[string]interface{}, error]
	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
	// String describes the source for reports.
	String() string
}

// Registry is the source plugin registry type.
type Registry = plugin.Registry[Source]

// NewRegistry returns a registry holding every built-in source plugin.
func NewRegistry() *Registry {
	r := plugin.NewRegistry[Source]("source")
	r.Register("embedded_data", newEmbedded)
	r.Register("csv", newCSV)
	r.Register("json", newJSON)
	r.Register("xml", newXML)
	r.Register("sqlite", newSQLite)
	return r
}

// Default is the registry used when a caller does not supply its own.
var Default = NewRegistry()

// FieldSpec is one entry of a source's "fields" option.
type FieldSpec struct {
	Name     string
	Label    string
	Selector string
}

// base carries the options every source shares.
type base struct {
	id     string
	ids    []string
	fields []FieldSpec
}

func newBase(id string, cfg plugin.Config) (base, error) {
	ids, err := parseIDs(cfg)
	if err != nil {
		return base{}, err
	}
	fields, err := parseFields(cfg)
	if err != nil {
		return base{}, err
	}
	return base{id: id, ids: ids, fields: fields}, nil
}

func (b base) PluginID() string { return b.id }
func (b base) IDs() []string    { return b.ids }

func (b base) Fields() map[string]string {
	out := make(map[string]string, len(b.fields))
	for _, f := range b.fields {
		out[f.Name] = f.Label
	}
	return out
}

// parseIDs accepts a list of property names, or a mapping of name to type
// information (keys are taken in sorted order).
func parseIDs(cfg plugin.Config) ([]string, error) {
	v, ok := cfg.Value("ids")
	if !ok || v == nil {
		return nil, errors.InvalidConfig("source %q option is required", "ids")
	}
	if m, ok := v.(map[string]interface{}); ok {
		ids := make([]string, 0, len(m))
		for k := range m {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		if len(ids) == 0 {
			return nil, errors.InvalidConfig("source %q option must not be empty", "ids")
		}
		return ids, nil
	}
	ids, err := cfg.Strings("ids")
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.InvalidConfig("source %q option must not be empty", "ids")
	}
	return ids, nil
}

// parseFields reads the optional "fields" list of {name, label, selector}.
func parseFields(cfg plugin.Config) ([]FieldSpec, error) {
	v, ok := cfg.Value("fields")
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, errors.InvalidConfig("source %q option must be a list", "fields")
	}
	out := make([]FieldSpec, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.InvalidConfig("source field %d must be a mapping", i)
		}
		fc := plugin.Config(m)
		name, err := fc.RequiredString("name")
		if err != nil {
			return nil, errors.Wrapf(err, "source field %d", i)
		}
		label, _ := fc.String("label", name)
		selector, _ := fc.String("selector", name)
		out = append(out, FieldSpec{Name: name, Label: label, Selector: selector})
	}
	return out, nil
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// resolvePath resolves a relative file path against the definition directory.
func resolvePath(env plugin.Env, p string) string {
	if isURL(p) {
		return p
	}
	return env.Path(p)
}

// openResource opens a local file, or fetches an http(s) URL.
func openResource(ctx context.Context, pathOrURL string) (io.ReadCloser, error) {
	if isURL(pathOrURL) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "build request for %s", pathOrURL)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "GET %s", pathOrURL)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.Newf("GET %s: %s", pathOrURL, resp.Status)
		}
		return resp.Body, nil
	}
	f, err := os.Open(pathOrURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", pathOrURL)
	}
	return f, nil
}

// countRows drains a source's iterator.
func countRows(ctx context.Context, s Source) (int, error) {
	n := 0
	for _, err := range s.Rows(ctx) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
