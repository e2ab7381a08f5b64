package source

import (
	"context"
	"encoding/json"
	"iter"
	"strconv"
	"strings"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
)

// jsonSource reads records from a JSON document, a file or an http(s) URL.
type jsonSource struct {
	base
	path         string
	itemSelector []string
}

func newJSON(cfg plugin.Config, env plugin.Env) (Source, error) {
	b, err := newBase("json", cfg)
	if err != nil {
		return nil, err
	}
	path, err := cfg.RequiredString("path")
	if err != nil {
		return nil, err
	}
	sel, err := cfg.String("item_selector", "")
	if err != nil {
		return nil, err
	}
	return &jsonSource{base: b, path: resolvePath(env, path), itemSelector: splitSelector(sel)}, nil
}

// splitSelector accepts "data.items", "/data/items" and "data/items".
func splitSelector(sel string) []string {
	sel = strings.Trim(sel, "/.")
	if sel == "" {
		return nil
	}
	return strings.FieldsFunc(sel, func(r rune) bool { return r == '/' || r == '.' })
}

// selectPath walks maps by key and lists by index.
func selectPath(v interface{}, path []string) (interface{}, bool) {
	for _, p := range path {
		switch node := v.(type) {
		case map[string]interface{}:
			next, ok := node[p]
			if !ok {
				return nil, false
			}
			v = next
		case []interface{}:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func (s *jsonSource) Rows(ctx context.Context) iter.Seq2[map[string]interface{}, error] {
	return func(yield func(map[string]interface{}, error) bool) {
		items, err := s.items(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			m, ok := item.(map[string]interface{})
			if !ok {
				yield(nil, errors.Newf("%s: item %d is not an object", s.path, i))
				return
			}
			if !yield(s.project(m), nil) {
				return
			}
		}
	}
}

func (s *jsonSource) items(ctx context.Context) ([]interface{}, error) {
	rc, err := openResource(ctx, s.path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var raw interface{}
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "decode JSON from %s", s.path)
	}
	sel, ok := selectPath(raw, s.itemSelector)
	if !ok {
		return nil, errors.Newf("%s: item_selector %q matched nothing", s.path, strings.Join(s.itemSelector, "/"))
	}
	switch data := sel.(type) {
	case []interface{}:
		return data, nil
	case map[string]interface{}:
		return []interface{}{data}, nil
	}
	return nil, errors.Newf("%s: unexpected JSON structure at item_selector", s.path)
}

// project applies the field selectors, or passes the item through when no
// fields are declared.
func (s *jsonSource) project(item map[string]interface{}) map[string]interface{} {
	if len(s.fields) == 0 {
		return item
	}
	out := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		v, _ := selectPath(item, splitSelector(f.Selector))
		out[f.Name] = v
	}
	return out
}

func (s *jsonSource) Count(ctx context.Context) (int, error) {
	items, err := s.items(ctx)
	return len(items), err
}

func (s *jsonSource) String() string { return s.path }
