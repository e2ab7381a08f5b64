package source

import (
	"context"
	"fmt"
	"iter"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
)

// embedded serves rows written inline in the migration definition.
type embedded struct {
	base
	rows []map[string]interface{}
}

func newEmbedded(cfg plugin.Config, _ plugin.Env) (Source, error) {
	b, err := newBase("embedded_data", cfg)
	if err != nil {
		return nil, err
	}
	v, ok := cfg.Value("data_rows")
	if !ok {
		return nil, errors.InvalidConfig("%q option is required", "data_rows")
	}
	list, ok := v.([]interface{})
	if !ok && v != nil {
		return nil, errors.InvalidConfig("%q must be a list of mappings", "data_rows")
	}
	rows := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.InvalidConfig("data_rows[%d] must be a mapping", i)
		}
		rows = append(rows, m)
	}
	if b.fields == nil && len(rows) > 0 {
		for _, k := range sortedKeys(rows[0]) {
			b.fields = append(b.fields, FieldSpec{Name: k, Label: k, Selector: k})
		}
	}
	return &embedded{base: b, rows: rows}, nil
}

func (s *embedded) Rows(ctx context.Context) iter.Seq2[map[string]interface{}, error] {
	return func(yield func(map[string]interface{}, error) bool) {
		for _, r := range s.rows {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			cp := make(map[string]interface{}, len(r))
			for k, v := range r {
				cp[k] = v
			}
			if !yield(cp, nil) {
				return
			}
		}
	}
}

func (s *embedded) Count(context.Context) (int, error) { return len(s.rows), nil }

func (s *embedded) String() string { return fmt.Sprintf("embedded data (%d rows)", len(s.rows)) }
