package source

import (
	"context"
	"database/sql"
	"iter"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
)

// sqliteSource runs a SELECT against the target database.
type sqliteSource struct {
	base
	db    *sql.DB
	query string
}

func newSQLite(cfg plugin.Config, env plugin.Env) (Source, error) {
	b, err := newBase("sqlite", cfg)
	if err != nil {
		return nil, err
	}
	q, err := cfg.RequiredString("query")
	if err != nil {
		return nil, err
	}
	if env.DB == nil {
		return nil, errors.InvalidConfig("sqlite source needs a database connection")
	}
	return &sqliteSource{base: b, db: env.DB, query: q}, nil
}

func (s *sqliteSource) Rows(ctx context.Context) iter.Seq2[map[string]interface{}, error] {
	return func(yield func(map[string]interface{}, error) bool) {
		rows, err := s.db.QueryContext(ctx, s.query)
		if err != nil {
			yield(nil, errors.Wrapf(err, "query %q", s.query))
			return
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			yield(nil, errors.Wrap(err, "read columns"))
			return
		}
		for rows.Next() {
			vals := make([]interface{}, len(cols))
			ptrs := make([]interface{}, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(nil, errors.Wrap(err, "scan row"))
				return
			}
			rec := make(map[string]interface{}, len(cols))
			for i, c := range cols {
				if b, ok := vals[i].([]byte); ok {
					rec[c] = string(b)
				} else {
					rec[c] = vals[i]
				}
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, errors.Wrap(err, "iterate rows"))
		}
	}
}

func (s *sqliteSource) Fields() map[string]string {
	if len(s.fields) > 0 {
		return s.base.Fields()
	}
	out := make(map[string]string)
	rows, err := s.db.Query("SELECT * FROM (" + s.query + ") LIMIT 0")
	if err != nil {
		return out
	}
	defer rows.Close()
	cols, _ := rows.Columns()
	for _, c := range cols {
		out[c] = c
	}
	return out
}

func (s *sqliteSource) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ("+s.query+")").Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count %q", s.query)
	}
	return n, nil
}

func (s *sqliteSource) String() string { return s.query }
