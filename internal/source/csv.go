package source

import (
	"context"
	"encoding/csv"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// csvSource reads a delimited file with a header row.
type csvSource struct {
	base
	path      string
	delimiter rune
	raw       bool
}

func newCSV(cfg plugin.Config, env plugin.Env) (Source, error) {
	b, err := newBase("csv", cfg)
	if err != nil {
		return nil, err
	}
	path, err := cfg.RequiredString("path")
	if err != nil {
		return nil, err
	}
	delim, err := cfg.String("delimiter", ",")
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(delim) != 1 {
		return nil, errors.InvalidConfig("csv delimiter must be a single character, got %q", delim)
	}
	// keep_strings disables numeric parsing of cells.
	raw, err := cfg.Bool("keep_strings", false)
	if err != nil {
		return nil, err
	}
	r, _ := utf8.DecodeRuneInString(delim)
	return &csvSource{base: b, path: resolvePath(env, path), delimiter: r, raw: raw}, nil
}

func (s *csvSource) Rows(ctx context.Context) iter.Seq2[map[string]interface{}, error] {
	return func(yield func(map[string]interface{}, error) bool) {
		rc, err := openResource(ctx, s.path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		reader := csv.NewReader(rc)
		reader.Comma = s.delimiter
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		headers, err := reader.Read()
		if err != nil {
			yield(nil, errors.Wrapf(err, "read CSV header of %s", s.path))
			return
		}
		for i, h := range headers {
			// Clean header names: trim whitespace and remove all quotes
			headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
		}

		line := 1
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			line++
			if err != nil {
				yield(nil, errors.Wrapf(err, "%s line %d", s.path, line))
				return
			}

			rec := make(map[string]interface{}, len(headers))
			for i, h := range headers {
				if i >= len(record) {
					rec[h] = nil
					continue
				}
				if s.raw {
					rec[h] = record[i]
				} else {
					rec[h] = utils.ParseValue(record[i])
				}
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *csvSource) Fields() map[string]string {
	if len(s.fields) > 0 {
		return s.base.Fields()
	}
	// Without declared fields the header row is the field list.
	out := make(map[string]string)
	rc, err := openResource(context.Background(), s.path)
	if err != nil {
		return out
	}
	defer rc.Close()
	reader := csv.NewReader(rc)
	reader.Comma = s.delimiter
	reader.LazyQuotes = true
	headers, err := reader.Read()
	if err != nil {
		return out
	}
	for _, h := range headers {
		h = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
		out[h] = h
	}
	return out
}

func (s *csvSource) Count(ctx context.Context) (int, error) { return countRows(ctx, s) }

func (s *csvSource) String() string { return s.path }
