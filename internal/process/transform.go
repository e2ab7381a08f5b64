package process

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
)

// stringTransform applies a text operation to string values and leaves any
// other value untouched.
type stringTransform struct {
	id string
	fn func(string) string
}

func newStringTransform(id string) plugin.Factory[Plugin] {
	return func(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
		var fn func(string) string
		switch id {
		case "trim":
			chars, err := cfg.String("chars", "")
			if err != nil {
				return nil, err
			}
			fn = strings.TrimSpace
			if chars != "" {
				fn = func(s string) string { return strings.Trim(s, chars) }
			}
		case "lowercase":
			fn = strings.ToLower
		case "uppercase":
			fn = strings.ToUpper
		case "title_case":
			lang, err := cfg.String("language", "und")
			if err != nil {
				return nil, err
			}
			caser := cases.Title(language.Make(lang))
			fn = func(s string) string { return caser.String(strings.ToLower(s)) }
		}
		return &stringTransform{id: id, fn: fn}, nil
	}
}

func (p *stringTransform) ID() string { return p.id }

func (p *stringTransform) Transform(_ context.Context, value interface{}, _ *model.Row, _ string) (Result, error) {
	switch v := value.(type) {
	case string:
		return Continue(p.fn(v)), nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = p.fn(s)
			} else {
				out[i] = item
			}
		}
		return Continue(out), nil
	}
	return Continue(value), nil
}
