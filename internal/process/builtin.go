package process

import (
	"context"
	"strings"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// get passes the value through. The pipeline seeds it from the step's source.
type get struct{}

func newGet(plugin.Config, plugin.Env) (Plugin, error) { return get{}, nil }

func (get) ID() string { return "get" }

func (get) Transform(_ context.Context, value interface{}, _ *model.Row, _ string) (Result, error) {
	return Continue(value), nil
}

// defaultValue replaces an empty value.
type defaultValue struct {
	value  interface{}
	strict bool
}

func newDefaultValue(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
	v, ok := cfg.Value("default_value")
	if !ok {
		return nil, errors.InvalidConfig(`"default_value" must be set`)
	}
	strict, err := cfg.Bool("strict", false)
	if err != nil {
		return nil, err
	}
	return &defaultValue{value: v, strict: strict}, nil
}

func (p *defaultValue) ID() string { return "default_value" }

func (p *defaultValue) Transform(_ context.Context, value interface{}, _ *model.Row, _ string) (Result, error) {
	if value == nil || (!p.strict && utils.IsEmpty(value)) {
		return Continue(p.value), nil
	}
	return Continue(value), nil
}

// skipOnEmpty halts on nil, "", or an empty list/map.
type skipOnEmpty struct {
	method  Method
	message string
	record  RecordPolicy
}

func newSkipOnEmpty(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
	method, err := parseMethod(cfg)
	if err != nil {
		return nil, err
	}
	p := &skipOnEmpty{method: method}
	if p.message, err = cfg.String("message", ""); err != nil {
		return nil, err
	}
	if p.record, err = parseRecordPolicy(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *skipOnEmpty) ID() string { return "skip_on_empty" }

func (p *skipOnEmpty) Transform(_ context.Context, value interface{}, _ *model.Row, _ string) (Result, error) {
	if !utils.IsEmpty(value) {
		return Continue(value), nil
	}
	return skipSignal(p.method, value, p.message, p.record), nil
}

// concat joins a list value.
type concat struct {
	delimiter string
}

func newConcat(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
	d, err := cfg.String("delimiter", "")
	if err != nil {
		return nil, err
	}
	return &concat{delimiter: d}, nil
}

func (p *concat) ID() string { return "concat" }

func (p *concat) Transform(_ context.Context, value interface{}, _ *model.Row, dest string) (Result, error) {
	list, ok := utils.ToSlice(value)
	if !ok {
		return Result{}, errors.Newf("concat: %q input is %T, not a list", dest, value)
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = utils.ToString(v)
	}
	return Continue(strings.Join(parts, p.delimiter)), nil
}

// explode splits a string into a list.
type explode struct {
	delimiter string
	limit     int
}

func newExplode(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
	d, err := cfg.RequiredString("delimiter")
	if err != nil {
		return nil, err
	}
	limit, err := cfg.Int("limit", -1)
	if err != nil {
		return nil, err
	}
	return &explode{delimiter: d, limit: limit}, nil
}

func (p *explode) ID() string { return "explode" }

func (p *explode) Transform(_ context.Context, value interface{}, _ *model.Row, dest string) (Result, error) {
	if value == nil {
		return Continue([]interface{}{}), nil
	}
	if !utils.IsScalar(value) {
		return Result{}, errors.Newf("explode: %q input is %T, not a string", dest, value)
	}
	parts := strings.SplitN(utils.ToString(value), p.delimiter, p.limit)
	out := make([]interface{}, len(parts))
	for i, s := range parts {
		out[i] = s
	}
	return Continue(out), nil
}
