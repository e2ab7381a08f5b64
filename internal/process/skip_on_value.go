package process

import (
	"context"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// Method selects what a skip plugin abandons.
type Method string

const (
	// MethodRow abandons the whole row.
	MethodRow Method = "row"
	// MethodProcess ends only the current field's chain.
	MethodProcess Method = "process"
)

func parseMethod(cfg plugin.Config) (Method, error) {
	if !cfg.Has("method") {
		return "", errors.InvalidConfig(`"method" must be set to either "row" or "process"`)
	}
	s, err := cfg.String("method", "")
	if err != nil {
		return "", err
	}
	switch m := Method(s); m {
	case MethodRow, MethodProcess:
		return m, nil
	}
	return "", errors.InvalidConfig(`"method" must be either "row" or "process", got %q`, s)
}

// parseRecordPolicy reads the optional save_to_map override.
func parseRecordPolicy(cfg plugin.Config) (RecordPolicy, error) {
	if !cfg.Has("save_to_map") {
		return RecordDefault, nil
	}
	save, err := cfg.Bool("save_to_map", true)
	if err != nil {
		return RecordDefault, err
	}
	if save {
		return RecordAlways, nil
	}
	return RecordNever, nil
}

// skipSignal builds the result of a matched skip plugin.
func skipSignal(method Method, value interface{}, message string, policy RecordPolicy) Result {
	if method == MethodProcess {
		return StopField(value)
	}
	res := SkipRow(message)
	res.Record = policy
	return res
}

// SkipOnValue halts processing when the value equals (or, with not_equals,
// differs from) a configured value or any of a configured list of values.
//
// Options:
//
//	method:      row | process (required)
//	value:       scalar or list of scalars (required)
//	not_equals:  invert the comparison (default false)
//	message:     row mode only, attached to the skip
//	save_to_map: override whether a row skip is recorded in the id map
type SkipOnValue struct {
	method    Method
	values    []interface{}
	notEquals bool
	message   string
	record    RecordPolicy
}

// NewSkipOnValue validates cfg and constructs the plugin.
func NewSkipOnValue(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
	method, err := parseMethod(cfg)
	if err != nil {
		return nil, err
	}
	raw, ok := cfg.Value("value")
	if !ok {
		return nil, errors.InvalidConfig(`"value" must be set`)
	}

	p := &SkipOnValue{method: method}
	if list, isList := utils.ToSlice(raw); isList {
		for _, item := range list {
			if !utils.IsScalar(item) {
				return nil, errors.InvalidConfig(`"value" list may only contain scalars`)
			}
		}
		p.values = list
	} else {
		if !utils.IsScalar(raw) {
			return nil, errors.InvalidConfig(`"value" must be a scalar or a list of scalars`)
		}
		p.values = []interface{}{raw}
	}

	if p.notEquals, err = cfg.Bool("not_equals", false); err != nil {
		return nil, err
	}
	if p.message, err = cfg.String("message", ""); err != nil {
		return nil, err
	}
	if p.record, err = parseRecordPolicy(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// ID implements Plugin.
func (p *SkipOnValue) ID() string { return "skip_on_value" }

// Matches reports whether value triggers the skip, with not_equals applied.
func (p *SkipOnValue) Matches(value interface{}) bool {
	matched := false
	for _, v := range p.values {
		if utils.LooseEqual(value, v) {
			matched = true
			break
		}
	}
	return matched != p.notEquals
}

// Transform implements Plugin. The value is never altered.
func (p *SkipOnValue) Transform(_ context.Context, value interface{}, _ *model.Row, _ string) (Result, error) {
	if !p.Matches(value) {
		return Continue(value), nil
	}
	return skipSignal(p.method, value, p.message, p.record), nil
}
