package process

import (
	"context"
	"fmt"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// staticMap translates a value through a fixed lookup table.
type staticMap struct {
	table      map[string]interface{}
	def        interface{}
	hasDefault bool
	bypass     bool
}

func newStaticMap(cfg plugin.Config, _ plugin.Env) (Plugin, error) {
	table, err := cfg.Map("map")
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, errors.InvalidConfig(`"map" must be set`)
	}
	p := &staticMap{table: table}
	p.def, p.hasDefault = cfg.Value("default_value")
	if p.bypass, err = cfg.Bool("bypass", false); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *staticMap) ID() string { return "static_map" }

func (p *staticMap) Transform(_ context.Context, value interface{}, _ *model.Row, dest string) (Result, error) {
	if !utils.IsScalar(value) {
		return Result{}, errors.Newf("static_map: %q input is %T, not a scalar", dest, value)
	}
	if mapped, ok := p.table[utils.ToString(value)]; ok {
		return Continue(mapped), nil
	}
	switch {
	case p.hasDefault:
		return Continue(p.def), nil
	case p.bypass:
		return Continue(value), nil
	}
	return SkipRow(fmt.Sprintf("no static mapping found for '%s' and no default value provided for destination '%s'",
		utils.ToString(value), dest)), nil
}
