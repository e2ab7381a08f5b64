package process

import (
	"context"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// migrationLookup resolves a source id to the destination id another
// migration recorded for it.
type migrationLookup struct {
	migrations []string
	lookup     plugin.LookupFunc
}

func newMigrationLookup(cfg plugin.Config, env plugin.Env) (Plugin, error) {
	migrations, err := cfg.Strings("migration")
	if err != nil {
		return nil, err
	}
	if len(migrations) == 0 {
		return nil, errors.InvalidConfig(`"migration" must be set`)
	}
	if env.Lookup == nil {
		return nil, errors.InvalidConfig("migration_lookup needs access to identifier maps")
	}
	return &migrationLookup{migrations: migrations, lookup: env.Lookup}, nil
}

func (p *migrationLookup) ID() string { return "migration_lookup" }

func (p *migrationLookup) Transform(ctx context.Context, value interface{}, _ *model.Row, _ string) (Result, error) {
	if utils.IsEmpty(value) {
		return Continue(nil), nil
	}

	var key model.Key
	if list, ok := utils.ToSlice(value); ok {
		key = model.KeyOf(list...)
	} else {
		key = model.KeyOf(value)
	}

	for _, id := range p.migrations {
		dest, found, err := p.lookup(ctx, id, key)
		if err != nil {
			return Result{}, errors.Wrapf(err, "lookup %s in migration %q", key, id)
		}
		if !found || len(dest) == 0 {
			continue
		}
		if len(dest) == 1 {
			return Continue(dest[0]), nil
		}
		out := make([]interface{}, len(dest))
		for i, d := range dest {
			out[i] = d
		}
		return Continue(out), nil
	}
	return Continue(nil), nil
}
