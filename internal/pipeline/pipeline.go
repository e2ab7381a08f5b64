// Package pipeline runs migrations: it feeds source rows through the process
// plugin chains of each destination field, writes the result to the
// destination and records every outcome in the identifier map.
package pipeline

import (
	"context"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/internal/process"
)

// step is one constructed plugin of a field chain.
type step struct {
	plugin process.Plugin
	source []string // nil: take the previous step's value
	list   bool     // source was written as a list
}

type fieldChain struct {
	destination string
	steps       []step
}

// Pipeline is the compiled process section of a migration.
type Pipeline struct {
	fields []fieldChain
}

// Outcome is the result of processing one row.
type Outcome struct {
	Skipped bool
	Message string
	Record  process.RecordPolicy
	// Field and Plugin name where the row was skipped.
	Field  string
	Plugin string
}

// NewPipeline constructs every plugin of pm. A bad plugin id or option fails
// here, before any row is read.
func NewPipeline(pm model.ProcessMap, reg *process.Registry, env plugin.Env) (*Pipeline, error) {
	if reg == nil {
		reg = process.Default
	}
	p := &Pipeline{fields: make([]fieldChain, 0, len(pm))}
	for _, fp := range pm {
		chain := fieldChain{destination: fp.Destination}
		for i, s := range fp.Steps {
			if s.Plugin == "" {
				return nil, errors.InvalidConfig("field %q step %d: %q is required", fp.Destination, i, "plugin")
			}
			cfg := plugin.Config(s.Config)
			src, list, err := stepSource(cfg)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q step %d", fp.Destination, i)
			}
			inst, err := reg.New(s.Plugin, cfg, env)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", fp.Destination)
			}
			chain.steps = append(chain.steps, step{plugin: inst, source: src, list: list})
		}
		p.fields = append(p.fields, chain)
	}
	return p, nil
}

func stepSource(cfg plugin.Config) ([]string, bool, error) {
	v, ok := cfg.Value("source")
	if !ok || v == nil {
		return nil, false, nil
	}
	names, err := cfg.Strings("source")
	if err != nil {
		return nil, false, err
	}
	_, isString := v.(string)
	return names, !isString, nil
}

// Fields lists destination fields in processing order.
func (p *Pipeline) Fields() []string {
	out := make([]string, len(p.fields))
	for i, f := range p.fields {
		out[i] = f.destination
	}
	return out
}

// Process computes every destination field of row in declared order.
//
// A StopField signal ends the current field with the returned value and moves
// on to the next field. A SkipRow signal abandons the row at once: fields
// computed so far stay on the row but the Outcome is Skipped. A plugin error
// aborts the row and is returned wrapped with the field and plugin id.
func (p *Pipeline) Process(ctx context.Context, row *model.Row) (Outcome, error) {
	for _, f := range p.fields {
		var value interface{}
	steps:
		for _, s := range f.steps {
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			if s.source != nil {
				value = seed(row, s)
			}
			res, err := s.plugin.Transform(ctx, value, row, f.destination)
			if err != nil {
				return Outcome{}, errors.Wrapf(err, "field %q plugin %q", f.destination, s.plugin.ID())
			}
			switch res.Signal {
			case process.SignalSkipRow:
				return Outcome{
					Skipped: true,
					Message: res.Message,
					Record:  res.Record,
					Field:   f.destination,
					Plugin:  s.plugin.ID(),
				}, nil
			case process.SignalStopField:
				value = res.Value
				break steps
			}
			value = res.Value
		}
		row.SetDestination(f.destination, value)
	}
	return Outcome{}, nil
}

func seed(row *model.Row, s step) interface{} {
	if !s.list {
		return row.Get(s.source[0])
	}
	vals := make([]interface{}, len(s.source))
	for i, name := range s.source {
		vals[i] = row.Get(name)
	}
	return vals
}
