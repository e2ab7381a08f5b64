package pipeline

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// MapFactory returns the id map of a migration.
type MapFactory func(migrationID string) idmap.Map

// RunLog stores and reads run summaries.
type RunLog interface {
	RunStore
	RunHistory
}

// CatalogConfig wires a Catalog.
type CatalogConfig struct {
	Registries Registries
	// Maps is required.
	Maps MapFactory
	Runs RunLog
	// TargetDB backs sqlite sources and table destinations.
	TargetDB *sql.DB
	Output   *utils.OutputManager
	Options  Options
	Logger   *zap.SugaredLogger
}

// Catalog holds every known migration and runs them, one run per migration
// at a time.
type Catalog struct {
	cfg  CatalogConfig
	log  *zap.SugaredLogger
	defs map[string]*model.MigrationDefinition
	ids  []string

	mu      sync.Mutex
	running map[string]*Executable
}

// NewCatalog validates defs and their dependency graph.
func NewCatalog(defs []*model.MigrationDefinition, cfg CatalogConfig) (*Catalog, error) {
	if cfg.Maps == nil {
		return nil, errors.New("catalog needs an id map factory")
	}
	cfg.Registries = cfg.Registries.withDefaults()
	c := &Catalog{
		cfg:     cfg,
		log:     logger.OrNop(cfg.Logger),
		defs:    make(map[string]*model.MigrationDefinition, len(defs)),
		running: make(map[string]*Executable),
	}
	for _, def := range defs {
		if err := ValidateDefinition(def, cfg.Registries); err != nil {
			if def.File != "" {
				err = errors.WithDetailf(err, "defined in %s", def.File)
			}
			return nil, err
		}
		if prev, dup := c.defs[def.ID]; dup {
			return nil, errors.InvalidConfig("migration %q is defined twice (%s, %s)", def.ID, prev.File, def.File)
		}
		c.defs[def.ID] = def
		c.ids = append(c.ids, def.ID)
	}
	sort.Strings(c.ids)

	for _, id := range c.ids {
		for _, dep := range c.defs[id].Dependencies.Required {
			if _, ok := c.defs[dep]; !ok {
				return nil, errors.InvalidConfig("migration %q requires unknown migration %q", id, dep)
			}
		}
	}
	if _, err := c.Order(c.ids); err != nil {
		return nil, err
	}
	return c, nil
}

// IDs lists every migration id, sorted.
func (c *Catalog) IDs() []string { return slices.Clone(c.ids) }

// Definition returns the definition of id.
func (c *Catalog) Definition(id string) (*model.MigrationDefinition, error) {
	def, ok := c.defs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "migration %q", id)
	}
	return def, nil
}

// Select returns the ids in group carrying every tag. Empty arguments match
// everything.
func (c *Catalog) Select(group string, tags []string) []string {
	var out []string
	for _, id := range c.ids {
		def := c.defs[id]
		if group != "" && def.Group != group {
			continue
		}
		ok := true
		for _, t := range tags {
			if !slices.Contains(def.Tags, t) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// IDMap returns the id map of id.
func (c *Catalog) IDMap(id string) (idmap.Map, error) {
	if _, err := c.Definition(id); err != nil {
		return nil, err
	}
	return c.cfg.Maps(id), nil
}

// Runs returns the run log, which may be nil.
func (c *Catalog) Runs() RunLog { return c.cfg.Runs }

// Lookup resolves sourceKey through the id map of migrationID. It backs the
// migration_lookup process plugin.
func (c *Catalog) Lookup(ctx context.Context, migrationID string, sourceKey model.Key) (model.Key, bool, error) {
	m, err := c.IDMap(migrationID)
	if err != nil {
		return nil, false, err
	}
	return m.LookupDestination(ctx, sourceKey)
}

// Build constructs the plugins of migration id.
func (c *Catalog) Build(id string) (*Migration, error) {
	def, err := c.Definition(id)
	if err != nil {
		return nil, err
	}
	env := plugin.Env{
		MigrationID: id,
		DB:          c.cfg.TargetDB,
		Output:      c.cfg.Output,
		Lookup:      c.Lookup,
		Logger:      c.log.With("migration", id),
	}
	if def.File != "" {
		env.BaseDir = filepath.Dir(def.File)
	}

	regs := c.cfg.Registries
	src, err := regs.Sources.New(def.SourcePlugin(), plugin.Config(def.Source), env)
	if err != nil {
		return nil, errors.Wrapf(err, "migration %q", id)
	}
	proc, err := NewPipeline(def.Process, regs.Process, env)
	if err != nil {
		return nil, errors.Wrapf(err, "migration %q", id)
	}
	dst, err := regs.Destinations.New(def.DestinationPlugin(), plugin.Config(def.Destination), env)
	if err != nil {
		return nil, errors.Wrapf(err, "migration %q", id)
	}
	return &Migration{Definition: def, Source: src, Process: proc, Destination: dst}, nil
}

// Executable builds migration id ready to run with opts.
func (c *Catalog) Executable(id string, opts Options) (*Executable, error) {
	m, err := c.Build(id)
	if err != nil {
		return nil, err
	}
	var runs RunStore
	if c.cfg.Runs != nil {
		runs = c.cfg.Runs
	}
	return NewExecutable(m, c.cfg.Maps(id), opts, runs, c.log), nil
}

// Options returns the configured run options.
func (c *Catalog) Options() Options { return c.cfg.Options }

// Order sorts ids so that dependencies come first. Required and optional
// dependencies both order the result when they are part of ids; ties keep
// alphabetical order.
func (c *Catalog) Order(ids []string) ([]string, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := c.Definition(id); err != nil {
			return nil, err
		}
		want[id] = true
	}
	sorted := slices.Clone(ids)
	sort.Strings(sorted)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(ids))
	out := make([]string, 0, len(ids))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			i := slices.Index(stack, id)
			cycle := append(slices.Clone(stack[i:]), id)
			return errors.Wrapf(errors.ErrDependencyCycle, "%s", strings.Join(cycle, " -> "))
		}
		state[id] = visiting
		stack = append(stack, id)
		def := c.defs[id]
		deps := append(slices.Clone(def.Dependencies.Required), def.Dependencies.Optional...)
		sort.Strings(deps)
		for _, dep := range deps {
			if !want[dep] {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		out = append(out, id)
		return nil
	}
	for _, id := range sorted {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// begin claims id for a run.
func (c *Catalog) begin(id string, exec *Executable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.running[id]; busy {
		return errors.Wrapf(errors.ErrRunInProgress, "migration %q", id)
	}
	c.running[id] = exec
	return nil
}

func (c *Catalog) end(id string) {
	c.mu.Lock()
	delete(c.running, id)
	c.mu.Unlock()
}

// Progress returns the summary of the run in flight for id.
func (c *Catalog) Progress(id string) (model.RunSummary, bool) {
	c.mu.Lock()
	exec, ok := c.running[id]
	c.mu.Unlock()
	if !ok {
		return model.RunSummary{}, false
	}
	return exec.Progress()
}

// Start builds migration id and claims it for a run. The caller must call
// the returned release func once the run is over.
func (c *Catalog) Start(id string, opts Options) (*Executable, func(), error) {
	exec, err := c.Executable(id, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := c.begin(id, exec); err != nil {
		return nil, nil, err
	}
	return exec, func() { c.end(id) }, nil
}

// Import runs one import of migration id.
func (c *Catalog) Import(ctx context.Context, id string, opts Options) (model.RunSummary, error) {
	exec, release, err := c.Start(id, opts)
	if err != nil {
		return model.RunSummary{}, err
	}
	defer release()
	return exec.Import(ctx)
}

// Rollback rolls migration id back.
func (c *Catalog) Rollback(ctx context.Context, id string) (model.RunSummary, error) {
	exec, release, err := c.Start(id, c.cfg.Options)
	if err != nil {
		return model.RunSummary{}, err
	}
	defer release()
	return exec.Rollback(ctx)
}

// ImportAll imports ids in dependency order. A migration whose required
// dependency did not complete in this batch is skipped. The summaries are
// returned in run order even when an error ends the batch early.
func (c *Catalog) ImportAll(ctx context.Context, ids []string, opts Options) ([]model.RunSummary, error) {
	order, err := c.Order(ids)
	if err != nil {
		return nil, err
	}
	incomplete := map[string]bool{}
	var out []model.RunSummary
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if dep, blocked := firstBlocked(c.defs[id].Dependencies.Required, incomplete); blocked {
			c.log.Warnw("Migration skipped", "migration", id, "dependency", dep)
			now := time.Now().UTC()
			incomplete[id] = true
			out = append(out, model.RunSummary{
				MigrationID: id,
				Operation:   model.OperationImport,
				Status:      model.RunSkipped,
				StartedAt:   now,
				FinishedAt:  now,
				Error:       "required dependency " + dep + " did not complete",
			})
			continue
		}

		s, err := c.Import(ctx, id, opts)
		if s.MigrationID == "" {
			// Nothing ran: the migration could not be built or was busy.
			s = model.RunSummary{MigrationID: id, Operation: model.OperationImport, Status: model.RunFailed}
			if err != nil {
				s.Error = err.Error()
			}
		}
		out = append(out, s)
		if s.Status != model.RunCompleted {
			incomplete[id] = true
		}
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	if len(incomplete) > 0 {
		return out, errors.Newf("%d of %d migrations did not complete", len(incomplete), len(order))
	}
	return out, nil
}

// RollbackAll rolls ids back, dependents first.
func (c *Catalog) RollbackAll(ctx context.Context, ids []string) ([]model.RunSummary, error) {
	order, err := c.Order(ids)
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	var out []model.RunSummary
	for _, id := range order {
		s, err := c.Rollback(ctx, id)
		if s.MigrationID == "" {
			s = model.RunSummary{MigrationID: id, Operation: model.OperationRollback, Status: model.RunFailed}
			if err != nil {
				s.Error = err.Error()
			}
		}
		out = append(out, s)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Status reports the state of migration id.
func (c *Catalog) Status(ctx context.Context, id string) (model.StatusReport, error) {
	def, err := c.Definition(id)
	if err != nil {
		return model.StatusReport{}, err
	}
	m, err := c.Build(id)
	if err != nil {
		return model.StatusReport{MigrationID: id, Label: def.Label, Group: def.Group, Error: err.Error()}, nil
	}
	var runs RunHistory
	if c.cfg.Runs != nil {
		runs = c.cfg.Runs
	}
	return Status(ctx, m, c.cfg.Maps(id), runs), nil
}

func firstBlocked(required []string, incomplete map[string]bool) (string, bool) {
	for _, dep := range required {
		if incomplete[dep] {
			return dep, true
		}
	}
	return "", false
}
