// Package commands implements the migrate command line.
package commands

import (
	"database/sql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-migrate-pipeline/internal/config"
	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/pipeline"
	"go-migrate-pipeline/internal/store"
	"go-migrate-pipeline/pkg/utils"
)

var (
	// settings collects defaults, config file, environment and flags.
	settings   = config.New()
	configFile string
)

// AddGlobalFlags registers the flags every command shares and binds them to
// the settings.
func AddGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&configFile, "config", "", "Config file (default ./migrate.{yaml,toml,json})")
	f.String("database", "", "Database holding id maps and run history")
	f.String("target", "", "Database table destinations write to (default: --database)")
	f.String("migrations", "", "Directory of migration definitions")
	f.String("output-dir", "", "Directory json destinations write to")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.Bool("log-json", false, "Log JSON lines instead of console output")

	for key, name := range map[string]string{
		"database.path":  "database",
		"target.path":    "target",
		"migrations.dir": "migrations",
		"output.dir":     "output-dir",
		"log.level":      "log-level",
		"log.json":       "log-json",
	} {
		_ = settings.BindPFlag(key, f.Lookup(name))
	}
}

// App is everything a command needs to run migrations.
type App struct {
	Config  *config.Config
	Catalog *pipeline.Catalog
	Runs    *store.Runs
	Log     *zap.SugaredLogger

	db, target *sql.DB
}

// openApp loads the configuration and the migration definitions and opens
// the databases.
func openApp() (*App, error) {
	cfg, err := config.Load(settings, configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	log := logger.Named("migrate")

	db, err := store.OpenWithMigrations(cfg.Database.Path, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	app := &App{Config: cfg, Log: log, db: db, target: db}
	if cfg.TargetPath() != cfg.Database.Path {
		if app.target, err = store.Open(cfg.TargetPath(), log); err != nil {
			app.Close()
			return nil, errors.Wrap(err, "failed to open target database")
		}
	}

	defs, err := config.LoadDefinitions(cfg.Migrations.Dir, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Runs = store.NewRuns(db)
	app.Catalog, err = pipeline.NewCatalog(defs, pipeline.CatalogConfig{
		Maps: func(id string) idmap.Map {
			return store.NewIDMap(db, id, log.Named("idmap"))
		},
		Runs:     app.Runs,
		TargetDB: app.target,
		Output:   utils.NewOutputManager(cfg.Output.Dir),
		Options:  cfg.RunOptions(),
		Logger:   log,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the databases and flushes the logger.
func (a *App) Close() {
	if a.target != nil && a.target != a.db {
		a.target.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	logger.Cleanup()
}

// selection resolves the migrations a command acts on: explicit ids, a
// group or tags, or every migration with --all.
type selection struct {
	all   bool
	group string
	tags  []string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.all, "all", false, "Every migration")
	cmd.Flags().StringVar(&s.group, "group", "", "Migrations of this group")
	cmd.Flags().StringSliceVar(&s.tags, "tag", nil, "Migrations carrying these tags")
}

func (s *selection) resolve(c *pipeline.Catalog, args []string, required bool) ([]string, error) {
	if len(args) > 0 {
		if s.all || s.group != "" || len(s.tags) > 0 {
			return nil, errors.InvalidConfig("pass migration ids or a selection flag, not both")
		}
		for _, id := range args {
			if _, err := c.Definition(id); err != nil {
				return nil, err
			}
		}
		return args, nil
	}
	if !s.all && s.group == "" && len(s.tags) == 0 {
		if required {
			return nil, errors.WithHint(
				errors.InvalidConfig("no migrations selected"),
				"pass migration ids, --group, --tag or --all")
		}
		return c.IDs(), nil
	}
	return c.Select(s.group, s.tags), nil
}
