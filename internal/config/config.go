// Package config loads the application settings and the migration
// definitions they point at.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/pipeline"
)

// EnvPrefix prefixes every environment override, e.g. MIGRATE_DATABASE_PATH.
const EnvPrefix = "MIGRATE"

// Config is the application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Target     TargetConfig     `mapstructure:"target"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Output     OutputConfig     `mapstructure:"output"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Run        RunConfig        `mapstructure:"run"`
}

// DatabaseConfig locates the database holding id maps and run history.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// TargetConfig locates the database table destinations write to. Empty
// means the id map database.
type TargetConfig struct {
	Path string `mapstructure:"path"`
}

// MigrationsConfig locates migration definition files.
type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

// OutputConfig is where file destinations write.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig configures the reporting API.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// RunConfig holds defaults for import runs.
type RunConfig struct {
	RecordSkippedRows bool              `mapstructure:"record_skipped_rows"`
	Retry             model.RetryConfig `mapstructure:"retry"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "migrate.db")
	v.SetDefault("target.path", "")
	v.SetDefault("migrations.dir", "migrations")
	v.SetDefault("output.dir", "output")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("run.record_skipped_rows", true)
	v.SetDefault("run.retry.max_attempts", model.DefaultRetryConfig.MaxAttempts)
	v.SetDefault("run.retry.initial_delay", model.DefaultRetryConfig.InitialDelay)
	v.SetDefault("run.retry.max_delay", model.DefaultRetryConfig.MaxDelay)
	v.SetDefault("run.retry.multiplier", model.DefaultRetryConfig.BackoffFactor)
}

// New returns a viper instance with defaults and environment overrides
// bound. Flags may be bound to it before Load reads it.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configFile, or migrate.{yaml,toml,json} from the working
// directory when configFile is empty, and unmarshals v. A missing default
// config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("migrate")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.InvalidConfig("database.path is required")
	}
	if c.Migrations.Dir == "" {
		return errors.InvalidConfig("migrations.dir is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.InvalidConfig("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	r := c.Run.Retry
	if r.MaxAttempts < 1 {
		return errors.InvalidConfig("run.retry.max_attempts must be at least 1")
	}
	if r.InitialDelay < 0 || r.MaxDelay < 0 {
		return errors.InvalidConfig("run.retry delays must not be negative")
	}
	if r.BackoffFactor < 1 {
		return errors.InvalidConfig("run.retry.multiplier must be at least 1")
	}
	return nil
}

// TargetPath returns the database table destinations write to.
func (c *Config) TargetPath() string {
	if c.Target.Path == "" {
		return c.Database.Path
	}
	return c.Target.Path
}

// RunOptions returns the configured run defaults.
func (c *Config) RunOptions() pipeline.Options {
	return pipeline.Options{
		RecordSkippedRows: c.Run.RecordSkippedRows,
		Retry:             c.Run.Retry,
	}
}
