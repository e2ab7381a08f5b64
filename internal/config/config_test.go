package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "migrate.db", cfg.Database.Path)
	assert.Equal(t, "migrate.db", cfg.TargetPath())
	assert.Equal(t, "migrations", cfg.Migrations.Dir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Run.RecordSkippedRows)
	assert.Equal(t, model.DefaultRetryConfig, cfg.Run.Retry)

	opts := cfg.RunOptions()
	assert.True(t, opts.RecordSkippedRows)
	assert.Equal(t, 3, opts.Retry.MaxAttempts)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/migrate/map.db
target:
  path: /var/lib/site.db
run:
  record_skipped_rows: false
  retry:
    max_attempts: 5
    initial_delay: 50ms
    multiplier: 3
`), 0o644))
	t.Setenv("MIGRATE_LOG_LEVEL", "debug")
	t.Setenv("MIGRATE_SERVER_ADDR", "127.0.0.1:9000")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/migrate/map.db", cfg.Database.Path)
	assert.Equal(t, "/var/lib/site.db", cfg.TargetPath())
	assert.False(t, cfg.Run.RecordSkippedRows)
	assert.Equal(t, 5, cfg.Run.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Run.Retry.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.Run.Retry.MaxDelay)
	assert.Equal(t, 3.0, cfg.Run.Retry.BackoffFactor)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadRejects(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")

	t.Chdir(t.TempDir())
	for name, env := range map[string][2]string{
		"level":    {"MIGRATE_LOG_LEVEL", "loud"},
		"attempts": {"MIGRATE_RUN_RETRY_MAX_ATTEMPTS", "0"},
		"factor":   {"MIGRATE_RUN_RETRY_MULTIPLIER", "0.5"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load(New(), "")
			assert.True(t, errors.IsInvalidConfig(err), "%v", err)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "users.yml"), `
id: users
label: Users
migration_group: blog
source:
  plugin: csv
  path: users.csv
  ids: [uid]
process:
  name: name
  mail:
    - plugin: get
      source: email
    - plugin: lowercase
destination:
  plugin: table
  table: users
`)
	writeFile(t, filepath.Join(dir, "content", "articles.yaml"), `
migration_dependencies:
  required: [users]
source: {plugin: embedded_data, data_rows: []}
destination: {plugin: json}
`)
	writeFile(t, filepath.Join(dir, "README.md"), "not a definition")
	writeFile(t, filepath.Join(dir, ".hidden", "x.yml"), "id: [broken")

	defs, err := LoadDefinitions(dir, nil)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "articles", defs[0].ID, "id defaults to the file name")
	assert.Equal(t, []string{"users"}, defs[0].Dependencies.Required)
	assert.True(t, filepath.IsAbs(defs[0].File))

	users := defs[1]
	assert.Equal(t, "users", users.ID)
	assert.Equal(t, "csv", users.SourcePlugin())
	assert.Equal(t, "table", users.DestinationPlugin())
	require.Len(t, users.Process, 2)
	assert.Equal(t, "mail", users.Process[1].Destination)
	assert.Equal(t, "lowercase", users.Process[1].Steps[1].Plugin)
}

func TestParseDefinitionErrors(t *testing.T) {
	for name, text := range map[string]string{
		"empty":        "",
		"unknown key":  "id: a\nsorce: {plugin: csv}\n",
		"two docs":     "id: a\n---\nid: b\n",
		"bad process":  "id: a\nprocess: [1, 2]\n",
		"syntax error": "id: [a\n",
	} {
		_, err := ParseDefinition([]byte(text))
		assert.True(t, errors.IsInvalidConfig(err), "%s: %v", name, err)
	}

	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}
