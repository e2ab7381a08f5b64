package commands

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/pipeline"
	"go-migrate-pipeline/internal/store"
)

const booksYAML = `
id: books
label: Books
migration_group: library
migration_tags: [catalog]
source:
  plugin: embedded_data
  ids: [isbn]
  data_rows:
    - {isbn: "111", title: dune, format: paper}
    - {isbn: "222", title: emma, format: lost}
    - {isbn: "333", title: ulysses, format: paper}
process:
  isbn: isbn
  title:
    - plugin: skip_on_value
      source: format
      method: row
      value: lost
      message: lost copies are not catalogued
    - plugin: get
      source: title
    - plugin: title_case
destination:
  plugin: json
  key: isbn
`

func workspace(t *testing.T) (dir string, flags []string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "migrations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "migrations", "books.yml"), []byte(booksYAML), 0o644))
	return dir, []string{
		"--database", filepath.Join(dir, "migrate.db"),
		"--migrations", filepath.Join(dir, "migrations"),
		"--output-dir", filepath.Join(dir, "out"),
		"--log-level", "error",
	}
}

func run(t *testing.T, flags []string, args ...string) error {
	t.Helper()
	root := Root()
	root.SetArgs(append(args, flags...))
	return root.Execute()
}

func TestImportStatusMessagesRollback(t *testing.T) {
	dir, flags := workspace(t)

	require.NoError(t, run(t, flags, "import", "books"))
	b, err := os.ReadFile(filepath.Join(dir, "out", "books", "111.json"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Dune"`)
	assert.NoFileExists(t, filepath.Join(dir, "out", "books", "222.json"))

	report := filepath.Join(dir, "status.csv")
	require.NoError(t, run(t, flags, "status", "--export", report))
	f, err := os.Open(report)
	require.NoError(t, err)
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"books", "library", "3", "2"}, records[1][:4])

	export := filepath.Join(dir, "messages.json")
	require.NoError(t, run(t, flags, "messages", "books", "--output", export))
	b, err = os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(b), "lost copies are not catalogued")

	require.NoError(t, run(t, flags, "fields-source", "books"))
	require.NoError(t, run(t, flags, "process", "books"))

	require.NoError(t, run(t, flags, "rollback", "--group", "library"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "books", "111.json"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "books", "333.json"))
}

func TestResetStatus(t *testing.T) {
	dir, flags := workspace(t)
	require.NoError(t, run(t, flags, "reset-status", "books"))

	db, err := store.OpenWithMigrations(filepath.Join(dir, "migrate.db"), nil)
	require.NoError(t, err)
	runs := store.NewRuns(db)
	require.NoError(t, runs.Save(context.Background(), model.RunSummary{
		RunID: "stuck", MigrationID: "books", Operation: model.OperationImport,
		Status: model.RunRunning, StartedAt: time.Now(),
	}))
	require.NoError(t, db.Close())

	require.NoError(t, run(t, flags, "reset-status", "books"))

	db, err = store.Open(filepath.Join(dir, "migrate.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	got, err := store.NewRuns(db).Get(context.Background(), "stuck")
	require.NoError(t, err)
	assert.Equal(t, model.RunInterrupted, got.Status)
}

func TestCommandErrors(t *testing.T) {
	_, flags := workspace(t)

	err := run(t, flags, "import")
	assert.True(t, errors.IsInvalidConfig(err), "%v", err)
	assert.Contains(t, errors.FlattenHints(err), "--all")

	err = run(t, flags, "import", "films")
	assert.True(t, errors.IsNotFound(err), "%v", err)

	err = run(t, flags, "messages", "books", "--format", "xml")
	assert.True(t, errors.IsInvalidConfig(err), "%v", err)
	messagesFormat = ""
}

func TestSelectionResolve(t *testing.T) {
	def := func(id, group string, tags ...string) *model.MigrationDefinition {
		return &model.MigrationDefinition{
			ID: id, Group: group, Tags: tags,
			Source:      map[string]interface{}{"plugin": "embedded_data", "data_rows": []interface{}{}},
			Destination: map[string]interface{}{"plugin": "json"},
		}
	}
	c, err := pipeline.NewCatalog(
		[]*model.MigrationDefinition{def("a", "g", "x"), def("b", "g"), def("c", "")},
		pipeline.CatalogConfig{Maps: func(id string) idmap.Map { return idmap.NewMemory(id) }})
	require.NoError(t, err)

	ids, err := (&selection{}).resolve(c, []string{"b"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	ids, err = (&selection{group: "g"}).resolve(c, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = (&selection{group: "g", tags: []string{"x"}}).resolve(c, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	ids, err = (&selection{all: true}).resolve(c, nil, true)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	ids, err = (&selection{}).resolve(c, nil, false)
	require.NoError(t, err)
	assert.Len(t, ids, 3, "status lists everything without a selection")

	_, err = (&selection{all: true}).resolve(c, []string{"a"}, true)
	assert.True(t, errors.IsInvalidConfig(err))

	_, err = (&selection{}).resolve(c, nil, true)
	assert.True(t, errors.IsInvalidConfig(err))
}
