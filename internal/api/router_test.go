package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-migrate-pipeline/internal/api/handler"
	"go-migrate-pipeline/internal/config"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/pipeline"
	"go-migrate-pipeline/internal/store"
	"go-migrate-pipeline/pkg/router"
)

const usersYAML = `
id: users
label: Users
migration_group: blog
source:
  plugin: embedded_data
  ids: [uid]
  data_rows:
    - {uid: u1, name: Ada, state: active}
    - {uid: u2, name: Grace, state: blocked}
    - {uid: u3, name: Edsger, state: active}
process:
  name:
    - plugin: skip_on_value
      source: state
      method: row
      value: blocked
      message: blocked accounts are not migrated
    - plugin: get
      source: name
destination:
  plugin: table
  table: users
`

const postsYAML = `
id: posts
label: Posts
migration_group: blog
migration_tags: [content]
migration_dependencies:
  required: [users]
source:
  plugin: embedded_data
  ids: [id]
  data_rows:
    - {id: 1, title: A, author: u1}
process:
  title: title
  author_id:
    plugin: migration_lookup
    migration: users
    source: author
destination:
  plugin: table
  table: posts
`

type fixture struct {
	router  *router.Router
	handler *handler.MigrationHandler
	catalog *pipeline.Catalog
	target  *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := zaptest.NewLogger(t).Sugar()

	mapDB, err := store.OpenWithMigrations(filepath.Join(dir, "map.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { mapDB.Close() })

	target, err := sql.Open("sqlite3", filepath.Join(dir, "target.db"))
	require.NoError(t, err)
	t.Cleanup(func() { target.Close() })
	_, err = target.Exec(`
CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);
CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, author_id INTEGER);`)
	require.NoError(t, err)

	var defs []*model.MigrationDefinition
	for _, text := range []string{usersYAML, postsYAML} {
		def, err := config.ParseDefinition([]byte(text))
		require.NoError(t, err)
		defs = append(defs, def)
	}

	opts := pipeline.DefaultOptions()
	opts.Retry.InitialDelay = time.Millisecond
	runs := store.NewRuns(mapDB)
	catalog, err := pipeline.NewCatalog(defs, pipeline.CatalogConfig{
		Maps:     func(id string) idmap.Map { return store.NewIDMap(mapDB, id, log) },
		Runs:     runs,
		TargetDB: target,
		Options:  opts,
		Logger:   log,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := router.New(log)
	h := RegisterRoutes(ctx, r, catalog, runs, log)
	t.Cleanup(func() {
		cancel()
		h.Wait()
	})
	return &fixture{router: r, handler: h, catalog: catalog, target: target}
}

func (f *fixture) do(t *testing.T, method, path string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestMigrationReports(t *testing.T) {
	f := newFixture(t)

	var list []handler.MigrationOverview
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations", &list))
	require.Len(t, list, 2)
	assert.Equal(t, "posts", list[0].ID)
	assert.Equal(t, []string{"users"}, list[0].Dependencies.Required)
	assert.Equal(t, "embedded_data", list[1].Source)
	assert.Equal(t, "table", list[1].Destination)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations?group=blog&tag=content", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "posts", list[0].ID)

	var detail handler.MigrationDetail
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users", &detail))
	assert.Equal(t, "Users", detail.Label)
	assert.Equal(t, 3, detail.Status.Total)
	assert.Equal(t, 3, detail.Status.Unprocessed)

	var src handler.SourceReport
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users/source", &src))
	assert.Equal(t, "embedded_data", src.Plugin)
	assert.Equal(t, []string{"uid"}, src.IDs)
	assert.Equal(t, 3, src.Count)

	var process []model.FieldProcess
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/posts/process", &process))
	require.Len(t, process, 2)
	assert.Equal(t, "title", process[0].Destination)
	assert.Equal(t, "author_id", process[1].Destination)
	assert.Equal(t, "migration_lookup", process[1].Steps[0].Plugin)

	var dst handler.DestinationReport
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/posts/destination", &dst))
	assert.Equal(t, "table", dst.Plugin)
	assert.Equal(t, "posts", dst.Config["table"])

	var failure handler.ErrorResponse
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/migrations/nope", &failure))
	assert.Contains(t, failure.Error, "nope")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/migrations/nope/source", nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/migrations/users/progress", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/v1/migrations/users/import", nil))
}

func TestImportAndRollbackOverHTTP(t *testing.T) {
	f := newFixture(t)

	var accepted handler.RunAccepted
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/migrations/users/import", &accepted))
	assert.NotEmpty(t, accepted.RunID)
	assert.Equal(t, handler.RunAccepted{RunID: accepted.RunID, MigrationID: "users", Operation: model.OperationImport, Status: model.RunRunning}, accepted)
	f.handler.Wait()

	var runs []model.RunSummary
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users/runs", &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, accepted.RunID, runs[0].RunID)
	assert.Equal(t, model.RunCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Imported)
	assert.Equal(t, 1, runs[0].Skipped)

	var run model.RunSummary
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/runs/"+runs[0].RunID, &run))
	assert.Equal(t, "users", run.MigrationID)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/runs/nope", nil))

	var detail handler.MigrationDetail
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users", &detail))
	assert.Equal(t, 2, detail.Status.Imported)
	assert.Equal(t, 1, detail.Status.Ignored)
	assert.Equal(t, model.RunCompleted, detail.Status.LastStatus)

	var msgs []model.Message
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users/messages", &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, model.Key{"u2"}, msgs[0].SourceKey)
	assert.Equal(t, model.LevelInformational, msgs[0].Level)
	assert.Equal(t, "blocked accounts are not migrated", msgs[0].Message)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users/messages?level=error", &msgs))
	assert.Empty(t, msgs)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/migrations/users/messages?level=loud", nil))

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/migrations/posts/import?limit=1&timeout=1m", nil))
	f.handler.Wait()
	var authorID sql.NullInt64
	require.NoError(t, f.target.QueryRow(`SELECT author_id FROM posts`).Scan(&authorID))
	assert.True(t, authorID.Valid)

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/migrations/posts/rollback", nil))
	f.handler.Wait()
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/migrations/users/rollback", nil))
	f.handler.Wait()
	var n int
	require.NoError(t, f.target.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/migrations/users/runs?limit=1", &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, model.OperationRollback, runs[0].Operation)
	assert.Equal(t, 3, runs[0].RolledBack, "ignored entries leave the map too")
}

func TestImportRejections(t *testing.T) {
	f := newFixture(t)

	_, release, err := f.catalog.Start("users", f.catalog.Options())
	require.NoError(t, err)
	var failure handler.ErrorResponse
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/migrations/users/import", &failure))
	assert.Contains(t, failure.Error, "in progress")
	release()

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/migrations/users/import?limit=many", nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/migrations/users/import?update=perhaps", nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/migrations/users/import?timeout=soon", nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/migrations/users/import?timeout=-5s", nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/migrations/users/runs?limit=0", nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/migrations/nope/rollback", nil))
}

func TestSwaggerDoc(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Migration Pipeline API"))
	assert.Contains(t, rec.Body.String(), "/migrations/{id}/import")
}
