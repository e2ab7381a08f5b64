package source

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
)

func collect(t *testing.T, s Source) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for rec, err := range s.Rows(context.Background()) {
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	return dir
}

func TestRegistryHasBuiltins(t *testing.T) {
	assert.Equal(t, []string{"csv", "embedded_data", "json", "sqlite", "xml"}, Default.IDs())
}

func TestIDsOption(t *testing.T) {
	rows := []interface{}{}

	_, err := Default.New("embedded_data", plugin.Config{"data_rows": rows}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))

	s, err := Default.New("embedded_data", plugin.Config{"data_rows": rows, "ids": "id"}, plugin.Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, s.IDs())

	s, err = Default.New("embedded_data", plugin.Config{
		"data_rows": rows,
		"ids":       map[string]interface{}{"lang": map[string]interface{}{"type": "string"}, "nid": nil},
	}, plugin.Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"lang", "nid"}, s.IDs())
}

func TestEmbeddedData(t *testing.T) {
	s, err := Default.New("embedded_data", plugin.Config{
		"ids": []interface{}{"id"},
		"data_rows": []interface{}{
			map[string]interface{}{"id": 1, "title": "first"},
			map[string]interface{}{"id": 2, "title": "second"},
		},
	}, plugin.Env{})
	require.NoError(t, err)

	rows := collect(t, s)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[1]["title"])

	// Rows are copies.
	rows[0]["title"] = "changed"
	assert.Equal(t, "first", collect(t, s)[0]["title"])

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"id": "id", "title": "title"}, s.Fields())
	assert.Equal(t, "embedded_data", s.PluginID())

	_, err = Default.New("embedded_data", plugin.Config{"ids": "id", "data_rows": []interface{}{"x"}}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestEmbeddedDataHonoursCancel(t *testing.T) {
	s, err := Default.New("embedded_data", plugin.Config{
		"ids":       "id",
		"data_rows": []interface{}{map[string]interface{}{"id": 1}},
	}, plugin.Env{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range s.Rows(ctx) {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestCSV(t *testing.T) {
	dir := writeFile(t, "people.csv", "\"id\";name;score\n1;Ada;9.5\n2;Grace;\n")
	env := plugin.Env{BaseDir: dir}

	s, err := Default.New("csv", plugin.Config{"ids": "id", "path": "people.csv", "delimiter": ";"}, env)
	require.NoError(t, err)

	rows := collect(t, s)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0]["id"])
	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, 9.5, rows[0]["score"])
	assert.Equal(t, "", rows[1]["score"])

	assert.Equal(t, map[string]string{"id": "id", "name": "name", "score": "score"}, s.Fields())
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := Default.New("csv", plugin.Config{"ids": "id", "path": "people.csv", "delimiter": ";", "keep_strings": true}, env)
	require.NoError(t, err)
	assert.Equal(t, "1", collect(t, raw)[0]["id"])

	_, err = Default.New("csv", plugin.Config{"ids": "id", "path": "x.csv", "delimiter": ";;"}, env)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestCSVMissingFile(t *testing.T) {
	s, err := Default.New("csv", plugin.Config{"ids": "id", "path": "/does/not/exist.csv"}, plugin.Env{})
	require.NoError(t, err)
	for _, err := range s.Rows(context.Background()) {
		assert.Error(t, err)
	}
}

func TestJSON(t *testing.T) {
	doc := `{"data": {"items": [
		{"id": 1, "title": "One", "author": {"name": "Ada"}},
		{"id": 2, "title": "Two", "author": {"name": "Grace"}}
	]}}`
	dir := writeFile(t, "items.json", doc)

	s, err := Default.New("json", plugin.Config{
		"ids": "id", "path": "items.json", "item_selector": "/data/items",
		"fields": []interface{}{
			map[string]interface{}{"name": "id"},
			map[string]interface{}{"name": "author", "label": "Author name", "selector": "author/name"},
		},
	}, plugin.Env{BaseDir: dir})
	require.NoError(t, err)

	rows := collect(t, s)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]interface{}{"id": float64(2), "author": "Grace"}, rows[1])
	assert.Equal(t, "Author name", s.Fields()["author"])

	whole, err := Default.New("json", plugin.Config{"ids": "id", "path": "items.json", "item_selector": "data.items"}, plugin.Env{BaseDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "One", collect(t, whole)[0]["title"])

	bad, err := Default.New("json", plugin.Config{"ids": "id", "path": "items.json", "item_selector": "nope"}, plugin.Env{BaseDir: dir})
	require.NoError(t, err)
	_, err = bad.Count(context.Background())
	assert.Error(t, err)
}

func TestJSONOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "a"}, {"id": "b"}, {"id": "c"}]`))
	}))
	defer srv.Close()

	s, err := Default.New("json", plugin.Config{"ids": "id", "path": srv.URL + "/feed"}, plugin.Env{BaseDir: "/ignored"})
	require.NoError(t, err)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	missing, err := Default.New("json", plugin.Config{"ids": "id", "path": srv.URL + "/gone"}, plugin.Env{})
	require.NoError(t, err)
	_, err = missing.Count(context.Background())
	assert.Error(t, err)
}

const catalogXML = `<?xml version="1.0"?>
<response>
  <meta><item><id>ignored</id></item></meta>
  <items>
    <item lang="en">
      <id>1</id>
      <title>Hello</title>
      <tags><tag>a</tag><tag>b</tag></tags>
    </item>
    <item lang="fr">
      <id>2</id>
      <title>Bonjour</title>
      <tags><tag>c</tag></tags>
    </item>
  </items>
</response>`

func TestXML(t *testing.T) {
	dir := writeFile(t, "catalog.xml", catalogXML)
	cfg := plugin.Config{
		"ids":           "id",
		"path":          "catalog.xml",
		"item_selector": "/response/items/item",
		"fields": []interface{}{
			map[string]interface{}{"name": "id", "selector": "id"},
			map[string]interface{}{"name": "title", "selector": "title"},
			map[string]interface{}{"name": "lang", "selector": "@lang"},
			map[string]interface{}{"name": "tags", "selector": "tags/tag"},
			map[string]interface{}{"name": "missing", "selector": "nope"},
		},
	}
	s, err := Default.New("xml", cfg, plugin.Env{BaseDir: dir})
	require.NoError(t, err)

	rows := collect(t, s)
	require.Len(t, rows, 2, "items under <meta> are not matched")
	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, "Hello", rows[0]["title"])
	assert.Equal(t, "en", rows[0]["lang"])
	assert.Equal(t, []interface{}{"a", "b"}, rows[0]["tags"])
	assert.Equal(t, "c", rows[1]["tags"])
	assert.Nil(t, rows[1]["missing"])

	cfg["keep_strings"] = false
	typed, err := Default.New("xml", cfg, plugin.Env{BaseDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, collect(t, typed)[1]["id"])

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestXMLConfig(t *testing.T) {
	fields := []interface{}{map[string]interface{}{"name": "id"}}
	for name, cfg := range map[string]plugin.Config{
		"no fields":    {"ids": "id", "path": "a.xml", "item_selector": "/a/b"},
		"no selector":  {"ids": "id", "path": "a.xml", "fields": fields},
		"predicate":    {"ids": "id", "path": "a.xml", "item_selector": "/a/b[@x='1']", "fields": fields},
		"no path":      {"ids": "id", "item_selector": "/a/b", "fields": fields},
		"field noname": {"ids": "id", "path": "a.xml", "item_selector": "/a", "fields": []interface{}{map[string]interface{}{}}},
	} {
		_, err := Default.New("xml", cfg, plugin.Env{})
		assert.True(t, errors.IsInvalidConfig(err), name)
	}
}

func TestXMLMalformed(t *testing.T) {
	dir := writeFile(t, "bad.xml", "<response><items><item><id>1</id></item>")
	s, err := Default.New("xml", plugin.Config{
		"ids": "id", "path": "bad.xml", "item_selector": "/response/items/item",
		"fields": []interface{}{map[string]interface{}{"name": "id"}},
	}, plugin.Env{BaseDir: dir})
	require.NoError(t, err)

	var errs []error
	var rows int
	for _, err := range s.Rows(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows++
	}
	assert.Equal(t, 1, rows)
	assert.Len(t, errs, 1)
}

func TestSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE legacy_users (uid INTEGER PRIMARY KEY, name TEXT, mail BLOB);
		INSERT INTO legacy_users VALUES (1, 'ada', 'ada@example.com'), (2, 'grace', NULL);`)
	require.NoError(t, err)

	s, err := Default.New("sqlite", plugin.Config{"ids": "uid", "query": "SELECT uid, name, mail FROM legacy_users ORDER BY uid"}, plugin.Env{DB: db})
	require.NoError(t, err)

	rows := collect(t, s)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["uid"])
	assert.Equal(t, "ada@example.com", rows[0]["mail"])
	assert.Nil(t, rows[1]["mail"])

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"uid": "uid", "name": "name", "mail": "mail"}, s.Fields())

	_, err = Default.New("sqlite", plugin.Config{"ids": "uid", "query": "SELECT 1"}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))

	broken, err := Default.New("sqlite", plugin.Config{"ids": "uid", "query": "SELECT * FROM nope"}, plugin.Env{DB: db})
	require.NoError(t, err)
	for _, err := range broken.Rows(context.Background()) {
		assert.Error(t, err)
	}
}
