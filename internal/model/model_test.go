package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go-migrate-pipeline/internal/errors"
)

func TestRow(t *testing.T) {
	row, err := NewRow(Record{"id": 7, "lang": "en", "name": "Ada"}, []string{"id", "lang"})
	require.NoError(t, err)

	assert.Equal(t, Key{"7", "en"}, row.SourceIDs())

	row.SetDestination("title", "Ada")
	row.SetDestination("body", nil)
	row.SetDestination("title", "ADA")
	assert.Equal(t, []string{"title", "body"}, row.DestinationFields())
	assert.Equal(t, "ADA", row.Get("@title"))
	assert.Equal(t, "Ada", row.Get("name"))
	assert.Nil(t, row.Get("missing"))

	require.NoError(t, row.SetSource("name", "Grace"))
	row.Freeze()
	assert.Error(t, row.SetSource("name", "Linus"))
	v, _ := row.Source("name")
	assert.Equal(t, "Grace", v)
}

func TestRowMissingID(t *testing.T) {
	_, err := NewRow(Record{"name": "x"}, []string{"id"})
	assert.Error(t, err)

	_, err = NewRow(Record{"id": ""}, []string{"id"})
	assert.Error(t, err)
}

func TestRowHashTracksSourceChanges(t *testing.T) {
	a, err := NewRow(Record{"id": 1, "name": "a"}, []string{"id"})
	require.NoError(t, err)
	b, err := NewRow(Record{"name": "a", "id": 1}, []string{"id"})
	require.NoError(t, err)
	c, err := NewRow(Record{"id": 1, "name": "b"}, []string{"id"})
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())

	// Destination values do not affect the hash.
	a.SetDestination("x", 1)
	assert.Equal(t, b.Hash(), a.Hash())
}

func TestKey(t *testing.T) {
	k := KeyOf(1, "a", 2.5)
	assert.Equal(t, Key{"1", "a", "2.5"}, k)
	assert.Equal(t, "1:a:2.5", k.String())
	assert.Equal(t, k.Hash(), Key{"1", "a", "2.5"}.Hash())
	assert.NotEqual(t, k.Hash(), Key{"1", "a"}.Hash())
	assert.True(t, k.Equal(Key{"1", "a", "2.5"}))
	assert.False(t, k.Equal(Key{"1"}))
}

func TestProcessMapPreservesOrderAndShapes(t *testing.T) {
	src := `
id: articles
process:
  title: source_title
  body:
    plugin: trim
    source: text
  status:
    - plugin: skip_on_value
      method: row
      source: state
      value: [draft, archived]
    - plugin: static_map
      map: {published: 1}
`
	var def MigrationDefinition
	require.NoError(t, yaml.Unmarshal([]byte(src), &def))

	require.Len(t, def.Process, 3)
	assert.Equal(t, "title", def.Process[0].Destination)
	assert.Equal(t, "body", def.Process[1].Destination)
	assert.Equal(t, "status", def.Process[2].Destination)

	assert.Equal(t, "get", def.Process[0].Steps[0].Plugin)
	assert.Equal(t, "source_title", def.Process[0].Steps[0].Config["source"])
	assert.Equal(t, "trim", def.Process[1].Steps[0].Plugin)

	require.Len(t, def.Process[2].Steps, 2)
	assert.Equal(t, []interface{}{"draft", "archived"}, def.Process[2].Steps[0].Config["value"])
	assert.Equal(t, map[string]interface{}{"published": 1}, def.Process[2].Steps[1].Config["map"])
}

func TestProcessMapRejectsBadShapes(t *testing.T) {
	var def MigrationDefinition
	err := yaml.Unmarshal([]byte("process: [a, b]\n"), &def)
	assert.True(t, errors.IsInvalidConfig(err), "%v", err)

	err = yaml.Unmarshal([]byte("process:\n  title: [plain]\n"), &def)
	assert.True(t, errors.IsInvalidConfig(err), "%v", err)
	assert.Contains(t, err.Error(), `process field "title"`)
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(MapEntry{Status: StatusNeedsUpdate, Rollback: RollbackPreserve})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"source_row_status":"needs_update"`)
	assert.Contains(t, string(b), `"rollback_action":"preserve"`)
}

func TestRunSummaryDecodesLevels(t *testing.T) {
	in := RunSummary{
		RunID:    "r1",
		Messages: []RowMessage{{SourceKey: Key{"1"}, Level: LevelInformational, Message: "skipped"}},
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out RunSummary
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.Messages, out.Messages)

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
	var a RollbackAction
	require.NoError(t, a.UnmarshalText([]byte("preserve")))
	assert.Equal(t, RollbackPreserve, a)
}

func TestParseKeyList(t *testing.T) {
	assert.Equal(t, []Key{{"1", "en"}, {"2", "fr"}, {"7"}}, ParseKeyList(" 1:en, 2 : fr,,7 "))
	assert.Empty(t, ParseKeyList(""))
}
