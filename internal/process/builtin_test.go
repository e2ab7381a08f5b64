package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
)

func build(t *testing.T, id string, cfg plugin.Config, env plugin.Env) Plugin {
	t.Helper()
	p, err := Default.New(id, cfg, env)
	require.NoError(t, err)
	require.Equal(t, id, p.ID())
	return p
}

func TestRegistryHasBuiltins(t *testing.T) {
	for _, id := range []string{
		"get", "default_value", "skip_on_value", "skip_on_empty", "static_map",
		"concat", "explode", "trim", "lowercase", "uppercase", "title_case", "migration_lookup",
	} {
		assert.True(t, Default.Has(id), id)
	}
}

func TestDefaultValue(t *testing.T) {
	p := build(t, "default_value", plugin.Config{"default_value": "n/a"}, plugin.Env{})
	assert.Equal(t, "n/a", transform(t, p, nil).Value)
	assert.Equal(t, "n/a", transform(t, p, "").Value)
	assert.Equal(t, 0, transform(t, p, 0).Value)

	strict := build(t, "default_value", plugin.Config{"default_value": "n/a", "strict": true}, plugin.Env{})
	assert.Equal(t, "", transform(t, strict, "").Value)
	assert.Equal(t, "n/a", transform(t, strict, nil).Value)

	_, err := Default.New("default_value", plugin.Config{}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestSkipOnEmpty(t *testing.T) {
	row := build(t, "skip_on_empty", plugin.Config{"method": "row", "message": "empty"}, plugin.Env{})
	res := transform(t, row, "")
	assert.Equal(t, SignalSkipRow, res.Signal)
	assert.Equal(t, "empty", res.Message)
	assert.Equal(t, SignalContinue, transform(t, row, "x").Signal)

	proc := build(t, "skip_on_empty", plugin.Config{"method": "process"}, plugin.Env{})
	assert.Equal(t, SignalStopField, transform(t, proc, []interface{}{}).Signal)

	_, err := Default.New("skip_on_empty", plugin.Config{"message": "m"}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestStaticMap(t *testing.T) {
	table := map[string]interface{}{"published": 1, "draft": 0}

	p := build(t, "static_map", plugin.Config{"map": table}, plugin.Env{})
	assert.Equal(t, 1, transform(t, p, "published").Value)

	res := transform(t, p, "archived")
	assert.Equal(t, SignalSkipRow, res.Signal)
	assert.Contains(t, res.Message, "archived")
	assert.Contains(t, res.Message, "destinationProperty")

	withDefault := build(t, "static_map", plugin.Config{"map": table, "default_value": -1}, plugin.Env{})
	assert.Equal(t, -1, transform(t, withDefault, "archived").Value)

	bypass := build(t, "static_map", plugin.Config{"map": table, "bypass": true}, plugin.Env{})
	assert.Equal(t, "archived", transform(t, bypass, "archived").Value)

	_, err := Default.New("static_map", plugin.Config{}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestConcatAndExplode(t *testing.T) {
	c := build(t, "concat", plugin.Config{"delimiter": "-"}, plugin.Env{})
	assert.Equal(t, "a-1-b", transform(t, c, []interface{}{"a", 1, "b"}).Value)

	e := build(t, "explode", plugin.Config{"delimiter": ","}, plugin.Env{})
	assert.Equal(t, []interface{}{"a", "b", "c"}, transform(t, e, "a,b,c").Value)

	limited := build(t, "explode", plugin.Config{"delimiter": ",", "limit": 2}, plugin.Env{})
	assert.Equal(t, []interface{}{"a", "b,c"}, transform(t, limited, "a,b,c").Value)

	_, err := Default.New("explode", plugin.Config{}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))

	row, _ := model.NewRow(model.Record{"id": 1}, []string{"id"})
	_, err = c.Transform(context.Background(), "scalar", row, "title")
	assert.Error(t, err)
}

func TestStringTransforms(t *testing.T) {
	assert.Equal(t, "padded", transform(t, build(t, "trim", nil, plugin.Env{}), "  padded \n").Value)
	assert.Equal(t, "x", transform(t, build(t, "trim", plugin.Config{"chars": "/"}, plugin.Env{}), "/x/").Value)
	assert.Equal(t, "abc", transform(t, build(t, "lowercase", nil, plugin.Env{}), "ABC").Value)
	assert.Equal(t, "ABC", transform(t, build(t, "uppercase", nil, plugin.Env{}), "abc").Value)
	assert.Equal(t, "Ada Lovelace", transform(t, build(t, "title_case", nil, plugin.Env{}), "ADA loveLACE").Value)

	upper := build(t, "uppercase", nil, plugin.Env{})
	assert.Equal(t, []interface{}{"A", 2}, transform(t, upper, []interface{}{"a", 2}).Value)
	assert.Equal(t, 7, transform(t, upper, 7).Value)
}

func TestMigrationLookup(t *testing.T) {
	env := plugin.Env{
		Lookup: func(_ context.Context, migrationID string, key model.Key) (model.Key, bool, error) {
			switch {
			case migrationID == "roles" && key.String() == "editor":
				return model.Key{"3"}, true, nil
			case migrationID == "tags" && key.String() == "x:y":
				return model.Key{"10", "en"}, true, nil
			case migrationID == "broken":
				return nil, false, errors.New("storage down")
			}
			return nil, false, nil
		},
	}

	p := build(t, "migration_lookup", plugin.Config{"migration": []interface{}{"users", "roles"}}, env)
	assert.Equal(t, "3", transform(t, p, "editor").Value)
	assert.Nil(t, transform(t, p, "nobody").Value)
	assert.Nil(t, transform(t, p, "").Value)

	composite := build(t, "migration_lookup", plugin.Config{"migration": "tags"}, env)
	assert.Equal(t, []interface{}{"10", "en"}, transform(t, composite, []interface{}{"x", "y"}).Value)

	broken := build(t, "migration_lookup", plugin.Config{"migration": "broken"}, env)
	row, _ := model.NewRow(model.Record{"id": 1}, []string{"id"})
	_, err := broken.Transform(context.Background(), "a", row, "uid")
	assert.Error(t, err)

	_, err = Default.New("migration_lookup", plugin.Config{}, env)
	assert.True(t, errors.IsInvalidConfig(err))
	_, err = Default.New("migration_lookup", plugin.Config{"migration": "roles"}, plugin.Env{})
	assert.True(t, errors.IsInvalidConfig(err))
}
