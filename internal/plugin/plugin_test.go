package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-migrate-pipeline/internal/errors"
)

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		"name":    "users",
		"num":     86,
		"flag":    true,
		"sflag":   "false",
		"list":    []interface{}{"a", 1},
		"single":  "x",
		"mapping": map[string]interface{}{"a": 1},
		"nested":  []interface{}{map[string]interface{}{}},
	}

	s, err := cfg.RequiredString("name")
	require.NoError(t, err)
	assert.Equal(t, "users", s)

	_, err = cfg.RequiredString("absent")
	assert.True(t, errors.IsInvalidConfig(err))

	n, err := cfg.Int("num", 0)
	require.NoError(t, err)
	assert.Equal(t, 86, n)

	b, err := cfg.Bool("flag", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = cfg.Bool("sflag", true)
	require.NoError(t, err)
	assert.False(t, b)
	_, err = cfg.Bool("list", false)
	assert.Error(t, err)

	list, err := cfg.Strings("list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "1"}, list)
	list, err = cfg.Strings("single")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, list)
	_, err = cfg.Strings("nested")
	assert.Error(t, err)

	m, err := cfg.Map("mapping")
	require.NoError(t, err)
	assert.Equal(t, 1, m["a"])
	_, err = cfg.Map("name")
	assert.Error(t, err)
}

func TestConfigMapWithScalarKeys(t *testing.T) {
	cfg := Config{
		"codes": map[interface{}]interface{}{1: "active", 0: "blocked", 2.5: "half"},
		"bad":   map[interface{}]interface{}{1: "a", nil: "b"},
	}

	m, err := cfg.Map("codes")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"1": "active", "0": "blocked", "2.5": "half"}, m)

	_, err = cfg.Map("bad")
	assert.True(t, errors.IsInvalidConfig(err))
}
