package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooseEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{"numeric string and int", "86", 86, true},
		{"int and numeric string", 5, "5", true},
		{"int and float", 5, 5.0, true},
		{"int64 and int", int64(3), 3, true},
		{"uint8 and string", uint8(8), "8", true},
		{"padded numeric string", " 86 ", 86, true},
		{"float strings", "1.0", "1", true},
		{"identical strings", "sourceValue", "sourceValue", true},
		{"different strings", "sourceValue", "other", false},
		{"different numbers", "4", 5, false},
		{"non numeric string vs zero", "abc", 0, false},
		{"nil and empty string", nil, "", true},
		{"nil and nil", nil, nil, true},
		{"nil and zero", nil, 0, false},
		{"bool and one", true, "1", true},
		{"bool false and zero", false, 0, true},
		{"bool true and false string", true, "false", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooseEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, LooseEqual(tt.b, tt.a), "must be symmetric")
		})
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "42", ToString(42))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "3", ToString(float64(3)))
	assert.Equal(t, "1", ToString(true))
	assert.Equal(t, "abc", ToString([]byte("abc")))
}

func TestIsEmptyAndScalar(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty([]interface{}{}))
	assert.True(t, IsEmpty(map[string]interface{}{}))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty("x"))

	assert.True(t, IsScalar(1))
	assert.True(t, IsScalar("x"))
	assert.False(t, IsScalar([]int{1}))
	assert.False(t, IsScalar(map[string]int{}))
}

func TestToSlice(t *testing.T) {
	s, ok := ToSlice([]int{1, 2})
	require.True(t, ok)
	assert.Equal(t, []interface{}{1, 2}, s)

	_, ok = ToSlice("nope")
	assert.False(t, ok)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 12, ParseValue(" 12 "))
	assert.Equal(t, 1.5, ParseValue("1.5"))
	assert.Equal(t, "x", ParseValue("x"))
	assert.Equal(t, 3*time.Second, ParseDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("bogus", time.Minute))
}

func TestOutputManager(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	dir, err := om.MigrationDir("users/v1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "users_v1"), dir)

	assert.Equal(t, filepath.Join(base, "users_v1", "a_b.json"), om.RecordPath("users/v1", "a b", ".json"))
	assert.False(t, om.RecordExists("users/v1", "a b", ".json"))
	assert.NoError(t, om.RemoveRecord("users/v1", "missing", ".json"))

	file := filepath.Join(base, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewOutputManager(file).MigrationDir("users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create migration output directory")
}
