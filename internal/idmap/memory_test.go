package idmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/idmap/idmaptest"
	"go-migrate-pipeline/internal/model"
)

func TestMemory(t *testing.T) {
	idmaptest.Run(t, func(t *testing.T, migrationID string) idmap.Map {
		return idmap.NewMemory(migrationID)
	})
}

func TestNeedsUpdateRule(t *testing.T) {
	assert.True(t, idmap.NeedsUpdate(nil, "h"))
	assert.False(t, idmap.NeedsUpdate(&model.MapEntry{Status: model.StatusImported, Hash: "h"}, "h"))
	assert.True(t, idmap.NeedsUpdate(&model.MapEntry{Status: model.StatusImported, Hash: "h"}, "x"))
	assert.True(t, idmap.NeedsUpdate(&model.MapEntry{Status: model.StatusNeedsUpdate, Hash: "h"}, "h"))
	assert.True(t, idmap.NeedsUpdate(&model.MapEntry{Status: model.StatusFailed, Hash: "h"}, "h"))
	assert.False(t, idmap.NeedsUpdate(&model.MapEntry{Status: model.StatusIgnored, Hash: "h"}, "h"))
}

func TestShouldDestroy(t *testing.T) {
	assert.True(t, idmap.ShouldDestroy(model.MapEntry{DestinationKey: model.Key{"1"}}))
	assert.False(t, idmap.ShouldDestroy(model.MapEntry{}))
	assert.False(t, idmap.ShouldDestroy(model.MapEntry{DestinationKey: model.Key{"1"}, Rollback: model.RollbackPreserve}))
}
