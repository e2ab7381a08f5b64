// Package idmaptest holds behaviour tests every idmap.Map implementation
// must pass.
package idmaptest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/model"
)

// Factory returns a map for the given migration id. Maps created within the
// same test share their backing storage, so each starts empty only for
// migration ids the test has not used yet.
type Factory func(t *testing.T, migrationID string) idmap.Map

// Run exercises m against the identifier map contract.
func Run(t *testing.T, newMap Factory) {
	ctx := context.Background()

	t.Run("record then lookup", func(t *testing.T) {
		m := newMap(t, "users")
		src := model.Key{"42"}

		_, found, err := m.LookupDestination(ctx, src)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: src, DestinationKey: model.Key{"7"}, Status: model.StatusImported, Hash: "h1",
		}))

		dest, found, err := m.LookupDestination(ctx, src)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, model.Key{"7"}, dest)

		back, found, err := m.LookupSource(ctx, model.Key{"7"})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, src, back)

		entry, err := m.Lookup(ctx, src)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, model.StatusImported, entry.Status)
		assert.Equal(t, "users", entry.MigrationID)
	})

	t.Run("composite keys", func(t *testing.T) {
		m := newMap(t, "translations")
		src := model.Key{"1", "fr"}
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: src, DestinationKey: model.Key{"9", "fr"}, Status: model.StatusImported, Hash: "h",
		}))

		dest, found, err := m.LookupDestination(ctx, src)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, model.Key{"9", "fr"}, dest)

		_, found, err = m.LookupDestination(ctx, model.Key{"1", "de"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("upsert keeps one entry per source key", func(t *testing.T) {
		m := newMap(t, "users")
		src := model.Key{"1"}
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: src, Status: model.StatusFailed, Hash: "a"}))
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: src, DestinationKey: model.Key{"5"}, Status: model.StatusImported, Hash: "b",
		}))

		entries, err := m.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.StatusImported, entries[0].Status)
		assert.Equal(t, "b", entries[0].Hash)

		// Re-pointing the destination drops the old reverse lookup.
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: src, DestinationKey: model.Key{"6"}, Status: model.StatusImported, Hash: "b",
		}))
		_, found, err := m.LookupSource(ctx, model.Key{"5"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("skipped rows have no destination", func(t *testing.T) {
		m := newMap(t, "users")
		src := model.Key{"3"}
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: src, Status: model.StatusIgnored, Hash: "h", Message: "skipped", Level: model.LevelInformational,
		}))

		_, found, err := m.LookupDestination(ctx, src)
		require.NoError(t, err)
		assert.False(t, found)

		entry, err := m.Lookup(ctx, src)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, model.StatusIgnored, entry.Status)
		assert.Empty(t, entry.DestinationKey)
	})

	t.Run("needs update", func(t *testing.T) {
		m := newMap(t, "users")
		src := model.Key{"1"}

		needs, err := m.NeedsUpdate(ctx, src, "h1")
		require.NoError(t, err)
		assert.True(t, needs, "unknown rows need processing")

		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: src, DestinationKey: model.Key{"1"}, Status: model.StatusImported, Hash: "h1",
		}))
		needs, err = m.NeedsUpdate(ctx, src, "h1")
		require.NoError(t, err)
		assert.False(t, needs, "same hash after import")

		needs, err = m.NeedsUpdate(ctx, src, "h2")
		require.NoError(t, err)
		assert.True(t, needs, "changed hash")

		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: src, Status: model.StatusFailed, Hash: "h1"}))
		needs, err = m.NeedsUpdate(ctx, src, "h1")
		require.NoError(t, err)
		assert.True(t, needs, "failed rows are retried")

		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: src, Status: model.StatusIgnored, Hash: "h1"}))
		needs, err = m.NeedsUpdate(ctx, src, "h1")
		require.NoError(t, err)
		assert.False(t, needs, "ignored rows with the same hash stay skipped")

		require.NoError(t, m.PrepareUpdate(ctx))
		needs, err = m.NeedsUpdate(ctx, src, "h1")
		require.NoError(t, err)
		assert.True(t, needs, "prepare update flags every row")
	})

	t.Run("messages", func(t *testing.T) {
		m := newMap(t, "users")
		a, b := model.Key{"a"}, model.Key{"b"}
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: a, Status: model.StatusFailed, Message: "boom"}))
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: b, Status: model.StatusIgnored, Message: "skip", Level: model.LevelInformational,
		}))

		msgs, err := m.Messages(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "boom", msgs[0].Message)
		assert.Equal(t, model.LevelError, msgs[0].Level, "level defaults to error")
		assert.Equal(t, model.LevelInformational, msgs[1].Level)

		require.NoError(t, m.ClearMessages(ctx, a))
		msgs, err = m.Messages(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, b, msgs[0].SourceKey)

		entry, err := m.Lookup(ctx, a)
		require.NoError(t, err)
		require.NotNil(t, entry, "clearing messages keeps the entry")
		assert.Equal(t, model.StatusFailed, entry.Status)
	})

	t.Run("counts", func(t *testing.T) {
		m := newMap(t, "users")
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: model.Key{"1"}, DestinationKey: model.Key{"1"}}))
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: model.Key{"2"}, DestinationKey: model.Key{"2"}}))
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: model.Key{"3"}, Status: model.StatusIgnored}))

		counts, err := m.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[model.StatusImported])
		assert.Equal(t, 1, counts[model.StatusIgnored])
		assert.Equal(t, 0, counts[model.StatusFailed])
	})

	t.Run("maps are scoped per migration", func(t *testing.T) {
		users := newMap(t, "users")
		nodes := newMap(t, "nodes")
		assert.Equal(t, "users", users.MigrationID())
		assert.Equal(t, "nodes", nodes.MigrationID())

		require.NoError(t, users.RecordStatus(ctx, model.MapRecord{
			SourceKey: model.Key{"1"}, DestinationKey: model.Key{"10"}, Message: "from users",
		}))
		require.NoError(t, nodes.RecordStatus(ctx, model.MapRecord{
			SourceKey: model.Key{"2"}, DestinationKey: model.Key{"20"},
		}))

		_, found, err := nodes.LookupDestination(ctx, model.Key{"1"})
		require.NoError(t, err)
		assert.False(t, found, "nodes sees no users entry")
		_, found, err = users.LookupDestination(ctx, model.Key{"2"})
		require.NoError(t, err)
		assert.False(t, found, "users sees no nodes entry")
		_, found, err = users.LookupSource(ctx, model.Key{"20"})
		require.NoError(t, err)
		assert.False(t, found)

		for m, want := range map[idmap.Map]model.Key{users: {"1"}, nodes: {"2"}} {
			entries, err := m.Entries(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 1, m.MigrationID())
			assert.Equal(t, want, entries[0].SourceKey)
		}
		msgs, err := nodes.Messages(ctx)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		n, err := nodes.Rollback(ctx, func(context.Context, model.MapEntry) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		entries, err := users.Entries(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "rolling back nodes leaves users alone")
	})

	t.Run("rollback is idempotent", func(t *testing.T) {
		m := newMap(t, "users")
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: model.Key{"1"}, DestinationKey: model.Key{"10"}}))
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: model.Key{"2"}, DestinationKey: model.Key{"20"}, Rollback: model.RollbackPreserve,
		}))
		require.NoError(t, m.RecordStatus(ctx, model.MapRecord{
			SourceKey: model.Key{"3"}, Status: model.StatusIgnored, Message: "skipped",
		}))

		var destroyed []string
		destroy := func(_ context.Context, e model.MapEntry) error {
			destroyed = append(destroyed, e.DestinationKey.String())
			return nil
		}

		n, err := m.Rollback(ctx, destroy)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"10"}, destroyed, "preserved and skipped rows are not destroyed")

		entries, err := m.Entries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
		msgs, err := m.Messages(ctx)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		n, err = m.Rollback(ctx, destroy)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, []string{"10"}, destroyed, "second rollback has no side effects")
	})

	t.Run("interrupted rollback resumes", func(t *testing.T) {
		m := newMap(t, "users")
		for _, id := range []string{"1", "2", "3"} {
			require.NoError(t, m.RecordStatus(ctx, model.MapRecord{SourceKey: model.Key{id}, DestinationKey: model.Key{id}}))
		}

		calls := 0
		failing := func(_ context.Context, e model.MapEntry) error {
			calls++
			if calls == 2 {
				return errors.New("destination unavailable")
			}
			return nil
		}
		n, err := m.Rollback(ctx, failing)
		require.Error(t, err)
		assert.Equal(t, 1, n)

		entries, err := m.Entries(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "the failed entry stays for the next attempt")

		n, err = m.Rollback(ctx, func(context.Context, model.MapEntry) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
