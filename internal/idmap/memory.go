package idmap

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-migrate-pipeline/internal/model"
)

// Memory is an in-process Map. Used for dry runs and tests.
type Memory struct {
	migrationID string

	mu       sync.Mutex
	entries  map[string]*model.MapEntry // by source key hash
	byDest   map[string]string          // dest key hash -> source key hash
	messages []model.Message
	nextMsg  int64
	now      func() time.Time
}

// NewMemory creates an empty in-memory map.
func NewMemory(migrationID string) *Memory {
	return &Memory{
		migrationID: migrationID,
		entries:     make(map[string]*model.MapEntry),
		byDest:      make(map[string]string),
		now:         time.Now,
	}
}

// MigrationID implements Map.
func (m *Memory) MigrationID() string { return m.migrationID }

// Lookup implements Map.
func (m *Memory) Lookup(_ context.Context, sourceKey model.Key) (*model.MapEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sourceKey.Hash()]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// LookupDestination implements Map.
func (m *Memory) LookupDestination(ctx context.Context, sourceKey model.Key) (model.Key, bool, error) {
	e, err := m.Lookup(ctx, sourceKey)
	if err != nil || e == nil || len(e.DestinationKey) == 0 {
		return nil, false, err
	}
	return e.DestinationKey, true, nil
}

// LookupSource implements Map.
func (m *Memory) LookupSource(_ context.Context, destKey model.Key) (model.Key, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.byDest[destKey.Hash()]
	if !ok {
		return nil, false, nil
	}
	return m.entries[src].SourceKey, true, nil
}

// RecordStatus implements Map.
func (m *Memory) RecordStatus(_ context.Context, rec model.MapRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := rec.SourceKey.Hash()
	if old, ok := m.entries[h]; ok && len(old.DestinationKey) > 0 {
		delete(m.byDest, old.DestinationKey.Hash())
	}
	m.entries[h] = &model.MapEntry{
		MigrationID:    m.migrationID,
		SourceKey:      rec.SourceKey,
		DestinationKey: rec.DestinationKey,
		Status:         rec.Status,
		Rollback:       rec.Rollback,
		Hash:           rec.Hash,
		LastImported:   m.now(),
	}
	if len(rec.DestinationKey) > 0 {
		m.byDest[rec.DestinationKey.Hash()] = h
	}
	if rec.Message != "" {
		m.nextMsg++
		level := rec.Level
		if level == 0 {
			level = model.LevelError
		}
		m.messages = append(m.messages, model.Message{
			ID:        m.nextMsg,
			SourceKey: rec.SourceKey,
			Level:     level,
			Message:   rec.Message,
			CreatedAt: m.now(),
		})
	}
	return nil
}

// NeedsUpdate implements Map.
func (m *Memory) NeedsUpdate(ctx context.Context, sourceKey model.Key, hash string) (bool, error) {
	e, err := m.Lookup(ctx, sourceKey)
	if err != nil {
		return false, err
	}
	return NeedsUpdate(e, hash), nil
}

// ClearMessages implements Map.
func (m *Memory) ClearMessages(_ context.Context, sourceKey model.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropMessages(sourceKey)
	return nil
}

func (m *Memory) dropMessages(sourceKey model.Key) {
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if !msg.SourceKey.Equal(sourceKey) {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
}

// Messages implements Map.
func (m *Memory) Messages(_ context.Context) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.messages...), nil
}

// Entries implements Map.
func (m *Memory) Entries(_ context.Context) ([]model.MapEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedEntries(), nil
}

func (m *Memory) sortedEntries() []model.MapEntry {
	out := make([]model.MapEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceKey.String() < out[j].SourceKey.String() })
	return out
}

// Counts implements Map.
func (m *Memory) Counts(_ context.Context) (map[model.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.Status]int)
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// PrepareUpdate implements Map.
func (m *Memory) PrepareUpdate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.Status = model.StatusNeedsUpdate
	}
	return nil
}

// Rollback implements Map.
func (m *Memory) Rollback(ctx context.Context, destroy DestroyFunc) (int, error) {
	m.mu.Lock()
	entries := m.sortedEntries()
	m.mu.Unlock()

	n := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if ShouldDestroy(e) && destroy != nil {
			if err := destroy(ctx, e); err != nil {
				return n, err
			}
		}
		m.mu.Lock()
		h := e.SourceKey.Hash()
		delete(m.entries, h)
		if len(e.DestinationKey) > 0 {
			delete(m.byDest, e.DestinationKey.Hash())
		}
		m.dropMessages(e.SourceKey)
		m.mu.Unlock()
		n++
	}
	return n, nil
}

var _ Map = (*Memory)(nil)
