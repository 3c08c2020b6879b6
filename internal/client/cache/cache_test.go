package cache

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rec(id string, version int64, fields map[string]any) *models.Record {
	return &models.Record{ID: id, Version: version, Fields: fields}
}

func TestStore_ApplyAndGet(t *testing.T) {
	s := newStore(t)

	applied := s.Apply([]models.StoreChange{
		{Resource: "tasks", ID: "t1", After: rec("t1", 1, map[string]any{"title": "a"})},
	})
	require.Len(t, applied, 1)

	got, ok := s.Get("tasks", "t1")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "a", got.Fields["title"])

	_, ok = s.Get("tasks", "missing")
	assert.False(t, ok)
	_, ok = s.Get("notes", "t1")
	assert.False(t, ok)
}

func TestStore_GetReturnsClone(t *testing.T) {
	s := newStore(t)
	s.Apply([]models.StoreChange{
		{Resource: "tasks", ID: "t1", After: rec("t1", 1, map[string]any{"title": "a"})},
	})

	got, _ := s.Get("tasks", "t1")
	got.Fields["title"] = "mutated"

	fresh, _ := s.Get("tasks", "t1")
	assert.Equal(t, "a", fresh.Fields["title"], "external mutation must not reach the cache")
}

func TestStore_ApplyElidesNoops(t *testing.T) {
	s := newStore(t)
	after := rec("t1", 1, map[string]any{"title": "a"})

	applied := s.Apply([]models.StoreChange{{Resource: "tasks", ID: "t1", After: after}})
	require.Len(t, applied, 1)

	// Повторное применение того же значения элидируется
	applied = s.Apply([]models.StoreChange{{Resource: "tasks", ID: "t1", After: after}})
	assert.Empty(t, applied)

	// Удаление отсутствующей записи — no-op
	applied = s.Apply([]models.StoreChange{{Resource: "tasks", ID: "ghost", Before: after}})
	assert.Empty(t, applied)

	// before и after оба nil
	applied = s.Apply([]models.StoreChange{{Resource: "tasks", ID: "x"}})
	assert.Empty(t, applied)
}

func TestStore_ApplyDelete(t *testing.T) {
	s := newStore(t)
	before := rec("t1", 1, map[string]any{"title": "a"})
	s.Apply([]models.StoreChange{{Resource: "tasks", ID: "t1", After: before}})

	applied := s.Apply([]models.StoreChange{{Resource: "tasks", ID: "t1", Before: before}})
	require.Len(t, applied, 1)

	_, ok := s.Get("tasks", "t1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len("tasks"))
}

func TestStore_Rollback(t *testing.T) {
	s := newStore(t)
	v1 := rec("t1", 1, map[string]any{"title": "a"})
	s.Apply([]models.StoreChange{{Resource: "tasks", ID: "t1", After: v1}})

	v2 := rec("t1", 2, map[string]any{"title": "b"})
	applied := s.Apply([]models.StoreChange{{Resource: "tasks", ID: "t1", Before: v1, After: v2}})
	require.Len(t, applied, 1)

	s.Rollback(applied)

	got, ok := s.Get("tasks", "t1")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "a", got.Fields["title"])
}

func TestStore_RollbackOfCreateRemoves(t *testing.T) {
	s := newStore(t)

	applied := s.Apply([]models.StoreChange{
		{Resource: "tasks", ID: "t1", After: rec("t1", 1, map[string]any{"title": "a"})},
	})
	s.Rollback(applied)

	_, ok := s.Get("tasks", "t1")
	assert.False(t, ok)
}

func TestStore_ListAndSnapshot(t *testing.T) {
	s := newStore(t)
	s.Apply([]models.StoreChange{
		{Resource: "tasks", ID: "t1", After: rec("t1", 1, map[string]any{"n": 1})},
		{Resource: "tasks", ID: "t2", After: rec("t2", 1, map[string]any{"n": 2})},
		{Resource: "notes", ID: "n1", After: rec("n1", 1, map[string]any{})},
	})

	assert.Len(t, s.List("tasks"), 2)
	assert.Equal(t, 2, s.Len("tasks"))
	assert.Empty(t, s.List("projects"))

	snap := s.Snapshot("tasks")
	require.Len(t, snap, 2)
	snap["t1"].Fields["n"] = 99

	got, _ := s.Get("tasks", "t1")
	assert.Equal(t, 1, got.Fields["n"], "snapshot must be a deep copy")
}

func TestStore_Clear(t *testing.T) {
	s := newStore(t)
	s.Apply([]models.StoreChange{
		{Resource: "tasks", ID: "t1", After: rec("t1", 1, nil)},
	})

	s.Clear()
	assert.Equal(t, 0, s.Len("tasks"))
}
