package write

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/client/cache"
	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCache(store *cache.Store, resource string, rec *models.Record) {
	store.Apply([]models.StoreChange{{Resource: resource, ID: rec.ID, After: rec}})
}

func TestCompiler_CompileCreate(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	compiler.SetNow(func() time.Time { return fixed })

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{Value: map[string]any{"title": "write tests"}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "tasks", prepared.Resource)
	assert.Equal(t, string(models.ActionCreate), prepared.Entry.Action)
	assert.NotEmpty(t, prepared.Entry.EntryID)
	assert.NotEmpty(t, prepared.Entry.Item.ID)
	assert.NotEmpty(t, prepared.Entry.Item.Meta.IdempotencyKey)
	assert.Equal(t, fixed.UnixMilli(), prepared.Entry.Item.Meta.ClientTimeMs)
	assert.Nil(t, prepared.Entry.Item.BaseVersion)

	require.Len(t, prepared.Optimistic, 1)
	delta := prepared.Optimistic[0]
	assert.Nil(t, delta.Before)
	require.NotNil(t, delta.After)
	assert.Equal(t, int64(1), delta.After.Version)
	assert.Equal(t, "write tests", delta.After.Fields["title"])
}

func TestCompiler_CompileCreateKeepsExplicitID(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{ID: "task-42", Value: map[string]any{"title": "x"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "task-42", prepared.Entry.Item.ID)
}

func TestCompiler_CompileCreateRejectsBadID(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	_, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{ID: "has space", Value: map[string]any{}}, Options{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCompiler_CompileRejectsBadResource(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	_, err := compiler.Compile(context.Background(), "Tasks!",
		models.CreateIntent{Value: map[string]any{}}, Options{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCompiler_CompileUpdate(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	seedCache(store, "tasks", &models.Record{
		ID: "t1", Version: 3, Fields: map[string]any{"title": "old", "done": false},
	})

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{
			ID: "t1",
			Update: func(rec *models.Record) {
				rec.Fields["done"] = true
			},
		}, Options{})
	require.NoError(t, err)

	assert.Equal(t, string(models.ActionUpdate), prepared.Entry.Action)
	require.NotNil(t, prepared.Entry.Item.BaseVersion)
	assert.Equal(t, int64(3), *prepared.Entry.Item.BaseVersion)

	require.Len(t, prepared.Optimistic, 1)
	delta := prepared.Optimistic[0]
	require.NotNil(t, delta.Before)
	assert.Equal(t, int64(3), delta.Before.Version)
	// Версия остается серверной до writeback
	assert.Equal(t, int64(3), delta.After.Version)
	assert.Equal(t, true, delta.After.Fields["done"])
	assert.Equal(t, "old", delta.After.Fields["title"])

	// Компиляция не трогает кэш: это работа координатора
	cached, ok := store.Get("tasks", "t1")
	require.True(t, ok)
	assert.Equal(t, false, cached.Fields["done"])
}

func TestCompiler_CompileUpdateExplicitBaseVersionWins(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	seedCache(store, "tasks", &models.Record{ID: "t1", Version: 3, Fields: map[string]any{}})

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{ID: "t1", BaseVersion: 7, Update: func(rec *models.Record) {}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), *prepared.Entry.Item.BaseVersion)
}

func TestCompiler_CompileUpdateMissingBase(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	_, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{ID: "ghost", Update: func(rec *models.Record) {}}, Options{})
	require.ErrorIs(t, err, ErrMissingBase)
}

func TestCompiler_CompileUpdateIdentityMismatch(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	seedCache(store, "tasks", &models.Record{ID: "t1", Version: 1, Fields: map[string]any{}})

	_, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{ID: "t1", Update: func(rec *models.Record) {
			rec.ID = "t2"
		}}, Options{})
	require.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestCompiler_BaseFetchResolvesRemotely(t *testing.T) {
	store := cache.NewStore(testLogger())
	fetcher := &FetcherMock{
		FetchRecordFunc: func(ctx context.Context, resource, id string) (*models.Record, error) {
			return &models.Record{ID: id, Version: 5, Fields: map[string]any{"title": "remote"}}, nil
		},
	}
	compiler := NewCompiler(store, fetcher, testLogger())

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{ID: "t1", Update: func(rec *models.Record) {
			rec.Fields["title"] = "patched"
		}}, Options{Policy: Policy{Base: BaseFetch}})
	require.NoError(t, err)

	require.Len(t, fetcher.FetchRecordCalls(), 1)
	assert.Equal(t, "t1", fetcher.FetchRecordCalls()[0].ID)
	assert.Equal(t, int64(5), *prepared.Entry.Item.BaseVersion)
	assert.Equal(t, "patched", prepared.Optimistic[0].After.Fields["title"])
}

func TestCompiler_BaseFetchPrefersCache(t *testing.T) {
	store := cache.NewStore(testLogger())
	fetcher := &FetcherMock{
		FetchRecordFunc: func(ctx context.Context, resource, id string) (*models.Record, error) {
			return nil, errors.New("should not be called")
		},
	}
	compiler := NewCompiler(store, fetcher, testLogger())
	seedCache(store, "tasks", &models.Record{ID: "t1", Version: 2, Fields: map[string]any{}})

	_, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{ID: "t1", Update: func(rec *models.Record) {}},
		Options{Policy: Policy{Base: BaseFetch}})
	require.NoError(t, err)
	assert.Empty(t, fetcher.FetchRecordCalls())
}

func TestCompiler_BaseFetchNotFound(t *testing.T) {
	store := cache.NewStore(testLogger())
	fetcher := &FetcherMock{
		FetchRecordFunc: func(ctx context.Context, resource, id string) (*models.Record, error) {
			return nil, nil
		},
	}
	compiler := NewCompiler(store, fetcher, testLogger())

	_, err := compiler.Compile(context.Background(), "tasks",
		models.UpdateIntent{ID: "ghost", Update: func(rec *models.Record) {}},
		Options{Policy: Policy{Base: BaseFetch}})
	require.ErrorIs(t, err, ErrMissingBase)
}

func TestCompiler_CompileUpsertMerge(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	seedCache(store, "tasks", &models.Record{
		ID: "t1", Version: 4, Fields: map[string]any{"title": "keep", "done": false},
	})

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.UpsertIntent{ID: "t1", Value: map[string]any{"done": true}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, string(models.ActionUpsert), prepared.Entry.Action)
	assert.Equal(t, "keep", prepared.Entry.Item.Value["title"])
	assert.Equal(t, true, prepared.Entry.Item.Value["done"])

	require.NotNil(t, prepared.Entry.Options)
	require.NotNil(t, prepared.Entry.Options.Merge)
	assert.True(t, *prepared.Entry.Options.Merge)
	assert.Equal(t, api.UpsertStrict, prepared.Entry.Options.UpsertMode)
	require.NotNil(t, prepared.Entry.Item.ExpectedVersion)
	assert.Equal(t, int64(4), *prepared.Entry.Item.ExpectedVersion)
}

func TestCompiler_CompileUpsertReplaceWithoutBase(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.UpsertIntent{
			ID:       "fresh",
			Value:    map[string]any{"title": "new"},
			Apply:    models.ApplyReplace,
			Conflict: models.ConflictLoose,
		}, Options{})
	require.NoError(t, err)

	assert.False(t, *prepared.Entry.Options.Merge)
	assert.Equal(t, api.UpsertLoose, prepared.Entry.Options.UpsertMode)
	assert.Nil(t, prepared.Entry.Item.ExpectedVersion)
	assert.Equal(t, int64(1), prepared.Optimistic[0].After.Version)
}

func TestCompiler_CompileUpsertRequiresID(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	_, err := compiler.Compile(context.Background(), "tasks",
		models.UpsertIntent{Value: map[string]any{}}, Options{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCompiler_CompileSoftDelete(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	seedCache(store, "tasks", &models.Record{
		ID: "t1", Version: 2, Fields: map[string]any{"title": "x"},
	})

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.DeleteIntent{ID: "t1"}, Options{})
	require.NoError(t, err)

	// Soft delete едет как update с deleted=true
	assert.Equal(t, string(models.ActionUpdate), prepared.Entry.Action)
	require.NotNil(t, prepared.Entry.Item.Deleted)
	assert.True(t, *prepared.Entry.Item.Deleted)
	assert.Equal(t, int64(2), *prepared.Entry.Item.BaseVersion)

	require.NotNil(t, prepared.Optimistic[0].After)
	assert.True(t, prepared.Optimistic[0].After.Deleted)
}

func TestCompiler_CompileForceDelete(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())
	seedCache(store, "tasks", &models.Record{
		ID: "t1", Version: 2, Fields: map[string]any{"title": "x"},
	})

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.DeleteIntent{ID: "t1", Force: true}, Options{})
	require.NoError(t, err)

	assert.Equal(t, string(models.ActionDelete), prepared.Entry.Action)
	assert.Nil(t, prepared.Optimistic[0].After)
	require.NotNil(t, prepared.Optimistic[0].Before)
}

func TestCompiler_CompileDeleteMissingBase(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	_, err := compiler.Compile(context.Background(), "tasks",
		models.DeleteIntent{ID: "ghost", Force: true}, Options{})
	require.ErrorIs(t, err, ErrMissingBase)
}

func TestCompiler_Transforms(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	stamp := func(ctx context.Context, fields map[string]any) (map[string]any, error) {
		fields["source"] = "cli"
		return fields, nil
	}

	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{Value: map[string]any{"title": "x"}},
		Options{Transforms: []Transform{stamp}})
	require.NoError(t, err)
	assert.Equal(t, "cli", prepared.Entry.Item.Value["source"])
}

func TestCompiler_TransformFailureAborts(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	boom := errors.New("reject")
	failing := func(ctx context.Context, fields map[string]any) (map[string]any, error) {
		return nil, boom
	}

	_, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{Value: map[string]any{}},
		Options{Transforms: []Transform{failing}})
	require.ErrorIs(t, err, boom)
}

func TestCompiler_TransformNilValueIsValidationError(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	nilling := func(ctx context.Context, fields map[string]any) (map[string]any, error) {
		return nil, nil
	}

	_, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{Value: map[string]any{}},
		Options{Transforms: []Transform{nilling}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCompiler_ReturningOptionsPropagate(t *testing.T) {
	store := cache.NewStore(testLogger())
	compiler := NewCompiler(store, nil, testLogger())

	returning := false
	prepared, err := compiler.Compile(context.Background(), "tasks",
		models.CreateIntent{Value: map[string]any{}},
		Options{Returning: &returning, Fields: []string{"title"}})
	require.NoError(t, err)

	require.NotNil(t, prepared.Entry.Options)
	assert.False(t, *prepared.Entry.Options.Returning)
	assert.Equal(t, []string{"title"}, prepared.Entry.Options.Fields)
}
