package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/pkg/api"
)

type recordingApplier struct {
	mu     sync.Mutex
	groups [][]api.WriteEntry
}

func (a *recordingApplier) ApplyGroup(_ context.Context, _ string, entries []api.WriteEntry) []api.WriteResult {
	a.mu.Lock()
	a.groups = append(a.groups, entries)
	a.mu.Unlock()

	results := make([]api.WriteResult, len(entries))
	for i, e := range entries {
		results[i] = api.WriteResult{EntryID: e.EntryID, OK: true}
	}
	return results
}

func entry(id, action string, options *api.WriteEntryOptions) api.WriteEntry {
	return api.WriteEntry{EntryID: id, Action: action, Options: options}
}

func TestDispatch_PreservesRequestOrder(t *testing.T) {
	applier := &recordingApplier{}
	d := New(applier, nil)

	loose := &api.WriteEntryOptions{UpsertMode: api.UpsertLoose}
	req := api.WriteRequest{
		Resource: "tasks",
		Entries: []api.WriteEntry{
			entry("e1", "create", nil),
			entry("e2", "upsert", loose),
			entry("e3", "create", nil),
			entry("e4", "update", nil),
			entry("e5", "upsert", loose),
		},
	}

	results := d.Dispatch(context.Background(), req)

	require.Len(t, results, 5)
	for i, want := range []string{"e1", "e2", "e3", "e4", "e5"} {
		assert.Equal(t, want, results[i].EntryID)
		assert.True(t, results[i].OK)
	}
}

func TestDispatch_GroupsBySameShape(t *testing.T) {
	applier := &recordingApplier{}
	d := New(applier, nil)

	loose := &api.WriteEntryOptions{UpsertMode: api.UpsertLoose}
	strict := &api.WriteEntryOptions{UpsertMode: api.UpsertStrict}
	req := api.WriteRequest{
		Resource: "tasks",
		Entries: []api.WriteEntry{
			entry("e1", "create", nil),
			entry("e2", "create", nil),
			entry("e3", "upsert", loose),
			entry("e4", "upsert", strict),
		},
	}

	d.Dispatch(context.Background(), req)

	require.Len(t, applier.groups, 3)

	sizes := make(map[int]int)
	for _, g := range applier.groups {
		sizes[len(g)]++
	}
	assert.Equal(t, 1, sizes[2], "two creates share a group")
	assert.Equal(t, 2, sizes[1], "loose and strict upserts are separate groups")
}

func TestDispatch_Empty(t *testing.T) {
	d := New(&recordingApplier{}, nil)

	results := d.Dispatch(context.Background(), api.WriteRequest{Resource: "tasks"})

	assert.Empty(t, results)
}

func TestDispatch_CanceledContext(t *testing.T) {
	applier := &recordingApplier{}
	d := New(applier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Dispatch(ctx, api.WriteRequest{
		Resource: "tasks",
		Entries:  []api.WriteEntry{entry("e1", "create", nil)},
	})

	require.Len(t, results, 1)
	require.False(t, results[0].OK)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, api.CodeInternal, results[0].Error.Code)
}
