package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/server/dispatch"
	"github.com/driftsync/driftsync/internal/server/notify"
	"github.com/driftsync/driftsync/internal/server/resolver"
	"github.com/driftsync/driftsync/internal/server/storage/sqlite"
	"github.com/driftsync/driftsync/pkg/api"
)

type opsFixture struct {
	handler  *OpsHandler
	notifier *notify.Broadcaster
}

func setupOps(t *testing.T) *opsFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	notifier := notify.NewBroadcaster()
	res := resolver.New(store, logger)
	disp := dispatch.New(res, logger)

	return &opsFixture{
		handler:  NewOpsHandler(logger, store, disp, notifier),
		notifier: notifier,
	}
}

func (f *opsFixture) do(t *testing.T, req api.OpsRequest) api.OpsResponse {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/ops", bytes.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.HandleOps(w, r)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var resp api.OpsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func writeOp(opID, resource string, entries ...api.WriteEntry) api.Op {
	return api.Op{
		OpID: opID,
		Kind: api.OpKindWrite,
		Write: &api.WriteRequest{
			Resource: resource,
			Entries:  entries,
		},
	}
}

func createEntry(entryID, id, key string, value map[string]any) api.WriteEntry {
	return api.WriteEntry{
		EntryID: entryID,
		Action:  "create",
		Item: api.WriteItem{
			ID:    id,
			Value: value,
			Meta:  api.WriteMeta{IdempotencyKey: key},
		},
	}
}

func TestOpsHandler_WriteAndQuery(t *testing.T) {
	f := setupOps(t)

	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("op1", "tasks", createEntry("e1", "t1", "k1", map[string]any{"title": "hello"})),
	}})

	require.Len(t, resp.Results, 1)
	require.True(t, resp.Results[0].OK)
	require.NotNil(t, resp.Results[0].Write)
	assert.Equal(t, api.StatusConfirmed, resp.Results[0].Write.Status)
	assert.Equal(t, int64(1), resp.Results[0].Write.ServerCursor)

	resp = f.do(t, api.OpsRequest{Ops: []api.Op{
		{OpID: "op2", Kind: api.OpKindQuery, Query: &api.QueryOp{Resource: "tasks", ID: "t1"}},
	}})

	require.True(t, resp.Results[0].OK)
	require.NotNil(t, resp.Results[0].Query)
	require.Len(t, resp.Results[0].Query.Records, 1)
	assert.Equal(t, "hello", resp.Results[0].Query.Records[0].Fields["title"])
	assert.Equal(t, int64(1), resp.Results[0].Query.Records[0].Version)
}

func TestOpsHandler_PartialWrite(t *testing.T) {
	f := setupOps(t)

	// Второй entry дублирует id первого и отклоняется, остальные проходят
	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("op1", "tasks",
			createEntry("e1", "t1", "k1", map[string]any{"n": 1}),
			createEntry("e2", "t1", "k2", map[string]any{"n": 2}),
			createEntry("e3", "t2", "k3", map[string]any{"n": 3}),
		),
	}})

	write := resp.Results[0].Write
	require.NotNil(t, write)
	assert.Equal(t, api.StatusPartial, write.Status)
	require.Len(t, write.Results, 3)
	assert.True(t, write.Results[0].OK)
	assert.False(t, write.Results[1].OK)
	assert.Equal(t, api.CodeConflict, write.Results[1].Error.Code)
	assert.True(t, write.Results[2].OK)
}

func TestOpsHandler_Pull(t *testing.T) {
	f := setupOps(t)

	f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("op1", "tasks", createEntry("e1", "t1", "k1", map[string]any{"n": 1})),
		writeOp("op2", "notes", createEntry("e1", "n1", "k2", map[string]any{"n": 2})),
	}})

	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		{OpID: "op3", Kind: api.OpKindPull, Pull: &api.PullOp{Cursor: 0}},
	}})

	pull := resp.Results[0].Pull
	require.NotNil(t, pull)
	require.Len(t, pull.Changes, 2)
	assert.Equal(t, "tasks", pull.Changes[0].Resource)
	assert.Equal(t, "notes", pull.Changes[1].Resource)
	assert.Less(t, pull.Changes[0].Cursor, pull.Changes[1].Cursor)
	assert.Equal(t, pull.Changes[1].Cursor, pull.NextCursor)

	// Повторный pull с next cursor пуст, но курсор не откатывается
	resp = f.do(t, api.OpsRequest{Ops: []api.Op{
		{OpID: "op4", Kind: api.OpKindPull, Pull: &api.PullOp{Cursor: pull.NextCursor}},
	}})
	require.NotNil(t, resp.Results[0].Pull)
	assert.Empty(t, resp.Results[0].Pull.Changes)
	assert.GreaterOrEqual(t, resp.Results[0].Pull.NextCursor, pull.NextCursor)
}

func TestOpsHandler_PullFilteredByResource(t *testing.T) {
	f := setupOps(t)

	f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("op1", "tasks", createEntry("e1", "t1", "k1", map[string]any{"n": 1})),
		writeOp("op2", "notes", createEntry("e1", "n1", "k2", map[string]any{"n": 2})),
	}})

	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		{OpID: "op3", Kind: api.OpKindPull, Pull: &api.PullOp{Cursor: 0, Resources: []string{"notes"}}},
	}})

	pull := resp.Results[0].Pull
	require.Len(t, pull.Changes, 1)
	assert.Equal(t, "notes", pull.Changes[0].Resource)
}

func TestOpsHandler_QueryByIDs(t *testing.T) {
	f := setupOps(t)

	f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("op1", "tasks",
			createEntry("e1", "t1", "k1", map[string]any{"n": 1}),
			createEntry("e2", "t2", "k2", map[string]any{"n": 2}),
		),
	}})

	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		{OpID: "op2", Kind: api.OpKindQuery, Query: &api.QueryOp{
			Resource: "tasks",
			IDs:      []string{"t1", "t2", "missing"},
		}},
	}})

	require.True(t, resp.Results[0].OK)
	// Отсутствующие id молча пропускаются
	assert.Len(t, resp.Results[0].Query.Records, 2)
}

func TestOpsHandler_QueryNotFound(t *testing.T) {
	f := setupOps(t)

	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		{OpID: "op1", Kind: api.OpKindQuery, Query: &api.QueryOp{Resource: "tasks", ID: "missing"}},
	}})

	require.False(t, resp.Results[0].OK)
	require.NotNil(t, resp.Results[0].Error)
	assert.Equal(t, api.CodeNotFound, resp.Results[0].Error.Code)
}

func TestOpsHandler_MixedOpsKeepOrder(t *testing.T) {
	f := setupOps(t)

	resp := f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("w", "tasks", createEntry("e1", "t1", "k1", map[string]any{"n": 1})),
		{OpID: "q", Kind: api.OpKindQuery, Query: &api.QueryOp{Resource: "tasks", ID: "t1"}},
		{OpID: "p", Kind: api.OpKindPull, Pull: &api.PullOp{Cursor: 0}},
		{OpID: "bad", Kind: "unknown"},
	}})

	require.Len(t, resp.Results, 4)
	assert.Equal(t, "w", resp.Results[0].OpID)
	assert.Equal(t, "q", resp.Results[1].OpID)
	assert.Equal(t, "p", resp.Results[2].OpID)
	assert.Equal(t, "bad", resp.Results[3].OpID)

	// Ops выполняются по порядку: query видит результат write
	assert.True(t, resp.Results[1].OK)
	assert.False(t, resp.Results[3].OK)
	assert.Equal(t, api.CodeValidation, resp.Results[3].Error.Code)
}

func TestOpsHandler_WritePublishesNotify(t *testing.T) {
	f := setupOps(t)

	sub := f.notifier.Subscribe()
	defer sub.Close()

	f.do(t, api.OpsRequest{Ops: []api.Op{
		writeOp("op1", "tasks", createEntry("e1", "t1", "k1", map[string]any{"n": 1})),
	}})

	resources, err := sub.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks"}, resources)
}

func TestOpsHandler_InvalidBody(t *testing.T) {
	f := setupOps(t)

	r := httptest.NewRequest(http.MethodPost, "/ops", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	f.handler.HandleOps(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION")
}
