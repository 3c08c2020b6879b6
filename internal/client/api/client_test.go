package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/pkg/api"
)

func TestClient_DoOps_SendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/ops", r.URL.Path)
		json.NewEncoder(w).Encode(api.OpsResponse{Results: []api.OpResult{{OpID: "op1", OK: true}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.SetToken("token-123")

	resp, err := c.DoOps(context.Background(), api.OpsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Bearer token-123", gotAuth)
}

func TestClient_Write(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.OpsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Ops, 1)
		require.Equal(t, api.OpKindWrite, req.Ops[0].Kind)

		json.NewEncoder(w).Encode(api.OpsResponse{Results: []api.OpResult{{
			OpID: req.Ops[0].OpID,
			OK:   true,
			Write: &api.WriteResponse{
				Status:  api.StatusConfirmed,
				Results: []api.WriteResult{{EntryID: "e1", OK: true, Version: 1}},
			},
		}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Write(context.Background(), api.WriteRequest{
		Resource: "tasks",
		Entries:  []api.WriteEntry{{EntryID: "e1", Action: "create"}},
	})

	require.NoError(t, err)
	assert.Equal(t, api.StatusConfirmed, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].OK)
}

func TestClient_FetchRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.OpsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		q := req.Ops[0].Query

		result := api.OpResult{OpID: req.Ops[0].OpID}
		if q.ID == "exists" {
			result.OK = true
			result.Query = &api.QueryData{Records: []api.Record{{
				ID:      "exists",
				Version: 3,
				Fields:  map[string]any{"title": "hello"},
			}}}
		} else {
			result.Error = &api.Error{Code: api.CodeNotFound, Kind: api.KindNotFound}
		}
		json.NewEncoder(w).Encode(api.OpsResponse{Results: []api.OpResult{result}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	rec, err := c.FetchRecord(context.Background(), "tasks", "exists")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, "hello", rec.Fields["title"])

	// Отсутствующая запись — (nil, nil), не ошибка
	rec, err = c.FetchRecord(context.Background(), "tasks", "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClient_Push(t *testing.T) {
	cursor := int64(5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/push", r.URL.Path)
		json.NewEncoder(w).Encode(api.PushResponse{
			ServerCursor: &cursor,
			Acked:        []api.AckedOp{{IdempotencyKey: "q1", ServerVersion: 1}},
			Rejected:     []api.RejectedOp{},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Push(context.Background(), api.PushRequest{Ops: []api.QueuedOp{{IdempotencyKey: "q1"}}})

	require.NoError(t, err)
	require.Len(t, resp.Acked, 1)
	require.NotNil(t, resp.ServerCursor)
	assert.Equal(t, int64(5), *resp.ServerCursor)
}

func TestClient_NetworkErrorClassification(t *testing.T) {
	// Сервер недоступен
	c := NewClient("http://127.0.0.1:1")

	_, err := c.DoOps(context.Background(), api.OpsRequest{})
	require.Error(t, err)
	assert.True(t, IsNetwork(err), "transport failures are network errors")
}

func TestClient_StatusErrorCarriesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": api.Error{
			Code:    api.CodeUnauthorized,
			Message: "invalid token",
			Kind:    api.KindAuth,
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.DoOps(context.Background(), api.OpsRequest{})

	require.Error(t, err)
	assert.False(t, IsNetwork(err), "server rejections are not network errors")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	require.NotNil(t, statusErr.API)
	assert.Equal(t, api.CodeUnauthorized, statusErr.API.Code)
}

func TestClient_RegisterAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/register":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(api.RegisterDeviceResponse{DeviceID: "d1", Secret: "s1"})
		case "/auth/token":
			json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "jwt", ExpiresIn: 900})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	reg, err := c.RegisterDevice(context.Background(), api.RegisterDeviceRequest{Name: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, "d1", reg.DeviceID)

	tok, err := c.Token(context.Background(), api.TokenRequest{DeviceID: reg.DeviceID, Secret: reg.Secret})
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok.AccessToken)
}

func TestClient_Subscribe_ParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/subscribe-vnext", r.URL.Path)
		require.Equal(t, "7", r.URL.Query().Get("cursor"))
		require.Equal(t, "tasks,notes", r.URL.Query().Get("resources"))
		flusher := w.(http.Flusher)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "retry: 3000\n\n")
		fmt.Fprint(w, ": hb\n\n")
		fmt.Fprint(w, "event: notify\ndata: {\"resources\":[\"tasks\"]}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	var events atomic.Int64
	var gotResources []string

	c := NewClient(srv.URL)
	err := c.Subscribe(context.Background(), 7, []string{"tasks", "notes"}, func(e api.NotifyEvent) {
		events.Add(1)
		gotResources = e.Resources
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), events.Load(), "heartbeats and retry hints are not events")
	assert.Equal(t, []string{"tasks"}, gotResources)
}

func TestClient_Subscribe_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewClient(srv.URL)
	err := c.Subscribe(ctx, 0, nil, func(api.NotifyEvent) {})
	require.ErrorIs(t, err, context.Canceled)
}
