package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/dispatch"
	"github.com/driftsync/driftsync/internal/server/middleware"
	"github.com/driftsync/driftsync/internal/server/notify"
	"github.com/driftsync/driftsync/internal/server/storage"
	"github.com/driftsync/driftsync/internal/trace"
	"github.com/driftsync/driftsync/internal/validation"
	"github.com/driftsync/driftsync/pkg/api"
)

const (
	defaultQueryLimit = 100
	defaultPullLimit  = 500
	maxPullLimit      = 1000
)

// OpsHandler обрабатывает конверт POST /ops: query, write и changes.pull
// выполняются по порядку внутри одного запроса.
type OpsHandler struct {
	logger     *slog.Logger
	store      storage.Store
	dispatcher *dispatch.Dispatcher
	notifier   *notify.Broadcaster
	traces     *trace.Registry
}

// NewOpsHandler создает handler ops-конверта.
func NewOpsHandler(logger *slog.Logger, store storage.Store, dispatcher *dispatch.Dispatcher, notifier *notify.Broadcaster) *OpsHandler {
	return &OpsHandler{
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		traces:     trace.NewRegistry(trace.DefaultCapacity),
	}
}

// HandleOps обрабатывает POST /ops.
func (h *OpsHandler) HandleOps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.OpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode ops request", slog.Any("error", err))
		sendError(h.logger, w, badRequest("invalid request body"))
		return
	}

	traceID := req.Meta.TraceID
	if traceID == "" {
		traceID = "anon"
	}
	requestID := h.traces.Next(traceID)
	h.logger.DebugContext(ctx, "ops request",
		slog.String("request_id", requestID),
		slog.String("device_id", middleware.DeviceID(ctx)),
		slog.Int("ops", len(req.Ops)))

	results := make([]api.OpResult, len(req.Ops))
	for i, op := range req.Ops {
		results[i] = h.handleOp(ctx, op)
	}

	sendJSON(h.logger, w, api.OpsResponse{Results: results}, http.StatusOK)
}

func (h *OpsHandler) handleOp(ctx context.Context, op api.Op) api.OpResult {
	result := api.OpResult{OpID: op.OpID}

	switch op.Kind {
	case api.OpKindQuery:
		if op.Query == nil {
			result.Error = badRequest("query op requires a query payload")
			return result
		}
		data, apiErr := h.query(ctx, op.Query)
		if apiErr != nil {
			result.Error = apiErr
			return result
		}
		result.OK = true
		result.Query = data

	case api.OpKindWrite:
		if op.Write == nil {
			result.Error = badRequest("write op requires a write payload")
			return result
		}
		resp, apiErr := h.write(ctx, op.Write)
		if apiErr != nil {
			result.Error = apiErr
			return result
		}
		result.OK = true
		result.Write = resp

	case api.OpKindPull:
		if op.Pull == nil {
			result.Error = badRequest("pull op requires a pull payload")
			return result
		}
		data, apiErr := h.pull(ctx, op.Pull)
		if apiErr != nil {
			result.Error = apiErr
			return result
		}
		result.OK = true
		result.Pull = data

	default:
		result.Error = badRequest("unknown op kind " + op.Kind)
	}
	return result
}

func (h *OpsHandler) query(ctx context.Context, q *api.QueryOp) (*api.QueryData, *api.Error) {
	if err := validation.ValidateResource(q.Resource); err != nil {
		return nil, badRequest(err.Error())
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	switch {
	case q.ID != "":
		rec, err := h.store.GetRecord(ctx, q.Resource, q.ID)
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, &api.Error{
				Code:    api.CodeNotFound,
				Message: "record not found",
				Kind:    api.KindNotFound,
			}
		}
		if err != nil {
			return nil, h.adapterError(ctx, err)
		}
		return &api.QueryData{Records: []api.Record{*models.RecordToAPI(rec)}}, nil

	case len(q.IDs) > 0:
		records, err := h.store.ListRecords(ctx, q.Resource, q.IDs)
		if err != nil {
			return nil, h.adapterError(ctx, err)
		}
		return &api.QueryData{Records: toWireRecords(records)}, nil

	default:
		records, err := h.store.QueryRecords(ctx, q.Resource, limit)
		if err != nil {
			return nil, h.adapterError(ctx, err)
		}
		if len(q.Filter) > 0 {
			records = filterRecords(records, q.Filter)
		}
		return &api.QueryData{Records: toWireRecords(records)}, nil
	}
}

func (h *OpsHandler) write(ctx context.Context, req *api.WriteRequest) (*api.WriteResponse, *api.Error) {
	if err := validation.ValidateResource(req.Resource); err != nil {
		return nil, badRequest(err.Error())
	}
	if len(req.Entries) == 0 {
		return nil, badRequest("write requires at least one entry")
	}

	results := h.dispatcher.Dispatch(ctx, *req)

	confirmed := 0
	for _, res := range results {
		if res.OK {
			confirmed++
		}
	}

	status := api.StatusPartial
	switch confirmed {
	case len(results):
		status = api.StatusConfirmed
	case 0:
		status = api.StatusRejected
	}

	cursor, err := h.store.CurrentCursor(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read current cursor", slog.Any("error", err))
		cursor = 0
	}

	if confirmed > 0 {
		h.notifier.Publish(req.Resource)
	}

	return &api.WriteResponse{
		Status:       status,
		Results:      results,
		ServerCursor: cursor,
	}, nil
}

func (h *OpsHandler) pull(ctx context.Context, p *api.PullOp) (*api.PullData, *api.Error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPullLimit
	}
	if limit > maxPullLimit {
		limit = maxPullLimit
	}

	for _, resource := range p.Resources {
		if err := validation.ValidateResource(resource); err != nil {
			return nil, badRequest(err.Error())
		}
	}

	changes, nextCursor, err := h.store.ChangesSince(ctx, p.Cursor, limit, p.Resources)
	if err != nil {
		return nil, h.adapterError(ctx, err)
	}

	wire := make([]api.Change, len(changes))
	for i, c := range changes {
		wire[i] = models.ChangeToAPI(c)
	}

	return &api.PullData{Changes: wire, NextCursor: nextCursor}, nil
}

func (h *OpsHandler) adapterError(ctx context.Context, err error) *api.Error {
	h.logger.ErrorContext(ctx, "storage operation failed", slog.Any("error", err))
	return &api.Error{
		Code:    api.CodeInternal,
		Message: "storage operation failed",
		Kind:    api.KindAdapter,
	}
}

func toWireRecords(records []*models.Record) []api.Record {
	wire := make([]api.Record, len(records))
	for i, rec := range records {
		wire[i] = *models.RecordToAPI(rec)
	}
	return wire
}

// filterRecords оставляет записи, каждое поле фильтра которых совпадает
// по равенству.
func filterRecords(records []*models.Record, filter map[string]any) []*models.Record {
	matched := records[:0]
	for _, rec := range records {
		ok := true
		for key, want := range filter {
			if !reflect.DeepEqual(rec.Fields[key], want) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	return matched
}
