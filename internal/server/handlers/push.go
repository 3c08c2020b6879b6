package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/driftsync/driftsync/internal/server/middleware"
	"github.com/driftsync/driftsync/internal/server/notify"
	"github.com/driftsync/driftsync/internal/server/resolver"
	"github.com/driftsync/driftsync/internal/server/storage"
	"github.com/driftsync/driftsync/pkg/api"
)

// PushHandler обрабатывает POST /sync/push: replay offline-очереди клиента.
type PushHandler struct {
	logger   *slog.Logger
	store    storage.Store
	resolver *resolver.Resolver
	notifier *notify.Broadcaster
}

// NewPushHandler создает handler push-протокола.
func NewPushHandler(logger *slog.Logger, store storage.Store, res *resolver.Resolver, notifier *notify.Broadcaster) *PushHandler {
	return &PushHandler{
		logger:   logger,
		store:    store,
		resolver: res,
		notifier: notifier,
	}
}

// HandlePush обрабатывает POST /sync/push.
// Операции применяются по порядку; отклоненная операция не блокирует
// следующие. Ответ всегда несет полный разбор acked/rejected.
func (h *PushHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode push request", slog.Any("error", err))
		sendError(h.logger, w, badRequest("invalid request body"))
		return
	}

	if len(req.Ops) == 0 {
		sendError(h.logger, w, badRequest("push requires at least one op"))
		return
	}

	acked, rejected, err := h.resolver.ApplyQueued(ctx, req.Ops)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply queued ops", slog.Any("error", err))
		sendError(h.logger, w, &api.Error{
			Code:    api.CodeInternal,
			Message: "failed to apply queued ops",
			Kind:    api.KindAdapter,
		})
		return
	}

	h.logger.InfoContext(ctx, "push applied",
		slog.String("device_id", middleware.DeviceID(ctx)),
		slog.Int("acked", len(acked)),
		slog.Int("rejected", len(rejected)))

	resp := api.PushResponse{
		Acked:    acked,
		Rejected: rejected,
	}
	if resp.Acked == nil {
		resp.Acked = []api.AckedOp{}
	}
	if resp.Rejected == nil {
		resp.Rejected = []api.RejectedOp{}
	}

	if cursor, err := h.store.CurrentCursor(ctx); err == nil {
		resp.ServerCursor = &cursor
	} else {
		h.logger.ErrorContext(ctx, "failed to read current cursor", slog.Any("error", err))
	}

	if len(acked) > 0 {
		touched := make(map[string]struct{})
		for _, op := range acked {
			touched[op.Resource] = struct{}{}
		}
		resources := make([]string, 0, len(touched))
		for resource := range touched {
			resources = append(resources, resource)
		}
		h.notifier.Publish(resources...)
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
