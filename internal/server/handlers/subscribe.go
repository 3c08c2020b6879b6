package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/middleware"
	"github.com/driftsync/driftsync/internal/server/notify"
	"github.com/driftsync/driftsync/pkg/api"
)

const (
	// defaultHeartbeat интервал keep-alive комментариев в SSE-потоке.
	defaultHeartbeat = 25 * time.Second

	// defaultMinNotifyInterval минимальный зазор между notify-событиями
	// одной подписки. Частые записи схлопываются в одно событие.
	defaultMinNotifyInterval = 250 * time.Millisecond

	// defaultMaxHold верхняя граница одного ожидания внутри цикла потока.
	defaultMaxHold = 5 * time.Second

	// defaultRetryMs рекомендация клиенту по интервалу переподключения.
	defaultRetryMs = 3000

	// catchUpLimit сколько записей change log просматривается при
	// открытии подписки с курсором.
	catchUpLimit = 100
)

// ChangeSource отдает хвост change log для catch-up события при
// открытии подписки.
type ChangeSource interface {
	ChangesSince(ctx context.Context, cursor int64, limit int, resources []string) ([]models.Change, int64, error)
}

// SubscribeHandler обрабатывает GET /sync/subscribe-vnext: SSE-поток
// notify-событий с именами затронутых ресурсов. Полезной нагрузки изменения
// не несут: клиент по событию делает pull. Query-параметры: cursor — если
// после него уже были изменения, первое notify-событие уходит сразу;
// resources — поток отдает события только по перечисленным ресурсам.
type SubscribeHandler struct {
	logger            *slog.Logger
	notifier          *notify.Broadcaster
	changes           ChangeSource
	heartbeat         time.Duration
	minNotifyInterval time.Duration
	maxHold           time.Duration
}

// NewSubscribeHandler создает handler SSE-подписки.
func NewSubscribeHandler(logger *slog.Logger, notifier *notify.Broadcaster, changes ChangeSource) *SubscribeHandler {
	return &SubscribeHandler{
		logger:            logger,
		notifier:          notifier,
		changes:           changes,
		heartbeat:         defaultHeartbeat,
		minNotifyInterval: defaultMinNotifyInterval,
		maxHold:           defaultMaxHold,
	}
}

// SetIntervals переопределяет тайминги потока. Используется в тестах.
func (h *SubscribeHandler) SetIntervals(heartbeat, minNotifyInterval, maxHold time.Duration) {
	h.heartbeat = heartbeat
	h.minNotifyInterval = minNotifyInterval
	h.maxHold = maxHold
}

// HandleSubscribe обрабатывает GET /sync/subscribe-vnext.
func (h *SubscribeHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	cursor, err := parseCursorParam(query.Get("cursor"))
	if err != nil {
		sendError(h.logger, w, badRequest("invalid cursor"))
		return
	}
	var filter []string
	if raw := query.Get("resources"); raw != "" {
		filter = strings.Split(raw, ",")
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.ErrorContext(ctx, "response writer does not support streaming")
		sendError(h.logger, w, &api.Error{
			Code:    api.CodeInternal,
			Message: "streaming unsupported",
			Kind:    api.KindInternal,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", defaultRetryMs)
	flusher.Flush()

	sub := h.notifier.Subscribe()
	defer sub.Close()

	h.logger.InfoContext(ctx, "subscription opened",
		slog.String("device_id", middleware.DeviceID(ctx)),
		slog.Int64("cursor", cursor))
	defer h.logger.InfoContext(ctx, "subscription closed",
		slog.String("device_id", middleware.DeviceID(ctx)))

	var lastNotify time.Time

	// Catch-up: пропущенные между pull и подпиской изменения превращаются
	// в немедленное notify-событие
	if missed := h.missedResources(ctx, cursor, filter); len(missed) > 0 {
		if h.emitNotify(ctx, w, flusher, missed) != nil {
			return
		}
		lastNotify = time.Now()
	}

	lastBeat := time.Now()
	for {
		// Ожидание не длиннее остатка heartbeat и не длиннее maxHold
		wait := h.heartbeat - time.Since(lastBeat)
		if wait > h.maxHold {
			wait = h.maxHold
		}
		if wait < 0 {
			wait = 0
		}

		resources, err := sub.Wait(ctx, wait)
		if err != nil {
			// Клиент отключился
			return
		}
		resources = filterResources(resources, filter)

		if len(resources) == 0 {
			// Отфильтрованные события heartbeat не откладывают
			if time.Since(lastBeat) >= h.heartbeat {
				fmt.Fprint(w, ": hb\n\n")
				flusher.Flush()
				lastBeat = time.Now()
			}
			continue
		}

		// Выдерживаем минимальный интервал между событиями; накопившиеся
		// за паузу касания объединяются в одно событие
		if since := time.Since(lastNotify); since < h.minNotifyInterval {
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.minNotifyInterval - since):
			}
			if more, err := sub.Wait(ctx, 0); err == nil {
				resources = mergeResources(resources, filterResources(more, filter))
			}
		}

		if h.emitNotify(ctx, w, flusher, resources) != nil {
			continue
		}
		now := time.Now()
		lastNotify = now
		lastBeat = now
	}
}

func (h *SubscribeHandler) emitNotify(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, resources []string) error {
	payload, err := json.Marshal(api.NotifyEvent{Resources: resources})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode notify event", slog.Any("error", err))
		return err
	}
	fmt.Fprintf(w, "event: notify\ndata: %s\n\n", payload)
	flusher.Flush()
	return nil
}

// missedResources возвращает ресурсы, затронутые в change log после cursor.
func (h *SubscribeHandler) missedResources(ctx context.Context, cursor int64, filter []string) []string {
	if h.changes == nil || cursor <= 0 {
		return nil
	}
	changes, _, err := h.changes.ChangesSince(ctx, cursor, catchUpLimit, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read change log for catch-up", slog.Any("error", err))
		return nil
	}
	seen := make(map[string]struct{}, len(changes))
	resources := make([]string, 0, len(changes))
	for _, c := range changes {
		if _, ok := seen[c.Resource]; ok {
			continue
		}
		seen[c.Resource] = struct{}{}
		resources = append(resources, c.Resource)
	}
	return resources
}

func parseCursorParam(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cursor < 0 {
		return 0, fmt.Errorf("invalid cursor %q", raw)
	}
	return cursor, nil
}

func filterResources(resources, filter []string) []string {
	if len(filter) == 0 || len(resources) == 0 {
		return resources
	}
	allowed := make(map[string]struct{}, len(filter))
	for _, r := range filter {
		allowed[r] = struct{}{}
	}
	kept := resources[:0]
	for _, r := range resources {
		if _, ok := allowed[r]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}

func mergeResources(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, r := range lists {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}
