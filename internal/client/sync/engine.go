// Package sync реализует движок синхронизации клиента: replay offline-очереди,
// инкрементальный pull по курсору и подписка на серверные notify-события
// с деградацией до периодического опроса.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftsync/driftsync/internal/client/cache"
	"github.com/driftsync/driftsync/internal/client/queue"
	"github.com/driftsync/driftsync/internal/client/storage"
	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/version"
	"github.com/driftsync/driftsync/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI — операции протокола, нужные движку синхронизации.
type ClientAPI interface {
	// Push отправляет операции offline-очереди.
	Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, error)

	// Pull возвращает изменения change log с указанного курсора.
	Pull(ctx context.Context, cursor int64, limit int, resources []string) (*api.PullData, error)

	// FetchRecords читает авторитетное состояние записей ресурса.
	FetchRecords(ctx context.Context, resource string, ids []string) ([]*models.Record, error)

	// Subscribe держит SSE-соединение до обрыва, вызывая onEvent на каждое
	// notify-событие. cursor и resources уходят в query-параметры подписки:
	// сервер шлет catch-up событие, если после cursor уже были изменения.
	Subscribe(ctx context.Context, cursor int64, resources []string, onEvent func(api.NotifyEvent)) error
}

const (
	// DefaultPollInterval период fallback-опроса, когда подписка не работает.
	DefaultPollInterval = 10 * time.Second

	// DefaultPullLimit размер страницы pull.
	DefaultPullLimit = 500

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Engine связывает очередь, кэш и протокол в один цикл синхронизации.
type Engine struct {
	client       ClientAPI
	cache        *cache.Store
	queue        *queue.Queue
	meta         storage.MetadataStorage
	logger       *slog.Logger
	resources    []string
	pollInterval time.Duration
	pullLimit    int
}

// Options настройки движка.
type Options struct {
	// Resources ограничивает синхронизацию набором ресурсов.
	// Пустой список означает все ресурсы.
	Resources []string

	// PollInterval период fallback-опроса.
	PollInterval time.Duration

	// PullLimit размер страницы pull.
	PullLimit int
}

// New создает движок синхронизации.
func New(client ClientAPI, cacheStore *cache.Store, q *queue.Queue, meta storage.MetadataStorage, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PullLimit <= 0 {
		opts.PullLimit = DefaultPullLimit
	}
	return &Engine{
		client:       client,
		cache:        cacheStore,
		queue:        q,
		meta:         meta,
		logger:       logger,
		resources:    opts.Resources,
		pollInterval: opts.PollInterval,
		pullLimit:    opts.PullLimit,
	}
}

// Replay пушит offline-очередь на сервер. Очередь сохраняется при
// транспортных ошибках и опустошается на acked/rejected операциях.
// Подтвержденные версии применяются к кэшу, серверный курсор продвигает
// сохраненный, если он строго больше.
func (e *Engine) Replay(ctx context.Context) (*queue.ReplayReport, error) {
	if e.queue.Len() == 0 {
		return &queue.ReplayReport{}, nil
	}

	report, err := e.queue.Replay(ctx, e.client, e.pushMeta(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to replay queue: %w", err)
	}

	e.confirmAcked(report.Acked)

	if report.ServerCursor != nil {
		if err := e.advanceCursor(ctx, *report.ServerCursor); err != nil {
			e.logger.Warn("failed to advance cursor after replay", "error", err)
		}
	}

	e.logger.Info("queue replayed",
		"acked", len(report.Acked),
		"rejected", len(report.Rejected),
		"dropped", report.Dropped)
	return report, nil
}

// pushMeta собирает meta push-запроса: device id из сохраненных учетных
// данных и свежий trace id.
func (e *Engine) pushMeta(ctx context.Context) api.Meta {
	meta := api.Meta{
		V:            1,
		TraceID:      version.NewTraceID(),
		ClientTimeMs: time.Now().UnixMilli(),
	}
	if creds, err := e.meta.GetCredentials(ctx); err == nil {
		meta.DeviceID = creds.DeviceID
	}
	return meta
}

// confirmAcked переносит подтвержденные сервером версии в кэш.
// Значение остается оптимистичным, bump'ается только версия.
func (e *Engine) confirmAcked(acked []api.AckedOp) {
	var deltas []models.StoreChange
	for _, a := range acked {
		cached, ok := e.cache.Get(a.Resource, a.ID)
		if !ok || cached.Version >= a.ServerVersion {
			continue
		}
		confirmed := cached.Clone()
		confirmed.Version = a.ServerVersion
		deltas = append(deltas, models.StoreChange{
			Resource: a.Resource,
			ID:       a.ID,
			Before:   cached,
			After:    confirmed,
		})
	}
	if len(deltas) > 0 {
		e.cache.Apply(deltas)
	}
}

// advanceCursor продвигает сохраненный курсор, только если серверное
// значение строго больше: replay не может откатить pull.
func (e *Engine) advanceCursor(ctx context.Context, serverCursor int64) error {
	cursor, err := e.meta.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}
	if serverCursor <= cursor {
		return nil
	}
	if err := e.meta.SaveCursor(ctx, serverCursor); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// PullOnce выполняет один проход pull: читает страницы change log с
// сохраненного курсора до исчерпания и применяет их к кэшу.
func (e *Engine) PullOnce(ctx context.Context) error {
	cursor, err := e.meta.GetCursor(ctx)
	if err != nil {
		e.logger.Warn("failed to load cursor, starting from 0", "error", err)
		cursor = 0
	}

	for {
		page, err := e.client.Pull(ctx, cursor, e.pullLimit, e.resources)
		if err != nil {
			return fmt.Errorf("failed to pull changes: %w", err)
		}

		if len(page.Changes) > 0 {
			if err := e.applyChanges(ctx, page.Changes); err != nil {
				return err
			}
		}

		// Курсор двигается только вперед
		if page.NextCursor > cursor {
			cursor = page.NextCursor
			if err := e.meta.SaveCursor(ctx, cursor); err != nil {
				return fmt.Errorf("failed to save cursor: %w", err)
			}
		}

		if len(page.Changes) < e.pullLimit {
			return nil
		}
	}
}

// applyChanges переносит изменения change log в кэш: по одному финальному
// изменению на запись, устаревшие версии отбрасываются.
func (e *Engine) applyChanges(ctx context.Context, changes []api.Change) error {
	// Несколько изменений одной записи схлопываются в последнее
	final := make(map[string]api.Change, len(changes))
	order := make([]string, 0, len(changes))
	for _, c := range changes {
		key := c.Resource + "\x00" + c.ID
		if _, ok := final[key]; !ok {
			order = append(order, key)
		}
		final[key] = c
	}

	var deltas []models.StoreChange
	fetchIDs := make(map[string][]string)

	for _, key := range order {
		c := final[key]
		cached, _ := e.cache.Get(c.Resource, c.ID)

		// Приемник отбрасывает устаревшие изменения: локальная версия
		// уже не меньше серверной
		if cached != nil && cached.Version >= c.ServerVersion {
			continue
		}

		if c.Kind == string(models.ChangeDelete) {
			deltas = append(deltas, models.StoreChange{
				Resource: c.Resource,
				ID:       c.ID,
				Before:   cached,
			})
			continue
		}
		fetchIDs[c.Resource] = append(fetchIDs[c.Resource], c.ID)
	}

	// Авторитетное состояние затронутых записей забирается одним
	// запросом на ресурс
	for resource, ids := range fetchIDs {
		records, err := e.client.FetchRecords(ctx, resource, ids)
		if err != nil {
			return fmt.Errorf("failed to fetch changed records: %w", err)
		}
		for _, rec := range records {
			cached, _ := e.cache.Get(resource, rec.ID)
			if rec.Deleted {
				deltas = append(deltas, models.StoreChange{
					Resource: resource,
					ID:       rec.ID,
					Before:   cached,
				})
				continue
			}
			deltas = append(deltas, models.StoreChange{
				Resource: resource,
				ID:       rec.ID,
				Before:   cached,
				After:    rec,
			})
		}
	}

	applied := e.cache.Apply(deltas)
	e.logger.Debug("changes applied",
		"pulled", len(changes),
		"applied", len(applied))
	return nil
}

// syncPass — один цикл: replay очереди, затем pull.
func (e *Engine) syncPass(ctx context.Context) {
	if _, err := e.Replay(ctx); err != nil {
		e.logger.Warn("replay failed, queue retained", "error", err)
	}
	if err := e.PullOnce(ctx); err != nil {
		e.logger.Warn("pull failed", "error", err)
	}
}

// Run запускает цикл синхронизации: начальный replay и pull, затем
// подписка на notify-события с fallback-опросом. Блокируется до отмены
// контекста.
func (e *Engine) Run(ctx context.Context) error {
	e.syncPass(ctx)

	events := make(chan api.NotifyEvent, 1)
	go e.subscribeLoop(ctx, events)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-events:
			e.syncPass(ctx)
		case <-ticker.C:
			e.syncPass(ctx)
		}
	}
}

// subscribeLoop держит SSE-подписку, переподключаясь с экспоненциальным
// backoff. События доставляются в канал без блокировки: pull и так
// забирает все накопившиеся изменения.
func (e *Engine) subscribeLoop(ctx context.Context, events chan<- api.NotifyEvent) {
	backoff := reconnectMin

	for {
		cursor, err := e.meta.GetCursor(ctx)
		if err != nil {
			cursor = 0
		}

		err = e.client.Subscribe(ctx, cursor, e.resources, func(event api.NotifyEvent) {
			backoff = reconnectMin
			select {
			case events <- event:
			default:
			}
		})
		if ctx.Err() != nil {
			return
		}

		e.logger.Warn("subscription lost, reconnecting",
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}
