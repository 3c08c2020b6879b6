// Package data — фасад над write pipeline для CLI и других локальных
// потребителей: CRUD поверх кэша с прозрачным offline-фолбэком.
//
// Онлайн-путь: intent компилируется и коммитится через координатор.
// Сетевая ошибка не теряет запись — операция кладется в offline-очередь,
// оптимистичная дельта остается в кэше до replay.
package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clientapi "github.com/driftsync/driftsync/internal/client/api"
	"github.com/driftsync/driftsync/internal/client/cache"
	"github.com/driftsync/driftsync/internal/client/queue"
	"github.com/driftsync/driftsync/internal/client/write"
	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/version"
	"github.com/driftsync/driftsync/pkg/api"
)

// Service — локальный CRUD поверх кэша, write pipeline и offline-очереди.
type Service struct {
	compiler *write.Compiler
	coord    *write.Coordinator
	cache    *cache.Store
	queue    *queue.Queue
	fetcher  write.Fetcher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	compiler *write.Compiler,
	coord *write.Coordinator,
	cacheStore *cache.Store,
	q *queue.Queue,
	fetcher write.Fetcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		compiler: compiler,
		coord:    coord,
		cache:    cacheStore,
		queue:    q,
		fetcher:  fetcher,
		logger:   logger,
		now:      time.Now,
	}
}

// Add создает запись. При пустом id сервер-стиль uuid синтезируется
// компилятором. Возвращает подтвержденную (или оптимистичную offline) запись.
func (s *Service) Add(ctx context.Context, resource, id string, fields map[string]any) (*models.Record, error) {
	prepared, err := s.compiler.Compile(ctx, resource, models.CreateIntent{ID: id, Value: fields}, write.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile create: %w", err)
	}

	result, err := s.coord.Commit(ctx, resource, []*write.PreparedWrite{prepared})
	if err != nil {
		if clientapi.IsNetwork(err) {
			return s.enqueueCreate(ctx, resource, prepared)
		}
		return nil, err
	}

	item := result.Results[0]
	if !item.OK {
		return nil, item.Err
	}
	return item.Value, nil
}

// Update накладывает fields поверх текущей записи через CAS по версии кэша.
func (s *Service) Update(ctx context.Context, resource, id string, fields map[string]any) (*models.Record, error) {
	intent := models.UpdateIntent{
		ID: id,
		Update: func(rec *models.Record) {
			for k, v := range fields {
				rec.Fields[k] = v
			}
		},
	}

	prepared, err := s.compiler.Compile(ctx, resource, intent, write.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile update: %w", err)
	}

	result, err := s.coord.Commit(ctx, resource, []*write.PreparedWrite{prepared})
	if err != nil {
		if clientapi.IsNetwork(err) {
			return s.enqueuePatch(ctx, resource, id, fields, prepared)
		}
		return nil, err
	}

	item := result.Results[0]
	if !item.OK {
		return nil, item.Err
	}
	return item.Value, nil
}

// Delete удаляет запись. force=false — soft delete (tombstone),
// force=true — окончательное удаление строки на сервере.
func (s *Service) Delete(ctx context.Context, resource, id string, force bool) error {
	prepared, err := s.compiler.Compile(ctx, resource, models.DeleteIntent{ID: id, Force: force}, write.Options{})
	if err != nil {
		return fmt.Errorf("failed to compile delete: %w", err)
	}

	result, err := s.coord.Commit(ctx, resource, []*write.PreparedWrite{prepared})
	if err != nil {
		if clientapi.IsNetwork(err) {
			// Queued delete всегда soft: force требует подтверждения сервера
			return s.enqueueDelete(ctx, resource, id, prepared)
		}
		return err
	}

	if item := result.Results[0]; !item.OK {
		return item.Err
	}
	return nil
}

// Get возвращает запись из кэша; при промахе делает точечный fetch
// и кладет результат в кэш.
func (s *Service) Get(ctx context.Context, resource, id string) (*models.Record, error) {
	if rec, ok := s.cache.Get(resource, id); ok {
		return rec, nil
	}

	if s.fetcher == nil {
		return nil, nil
	}

	rec, err := s.fetcher.FetchRecord(ctx, resource, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}
	if rec == nil || rec.Deleted {
		return nil, nil
	}

	s.cache.Apply([]models.StoreChange{{Resource: resource, ID: id, After: rec}})
	return rec, nil
}

// List возвращает записи ресурса из кэша. Кэш наполняется sync engine'ом,
// поэтому отдельного сетевого пути здесь нет.
func (s *Service) List(resource string) []*models.Record {
	return s.cache.List(resource)
}

// Pending возвращает количество операций, ждущих replay.
func (s *Service) Pending() int {
	return s.queue.Len()
}

func (s *Service) enqueueCreate(ctx context.Context, resource string, prepared *write.PreparedWrite) (*models.Record, error) {
	item := prepared.Entry.Item
	// Координатор откатил оптимистичную дельту вместе с отказом dispatch;
	// для queued-операции она снова становится локальной правдой
	s.cache.Apply(prepared.Optimistic)

	op := api.QueuedOp{
		Kind:           api.QueuedCreate,
		Resource:       resource,
		ID:             item.ID,
		Data:           models.CloneFields(item.Value),
		IdempotencyKey: prepared.Entry.Item.Meta.IdempotencyKey,
		TimestampMs:    s.now().UnixMilli(),
	}
	if err := s.queue.Enqueue(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to enqueue create: %w", err)
	}

	s.logger.Info("create queued for replay", "resource", resource, "id", item.ID)
	rec, _ := s.cache.Get(resource, item.ID)
	return rec, nil
}

func (s *Service) enqueuePatch(ctx context.Context, resource, id string, fields map[string]any, prepared *write.PreparedWrite) (*models.Record, error) {
	s.cache.Apply(prepared.Optimistic)

	patches := make([]api.Patch, 0, len(fields))
	for k, v := range fields {
		patches = append(patches, api.Patch{Op: string(models.PatchReplace), Path: []string{k}, Value: v})
	}

	op := api.QueuedOp{
		Kind:           api.QueuedPatch,
		Resource:       resource,
		ID:             id,
		Patches:        patches,
		BaseVersion:    prepared.Entry.Item.BaseVersion,
		IdempotencyKey: prepared.Entry.Item.Meta.IdempotencyKey,
		TimestampMs:    s.now().UnixMilli(),
	}
	if err := s.queue.Enqueue(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to enqueue patch: %w", err)
	}

	s.logger.Info("patch queued for replay", "resource", resource, "id", id)
	rec, _ := s.cache.Get(resource, id)
	return rec, nil
}

func (s *Service) enqueueDelete(ctx context.Context, resource, id string, prepared *write.PreparedWrite) error {
	s.cache.Apply(prepared.Optimistic)

	op := api.QueuedOp{
		Kind:           api.QueuedDelete,
		Resource:       resource,
		ID:             id,
		BaseVersion:    prepared.Entry.Item.BaseVersion,
		IdempotencyKey: prepared.Entry.Item.Meta.IdempotencyKey,
		TimestampMs:    s.now().UnixMilli(),
	}
	if err := s.queue.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue delete: %w", err)
	}

	s.logger.Info("delete queued for replay", "resource", resource, "id", id)
	return nil
}

// NewID синтезирует идентификатор новой записи для вызывающих,
// которым id нужен заранее.
func NewID() string {
	return version.NewEntityID()
}
