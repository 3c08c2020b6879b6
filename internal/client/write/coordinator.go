package write

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftsync/driftsync/internal/client/cache"
	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/pkg/api"
)

//go:generate moq -out executor_mock.go . Executor

// Executor отправляет скомпилированный батч удаленному исполнителю записей.
// Все entries батча уходят одним сетевым вызовом; порядок results
// коррелируется по entry id.
type Executor interface {
	Write(ctx context.Context, req api.WriteRequest) (*api.WriteResponse, error)
}

// ItemResult итог одного entry после reconcile.
type ItemResult struct {
	Value   *models.Record
	Err     error
	Current *api.CurrentState
	OK      bool
}

// CommitResult итог коммита батча.
type CommitResult struct {
	Status  string
	Changes []models.StoreChange
	Results []ItemResult
}

// Coordinator проводит батч PreparedWrite через state machine:
// Start -> (LocalCommit | RemoteDispatch -> Reconcile -> Commit).
//
// Частичные сбои не откатывают весь батч: дельты отклоненных entries
// инвертируются точечно, остальные остаются.
type Coordinator struct {
	cache  *cache.Store
	exec   Executor
	obs    Observer
	logger *slog.Logger
	policy Policy
	now    func() time.Time
}

// NewCoordinator создает координатор.
// exec == nil включает local-only fallback: дельты применяются напрямую,
// bump версий синтезируется из baseVersion.
func NewCoordinator(store *cache.Store, exec Executor, obs Observer, policy Policy, logger *slog.Logger) *Coordinator {
	if obs == nil {
		obs = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cache:  store,
		exec:   exec,
		obs:    obs,
		logger: logger,
		policy: policy,
		now:    time.Now,
	}
}

// Commit выполняет один коммит батча. Все writes должны принадлежать
// одному ресурсу (handle удаленного исполнителя).
func (co *Coordinator) Commit(ctx context.Context, resource string, writes []*PreparedWrite) (*CommitResult, error) {
	if len(writes) == 0 {
		return &CommitResult{Status: api.StatusConfirmed}, nil
	}

	entries := make([]api.WriteEntry, len(writes))
	for i, w := range writes {
		if w.Resource != resource {
			return nil, fmt.Errorf("entry %s targets resource %q, batch is %q: %w",
				w.Entry.EntryID, w.Resource, resource, ErrProtocolViolation)
		}
		entries[i] = w.Entry
	}

	co.obs.OnWriteStart(resource, entries)

	// Оптимистичное применение только под optimistic-политикой;
	// applied хранит ровно те дельты, которые реально легли в кэш
	applied := make([][]models.StoreChange, len(writes))
	if co.policy.Consistency == ConsistencyOptimistic {
		for i, w := range writes {
			applied[i] = co.cache.Apply(w.Optimistic)
		}
	}

	if co.exec == nil {
		result := co.localCommit(writes, applied)
		co.obs.OnWriteCommitted(resource, result)
		return result, nil
	}

	resp, err := co.exec.Write(ctx, api.WriteRequest{Resource: resource, Entries: entries})
	if err != nil {
		// Отказ самого dispatch откатывает весь батч
		co.rollbackAll(applied)
		err = fmt.Errorf("remote dispatch failed: %w", err)
		co.obs.OnWriteFailed(resource, err)
		return nil, err
	}

	if resp.Status == api.StatusEnqueued {
		if len(writes) != 1 {
			co.rollbackAll(applied)
			co.obs.OnWriteFailed(resource, ErrEnqueuedBatch)
			return nil, ErrEnqueuedBatch
		}
		result := &CommitResult{
			Status:  api.StatusEnqueued,
			Changes: applied[0],
			Results: []ItemResult{{OK: true}},
		}
		co.obs.OnWriteCommitted(resource, result)
		return result, nil
	}

	result, err := co.reconcile(resource, writes, applied, resp)
	if err != nil {
		co.rollbackAll(applied)
		co.obs.OnWriteFailed(resource, err)
		return nil, err
	}

	co.obs.OnWriteCommitted(resource, result)
	return result, nil
}

// localCommit применяет записи без удаленного исполнителя, синтезируя
// подтвержденные версии из baseVersion/снимка кэша.
func (co *Coordinator) localCommit(writes []*PreparedWrite, applied [][]models.StoreChange) *CommitResult {
	writeback := make([]models.StoreChange, 0, len(writes))
	results := make([]ItemResult, len(writes))

	for i, w := range writes {
		confirmed := co.confirmLocally(w)
		current, _ := co.cache.Get(w.Resource, w.Entry.Item.ID)

		if confirmed == nil {
			// Hard delete: запись уже убрана оптимистично
			if current != nil {
				writeback = append(writeback, models.StoreChange{
					Resource: w.Resource, ID: w.Entry.Item.ID, Before: current, After: nil,
				})
			}
			results[i] = ItemResult{OK: true}
			continue
		}

		writeback = append(writeback, models.StoreChange{
			Resource: w.Resource, ID: w.Entry.Item.ID, Before: current, After: confirmed,
		})
		results[i] = ItemResult{OK: true, Value: confirmed}
	}

	changes := co.cache.Apply(writeback)
	for i := range applied {
		changes = append(changes, applied[i]...)
	}

	return &CommitResult{
		Status:  api.StatusConfirmed,
		Changes: changes,
		Results: results,
	}
}

// confirmLocally синтезирует подтвержденное состояние entry без сервера.
func (co *Coordinator) confirmLocally(w *PreparedWrite) *models.Record {
	item := w.Entry.Item
	if w.Entry.Action == string(models.ActionDelete) {
		return nil
	}

	var base int64
	switch {
	case item.BaseVersion != nil:
		base = *item.BaseVersion
	case item.ExpectedVersion != nil:
		base = *item.ExpectedVersion
	default:
		if cached, ok := co.cache.Get(w.Resource, item.ID); ok && cached.Version > 0 {
			// create/loose upsert поверх существующей записи
			base = cached.Version
		}
	}

	rec := &models.Record{
		ID:        item.ID,
		Version:   base + 1,
		Fields:    models.CloneFields(item.Value),
		UpdatedAt: co.now(),
	}
	if item.Deleted != nil && *item.Deleted {
		rec.Deleted = true
		rec.DeletedAt = co.now()
	}
	return rec
}

// reconcile сопоставляет server results с entries и собирает итоговую
// транзакцию writeback + точечные rollbacks.
func (co *Coordinator) reconcile(resource string, writes []*PreparedWrite, applied [][]models.StoreChange, resp *api.WriteResponse) (*CommitResult, error) {
	byEntry := make(map[string]*api.WriteResult, len(resp.Results))
	for i := range resp.Results {
		res := &resp.Results[i]
		if _, dup := byEntry[res.EntryID]; dup {
			return nil, fmt.Errorf("duplicate result for entry %s: %w", res.EntryID, ErrProtocolViolation)
		}
		byEntry[res.EntryID] = res
	}

	writeback := make([]models.StoreChange, 0, len(writes))
	rollback := make([]models.StoreChange, 0)
	results := make([]ItemResult, len(writes))
	okCount := 0

	for i, w := range writes {
		res, ok := byEntry[w.Entry.EntryID]
		if !ok {
			return nil, fmt.Errorf("missing result for entry %s: %w", w.Entry.EntryID, ErrProtocolViolation)
		}

		if !res.OK {
			// Точечный rollback только отклоненного entry
			rollback = append(rollback, models.InvertChanges(applied[i])...)
			results[i] = ItemResult{Err: co.classifyFailure(res), Current: res.Current}
			continue
		}

		okCount++
		confirmed := co.confirmedRecord(w, res)
		if confirmed == nil {
			results[i] = ItemResult{OK: true}
			continue
		}

		current, _ := co.cache.Get(resource, w.Entry.Item.ID)
		writeback = append(writeback, models.StoreChange{
			Resource: resource, ID: w.Entry.Item.ID, Before: current, After: confirmed,
		})
		results[i] = ItemResult{OK: true, Value: confirmed}
	}

	// Удержанные оптимистичные дельты сливаются с writeback-транзакцией;
	// rollback применяется тем же батчем
	changes := co.cache.Apply(append(writeback, rollback...))

	status := api.StatusConfirmed
	switch {
	case okCount == 0:
		status = api.StatusRejected
	case okCount < len(writes):
		status = api.StatusPartial
	}

	co.logger.Debug("write batch reconciled",
		"resource", resource,
		"status", status,
		"ok", okCount,
		"failed", len(writes)-okCount)

	return &CommitResult{Status: status, Changes: changes, Results: results}, nil
}

// confirmedRecord строит writeback-запись для ok-результата.
// Возвращает nil, если writeback не нужен (hard delete, returning=false
// или сужение полей).
func (co *Coordinator) confirmedRecord(w *PreparedWrite, res *api.WriteResult) *models.Record {
	if w.Entry.Action == string(models.ActionDelete) {
		return nil
	}

	opts := w.Entry.Options
	returning := opts == nil || opts.Returning == nil || *opts.Returning
	narrowed := opts != nil && len(opts.Fields) > 0

	if returning && !narrowed && res.Data != nil {
		return models.RecordFromAPI(res.Data)
	}

	// Без server data подтверждаем только bump версии поверх
	// оптимистичного значения
	if res.Version <= 0 {
		return nil
	}
	current, ok := co.cache.Get(w.Resource, w.Entry.Item.ID)
	if !ok {
		return nil
	}
	confirmed := current.Clone()
	confirmed.Version = res.Version
	return confirmed
}

// classifyFailure переводит wire-ошибку результата в типизированную.
func (co *Coordinator) classifyFailure(res *api.WriteResult) error {
	if res.Error == nil {
		return &RemoteError{Code: api.CodeInternal, Message: "rejected without error detail", Kind: string(api.KindInternal)}
	}
	if res.Error.Kind == api.KindConflict {
		conflict := &ConflictError{Message: res.Error.Message}
		if res.Current != nil {
			conflict.CurrentValue = res.Current.Value
			conflict.CurrentVersion = res.Current.Version
		}
		return conflict
	}
	return &RemoteError{
		Code:    res.Error.Code,
		Message: res.Error.Message,
		Kind:    string(res.Error.Kind),
	}
}

func (co *Coordinator) rollbackAll(applied [][]models.StoreChange) {
	for i := len(applied) - 1; i >= 0; i-- {
		if len(applied[i]) == 0 {
			continue
		}
		co.cache.Rollback(applied[i])
	}
}
