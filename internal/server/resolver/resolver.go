// Package resolver реализует серверное разрешение конфликтов записи:
// строгий CAS по версии для create/update/delete, строгий и loose upsert,
// идемпотентный replay по ключу.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/storage"
	"github.com/driftsync/driftsync/internal/validation"
	"github.com/driftsync/driftsync/pkg/api"
)

const (
	// DefaultLooseRetries предел попыток loose upsert при гонках вставки.
	// После исчерпания выполняется безусловная запись (last-write-wins).
	DefaultLooseRetries = 3
)

// Resolver применяет write items к backing store.
type Resolver struct {
	store          storage.Store
	logger         *slog.Logger
	now            func() time.Time
	idempotencyTTL time.Duration
	looseRetries   int
}

// New создает resolver поверх стораджа.
func New(store storage.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:          store,
		logger:         logger,
		now:            time.Now,
		idempotencyTTL: 24 * time.Hour,
		looseRetries:   DefaultLooseRetries,
	}
}

// SetNow переопределяет источник времени. Используется в тестах.
func (r *Resolver) SetNow(now func() time.Time) {
	r.now = now
}

// ApplyGroup применяет группу entries в одной транзакции.
// Если групповая транзакция падает на уровне адаптера, группа деградирует
// до по-элементных транзакций (каждый item остается атомарным).
// Порядок results соответствует порядку entries.
func (r *Resolver) ApplyGroup(ctx context.Context, resource string, entries []api.WriteEntry) []api.WriteResult {
	results := make([]api.WriteResult, len(entries))

	err := r.store.WithTx(ctx, func(tx storage.Tx) error {
		for i, entry := range entries {
			results[i] = r.applyInTx(tx, resource, entry)
		}
		return nil
	})
	if err == nil {
		return results
	}

	r.logger.Warn("grouped transaction failed, degrading to per-item transactions",
		"resource", resource,
		"entries", len(entries),
		"error", err)

	for i, entry := range entries {
		results[i] = r.Apply(ctx, resource, entry)
	}
	return results
}

// Apply применяет один entry в собственной транзакции.
func (r *Resolver) Apply(ctx context.Context, resource string, entry api.WriteEntry) api.WriteResult {
	var result api.WriteResult
	err := r.store.WithTx(ctx, func(tx storage.Tx) error {
		result = r.applyInTx(tx, resource, entry)
		return nil
	})
	if err != nil {
		return api.WriteResult{
			EntryID: entry.EntryID,
			Error:   toWireError(err),
		}
	}
	return result
}

// applyInTx применяет entry внутри транзакции, включая проверку и запись
// idempotency-результата. Поэлементные отказы выражаются в WriteResult
// и не прерывают транзакцию группы.
func (r *Resolver) applyInTx(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	key := entry.Item.Meta.IdempotencyKey
	if key == "" {
		return api.WriteResult{
			EntryID: entry.EntryID,
			Error: &api.Error{
				Code:    api.CodeValidation,
				Message: "write item requires an idempotency key",
				Kind:    api.KindValidation,
			},
		}
	}

	if recorded, err := tx.GetIdempotency(key); err == nil {
		// Повтор ключа: возвращаем записанный результат дословно,
		// не трогая backing store
		return r.replayRecorded(entry.EntryID, recorded)
	} else if !errors.Is(err, storage.ErrIdempotencyMiss) {
		return api.WriteResult{EntryID: entry.EntryID, Error: toWireError(err)}
	}

	result := r.execute(tx, resource, entry)
	result.EntryID = entry.EntryID

	if err := r.record(tx, key, result); err != nil {
		return api.WriteResult{EntryID: entry.EntryID, Error: toWireError(err)}
	}
	return result
}

func (r *Resolver) execute(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	if err := validation.ValidateResource(resource); err != nil {
		return validationFailure(err)
	}
	if err := validation.ValidateEntityID(entry.Item.ID); err != nil {
		return validationFailure(err)
	}

	switch models.Action(entry.Action) {
	case models.ActionCreate:
		return r.applyCreate(tx, resource, entry)
	case models.ActionUpdate:
		return r.applyUpdate(tx, resource, entry)
	case models.ActionUpsert:
		return r.applyUpsert(tx, resource, entry)
	case models.ActionDelete:
		return r.applyDelete(tx, resource, entry)
	default:
		return validationFailure(fmt.Errorf("unknown action %q", entry.Action))
	}
}

func (r *Resolver) applyCreate(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	rec := &models.Record{
		ID:        entry.Item.ID,
		Version:   1,
		Fields:    models.CloneFields(entry.Item.Value),
		UpdatedAt: r.now(),
	}

	if existing, err := tx.GetRecord(resource, entry.Item.ID); err == nil {
		return conflictFailure("record already exists", existing)
	} else if !errors.Is(err, storage.ErrRecordNotFound) {
		return api.WriteResult{Error: toWireError(err)}
	}

	if err := tx.InsertRecord(resource, rec); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	if err := r.logChange(tx, resource, rec.ID, models.ChangeUpsert, rec.Version); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	return okResult(rec)
}

func (r *Resolver) applyUpdate(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	current, err := tx.GetRecord(resource, entry.Item.ID)
	if err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	if entry.Item.BaseVersion != nil && *entry.Item.BaseVersion != current.Version {
		return conflictFailure(
			fmt.Sprintf("base version %d does not match current %d", *entry.Item.BaseVersion, current.Version),
			current,
		)
	}

	next := &models.Record{
		ID:        current.ID,
		Version:   current.Version + 1,
		Fields:    models.CloneFields(entry.Item.Value),
		UpdatedAt: r.now(),
	}
	if entry.Item.Deleted != nil && *entry.Item.Deleted {
		// Soft delete: строка сохраняется для аудита
		next.Deleted = true
		next.DeletedAt = r.now()
	}

	if err := tx.UpdateRecord(resource, next); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	if err := r.logChange(tx, resource, next.ID, models.ChangeUpsert, next.Version); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	return okResult(next)
}

func (r *Resolver) applyDelete(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	current, err := tx.GetRecord(resource, entry.Item.ID)
	if err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	if entry.Item.BaseVersion != nil && *entry.Item.BaseVersion != current.Version {
		return conflictFailure(
			fmt.Sprintf("base version %d does not match current %d", *entry.Item.BaseVersion, current.Version),
			current,
		)
	}

	if err := tx.DeleteRecord(resource, entry.Item.ID); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	if err := r.logChange(tx, resource, entry.Item.ID, models.ChangeDelete, current.Version+1); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	return api.WriteResult{OK: true, Version: current.Version + 1}
}

func (r *Resolver) applyUpsert(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	loose := entry.Options != nil && entry.Options.UpsertMode == api.UpsertLoose
	if loose {
		return r.applyLooseUpsert(tx, resource, entry)
	}
	return r.applyStrictUpsert(tx, resource, entry)
}

// applyStrictUpsert — update-or-create. Для существующей строки
// expectedVersion обязателен; его отсутствие само по себе конфликт,
// подсказывающий вызывающему перечитать запись.
func (r *Resolver) applyStrictUpsert(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	current, err := tx.GetRecord(resource, entry.Item.ID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return r.upsertInsert(tx, resource, entry)
	}
	if err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}

	if entry.Item.ExpectedVersion == nil {
		return conflictFailure("record exists but no expected version supplied", current)
	}
	if *entry.Item.ExpectedVersion != current.Version {
		return conflictFailure(
			fmt.Sprintf("expected version %d does not match current %d", *entry.Item.ExpectedVersion, current.Version),
			current,
		)
	}

	return r.upsertOverwrite(tx, resource, entry, current)
}

// applyLooseUpsert — upsert без CAS-проверки: merge/replace поверх текущей
// строки с version+1. Гонки вставки ретраятся ограниченно, затем запись
// выполняется безусловно.
func (r *Resolver) applyLooseUpsert(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	for attempt := 0; attempt < r.looseRetries; attempt++ {
		current, err := tx.GetRecord(resource, entry.Item.ID)
		if errors.Is(err, storage.ErrRecordNotFound) {
			result := r.upsertInsert(tx, resource, entry)
			if result.Error != nil && result.Error.Code == api.CodeDuplicateID {
				// Параллельная вставка выиграла гонку: перечитываем
				continue
			}
			return result
		}
		if err != nil {
			return api.WriteResult{Error: toWireError(err)}
		}
		return r.upsertOverwrite(tx, resource, entry, current)
	}

	// Предел попыток исчерпан: безусловная запись без version check
	r.logger.Warn("loose upsert retries exhausted, forcing write",
		"resource", resource,
		"id", entry.Item.ID)

	current, err := tx.GetRecord(resource, entry.Item.ID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return r.upsertInsert(tx, resource, entry)
	}
	if err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}
	return r.upsertOverwrite(tx, resource, entry, current)
}

func (r *Resolver) upsertInsert(tx storage.Tx, resource string, entry api.WriteEntry) api.WriteResult {
	rec := &models.Record{
		ID:        entry.Item.ID,
		Version:   1,
		Fields:    models.CloneFields(entry.Item.Value),
		UpdatedAt: r.now(),
	}
	if err := tx.InsertRecord(resource, rec); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}
	if err := r.logChange(tx, resource, rec.ID, models.ChangeUpsert, rec.Version); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}
	return okResult(rec)
}

func (r *Resolver) upsertOverwrite(tx storage.Tx, resource string, entry api.WriteEntry, current *models.Record) api.WriteResult {
	merge := entry.Options == nil || entry.Options.Merge == nil || *entry.Options.Merge

	var fields map[string]any
	if merge {
		fields = models.CloneFields(current.Fields)
		for k, v := range entry.Item.Value {
			fields[k] = v
		}
	} else {
		fields = models.CloneFields(entry.Item.Value)
	}

	next := &models.Record{
		ID:        current.ID,
		Version:   current.Version + 1,
		Fields:    fields,
		UpdatedAt: r.now(),
	}

	if err := tx.UpdateRecord(resource, next); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}
	if err := r.logChange(tx, resource, next.ID, models.ChangeUpsert, next.Version); err != nil {
		return api.WriteResult{Error: toWireError(err)}
	}
	return okResult(next)
}

func (r *Resolver) logChange(tx storage.Tx, resource, id string, kind models.ChangeKind, serverVersion int64) error {
	_, err := tx.AppendChange(&models.Change{
		Resource:      resource,
		ID:            id,
		Kind:          kind,
		ServerVersion: serverVersion,
		ChangedAt:     r.now(),
	})
	return err
}

// record сохраняет результат по idempotency-ключу в той же транзакции,
// что и мутация строки.
func (r *Resolver) record(tx storage.Tx, key string, result api.WriteResult) error {
	// EntryID не входит в записанный результат: при replay он берется
	// из нового запроса
	stored := result
	stored.EntryID = ""

	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency body: %w", err)
	}

	status := 200
	if result.Error != nil {
		status = result.Error.HTTPStatus()
	}

	return tx.PutIdempotency(key, &storage.IdempotencyResult{Status: status, Body: body}, r.idempotencyTTL)
}

func (r *Resolver) replayRecorded(entryID string, recorded *storage.IdempotencyResult) api.WriteResult {
	var result api.WriteResult
	if err := json.Unmarshal(recorded.Body, &result); err != nil {
		return api.WriteResult{
			EntryID: entryID,
			Error: &api.Error{
				Code:    api.CodeInternal,
				Message: "recorded idempotency result is unreadable",
				Kind:    api.KindInternal,
			},
		}
	}
	result.EntryID = entryID
	return result
}

func okResult(rec *models.Record) api.WriteResult {
	return api.WriteResult{
		OK:      true,
		Data:    models.RecordToAPI(rec),
		Version: rec.Version,
	}
}
