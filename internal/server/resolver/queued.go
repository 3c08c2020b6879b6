package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/storage"
	"github.com/driftsync/driftsync/internal/validation"
	"github.com/driftsync/driftsync/pkg/api"
)

// queuedOutcome — результат применения одной queued-операции.
// Заполнено ровно одно из полей.
type queuedOutcome struct {
	Acked    *api.AckedOp    `json:"acked,omitempty"`
	Rejected *api.RejectedOp `json:"rejected,omitempty"`
}

// ApplyQueued применяет операции offline-очереди по порядку, каждую в
// собственной транзакции. Отказ одной операции не прерывает остальные:
// очередь клиента должна опустошиться за один проход.
func (r *Resolver) ApplyQueued(ctx context.Context, ops []api.QueuedOp) (acked []api.AckedOp, rejected []api.RejectedOp, err error) {
	for _, op := range ops {
		outcome, opErr := r.applyQueuedOp(ctx, op)
		if opErr != nil {
			return acked, rejected, fmt.Errorf("failed to apply queued op %s: %w", op.IdempotencyKey, opErr)
		}
		if outcome.Acked != nil {
			acked = append(acked, *outcome.Acked)
		}
		if outcome.Rejected != nil {
			rejected = append(rejected, *outcome.Rejected)
		}
	}
	return acked, rejected, nil
}

func (r *Resolver) applyQueuedOp(ctx context.Context, op api.QueuedOp) (queuedOutcome, error) {
	var outcome queuedOutcome
	err := r.store.WithTx(ctx, func(tx storage.Tx) error {
		outcome = r.queuedInTx(tx, op)
		return nil
	})
	return outcome, err
}

func (r *Resolver) queuedInTx(tx storage.Tx, op api.QueuedOp) queuedOutcome {
	if op.IdempotencyKey == "" {
		return rejectOutcome(op, &api.Error{
			Code:    api.CodeValidation,
			Message: "queued op requires an idempotency key",
			Kind:    api.KindValidation,
		}, nil)
	}

	if recorded, err := tx.GetIdempotency(op.IdempotencyKey); err == nil {
		var outcome queuedOutcome
		if uerr := json.Unmarshal(recorded.Body, &outcome); uerr == nil {
			return outcome
		}
		return rejectOutcome(op, &api.Error{
			Code:    api.CodeInternal,
			Message: "recorded idempotency result is unreadable",
			Kind:    api.KindInternal,
		}, nil)
	} else if !errors.Is(err, storage.ErrIdempotencyMiss) {
		return rejectOutcome(op, toWireError(err), nil)
	}

	outcome := r.executeQueued(tx, op)

	body, err := json.Marshal(outcome)
	if err != nil {
		return rejectOutcome(op, &api.Error{
			Code:    api.CodeInternal,
			Message: "failed to encode idempotency body",
			Kind:    api.KindInternal,
		}, nil)
	}
	status := 200
	if outcome.Rejected != nil {
		status = outcome.Rejected.Error.HTTPStatus()
	}
	if err := tx.PutIdempotency(op.IdempotencyKey, &storage.IdempotencyResult{Status: status, Body: body}, r.idempotencyTTL); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	return outcome
}

func (r *Resolver) executeQueued(tx storage.Tx, op api.QueuedOp) queuedOutcome {
	if err := validation.ValidateResource(op.Resource); err != nil {
		return rejectOutcome(op, &api.Error{
			Code:    api.CodeValidation,
			Message: err.Error(),
			Kind:    api.KindValidation,
		}, nil)
	}
	if err := validation.ValidateEntityID(op.ID); err != nil {
		return rejectOutcome(op, &api.Error{
			Code:    api.CodeValidation,
			Message: err.Error(),
			Kind:    api.KindValidation,
		}, nil)
	}

	switch op.Kind {
	case api.QueuedCreate:
		return r.queuedCreate(tx, op)
	case api.QueuedPatch:
		return r.queuedPatch(tx, op)
	case api.QueuedDelete:
		return r.queuedDelete(tx, op)
	default:
		return rejectOutcome(op, &api.Error{
			Code:    api.CodeValidation,
			Message: fmt.Sprintf("unknown queued op kind %q", op.Kind),
			Kind:    api.KindValidation,
		}, nil)
	}
}

func (r *Resolver) queuedCreate(tx storage.Tx, op api.QueuedOp) queuedOutcome {
	if existing, err := tx.GetRecord(op.Resource, op.ID); err == nil {
		return rejectOutcome(op, conflictError("record already exists", existing.Version), existing)
	} else if !errors.Is(err, storage.ErrRecordNotFound) {
		return rejectOutcome(op, toWireError(err), nil)
	}

	rec := &models.Record{
		ID:        op.ID,
		Version:   1,
		Fields:    models.CloneFields(op.Data),
		UpdatedAt: r.now(),
	}
	if err := tx.InsertRecord(op.Resource, rec); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	if err := r.logChange(tx, op.Resource, rec.ID, models.ChangeUpsert, rec.Version); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	return ackOutcome(op, rec.Version)
}

func (r *Resolver) queuedPatch(tx storage.Tx, op api.QueuedOp) queuedOutcome {
	current, err := tx.GetRecord(op.Resource, op.ID)
	if err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}

	if op.BaseVersion != nil && *op.BaseVersion != current.Version {
		return rejectOutcome(op, conflictError(
			fmt.Sprintf("base version %d does not match current %d", *op.BaseVersion, current.Version),
			current.Version,
		), current)
	}

	fields := models.ApplyPatches(current.Fields, models.PatchesFromAPI(op.Patches))

	next := &models.Record{
		ID:        current.ID,
		Version:   current.Version + 1,
		Fields:    fields,
		UpdatedAt: r.now(),
	}
	if err := tx.UpdateRecord(op.Resource, next); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	if err := r.logChange(tx, op.Resource, next.ID, models.ChangeUpsert, next.Version); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	return ackOutcome(op, next.Version)
}

// queuedDelete — soft delete: строка помечается удаленной и остается
// видимой в change log как delete.
func (r *Resolver) queuedDelete(tx storage.Tx, op api.QueuedOp) queuedOutcome {
	current, err := tx.GetRecord(op.Resource, op.ID)
	if err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}

	if op.BaseVersion != nil && *op.BaseVersion != current.Version {
		return rejectOutcome(op, conflictError(
			fmt.Sprintf("base version %d does not match current %d", *op.BaseVersion, current.Version),
			current.Version,
		), current)
	}

	next := current.Clone()
	next.Version = current.Version + 1
	next.Deleted = true
	next.DeletedAt = r.now()
	next.UpdatedAt = r.now()

	if err := tx.UpdateRecord(op.Resource, next); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	if err := r.logChange(tx, op.Resource, next.ID, models.ChangeDelete, next.Version); err != nil {
		return rejectOutcome(op, toWireError(err), nil)
	}
	return ackOutcome(op, next.Version)
}

func ackOutcome(op api.QueuedOp, version int64) queuedOutcome {
	return queuedOutcome{Acked: &api.AckedOp{
		IdempotencyKey: op.IdempotencyKey,
		Resource:       op.Resource,
		ID:             op.ID,
		ServerVersion:  version,
	}}
}

func rejectOutcome(op api.QueuedOp, wireErr *api.Error, current *models.Record) queuedOutcome {
	rejected := &api.RejectedOp{
		IdempotencyKey: op.IdempotencyKey,
		Error:          *wireErr,
	}
	if current != nil {
		rejected.CurrentValue = models.CloneFields(current.Fields)
		version := current.Version
		rejected.CurrentVersion = &version
	}
	return queuedOutcome{Rejected: rejected}
}
