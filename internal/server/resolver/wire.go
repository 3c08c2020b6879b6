package resolver

import (
	"errors"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/storage"
	"github.com/driftsync/driftsync/pkg/api"
)

// toWireError переводит ошибки стораджа в wire envelope.
// Детали AdapterError не утекают клиенту.
func toWireError(err error) *api.Error {
	var conflict *storage.ConflictError
	if errors.As(err, &conflict) {
		return conflictError(conflict.Error(), conflict.CurrentVersion)
	}

	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
		return &api.Error{
			Code:    api.CodeNotFound,
			Message: "record not found",
			Kind:    api.KindNotFound,
		}
	case errors.Is(err, storage.ErrDuplicateID):
		return &api.Error{
			Code:    api.CodeDuplicateID,
			Message: "record with this id already exists",
			Kind:    api.KindConflict,
		}
	default:
		return &api.Error{
			Code:    api.CodeInternal,
			Message: "storage operation failed",
			Kind:    api.KindAdapter,
		}
	}
}

// conflictError строит wire envelope конфликта. Текущее значение строки
// отдается отдельным полем WriteResult.Current, в details попадает
// только версия.
func conflictError(message string, currentVersion int64) *api.Error {
	return &api.Error{
		Code:    api.CodeConflict,
		Message: message,
		Kind:    api.KindConflict,
		Details: map[string]any{
			"current_version": currentVersion,
		},
	}
}

// conflictFailure строит отказ с приложенным текущим состоянием строки,
// чтобы клиент мог сделать rebase без дополнительного запроса.
func conflictFailure(message string, current *models.Record) api.WriteResult {
	result := api.WriteResult{
		Error: conflictError(message, current.Version),
	}
	if !current.Deleted {
		result.Current = &api.CurrentState{
			Value:   models.CloneFields(current.Fields),
			Version: current.Version,
		}
	} else {
		result.Current = &api.CurrentState{Version: current.Version}
	}
	return result
}

func validationFailure(err error) api.WriteResult {
	return api.WriteResult{
		Error: &api.Error{
			Code:    api.CodeValidation,
			Message: err.Error(),
			Kind:    api.KindValidation,
		},
	}
}
