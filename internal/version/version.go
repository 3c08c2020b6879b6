// Package version содержит примитивы версионирования и идемпотентности:
// генерацию idempotency-ключей и helpers для разрешения положительных версий.
package version

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/driftsync/driftsync/internal/models"
)

// ErrMissingVersion возвращается, когда положительная версия не может быть
// разрешена ни из явного значения, ни из базовой записи.
var ErrMissingVersion = errors.New("missing base version")

// NewIdempotencyKey генерирует глобально уникальный идемпотентный ключ.
func NewIdempotencyKey() string {
	return uuid.New().String()
}

// NewEntryID генерирует уникальный в рамках процесса идентификатор write entry.
func NewEntryID() string {
	return uuid.New().String()
}

// NewEntityID синтезирует идентификатор новой записи.
func NewEntityID() string {
	return uuid.New().String()
}

// NewTraceID генерирует идентификатор трассировки для sync-запросов.
func NewTraceID() string {
	return uuid.New().String()
}

// RequirePositive проверяет, что версия положительна.
func RequirePositive(v int64) (int64, error) {
	if v <= 0 {
		return 0, fmt.Errorf("version %d is not positive: %w", v, ErrMissingVersion)
	}
	return v, nil
}

// Resolve возвращает первую разрешимую положительную версию:
// явное значение, затем версию базовой записи.
func Resolve(explicit int64, base *models.Record) (int64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if base != nil && base.Version > 0 {
		return base.Version, nil
	}
	return 0, ErrMissingVersion
}
