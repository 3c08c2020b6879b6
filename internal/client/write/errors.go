package write

import (
	"errors"
	"fmt"
)

// Типизированные ошибки write pipeline. Callers обязаны обрабатывать их явно
// через errors.Is/errors.As, а не по тексту сообщения.
var (
	// ErrMissingBase — базовое значение записи недоступно ни в кэше,
	// ни через разрешенный политикой remote fetch
	ErrMissingBase = errors.New("missing base value")

	// ErrMissingVersion — положительная base version не разрешима
	ErrMissingVersion = errors.New("missing base version")

	// ErrIdentityMismatch — updater изменил идентификатор записи
	ErrIdentityMismatch = errors.New("updater changed record identity")

	// ErrProtocolViolation — нарушение корреляции результатов батча
	// (отсутствующий или дублирующийся entry id). Фатально, не ретраится.
	ErrProtocolViolation = errors.New("write result correlation violated")

	// ErrEnqueuedBatch — статус enqueued валиден только для батча из одного entry
	ErrEnqueuedBatch = errors.New("enqueued status for multi-entry batch")
)

// ValidationError ошибка валидации входа компилятора.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ConflictError — CAS-отказ сервера. Несет текущее серверное состояние,
// чтобы вызывающий мог сделать rebase или показать diff.
type ConflictError struct {
	CurrentValue   map[string]any
	CurrentVersion int64
	Message        string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("version conflict: %s (current version %d)", e.Message, e.CurrentVersion)
	}
	return fmt.Sprintf("version conflict: current version %d", e.CurrentVersion)
}

// RemoteError — отказ сервера, не являющийся конфликтом.
type RemoteError struct {
	Code    string
	Message string
	Kind    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote write failed: %s (%s)", e.Message, e.Code)
}
