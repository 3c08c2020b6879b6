package storage

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found in storage
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateID indicates that a record with this id already exists
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrDeviceNotFound indicates that device was not found
	ErrDeviceNotFound = errors.New("device not found")

	// ErrIdempotencyMiss indicates that no recorded result exists for the key
	ErrIdempotencyMiss = errors.New("idempotency key not recorded")
)

// ConflictError — несовпадение версии при CAS-записи.
// Несет текущее серверное состояние строки для rebase на клиенте.
type ConflictError struct {
	CurrentValue   map[string]any
	CurrentVersion int64
	ExpectedBase   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected base %d, current %d", e.ExpectedBase, e.CurrentVersion)
}

// AdapterError — непрозрачный отказ backing store. Сырые ошибки драйвера
// никогда не покидают серверную границу в исходном виде.
type AdapterError struct {
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("storage adapter failed: %v", e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
