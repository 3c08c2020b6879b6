package storage

import (
	"context"
	"time"

	"github.com/driftsync/driftsync/internal/models"
)

// IdempotencyResult записанный результат ранее выполненной операции.
// Повтор того же ключа возвращает результат дословно, без повторного
// исполнения побочных эффектов.
type IdempotencyResult struct {
	Body   []byte
	Status int
}

// Tx — операции внутри одной storage-транзакции.
// Все мутации строки, change log и idempotency-записи одного write item
// выполняются в одной транзакции.
type Tx interface {
	// GetRecord возвращает строку по id. ErrRecordNotFound, если строки нет.
	GetRecord(resource, id string) (*models.Record, error)

	// InsertRecord вставляет новую строку. ErrDuplicateID при коллизии id.
	InsertRecord(resource string, rec *models.Record) error

	// UpdateRecord перезаписывает существующую строку.
	UpdateRecord(resource string, rec *models.Record) error

	// DeleteRecord удаляет строку. ErrRecordNotFound, если строки нет.
	DeleteRecord(resource, id string) error

	// AppendChange добавляет запись в change log и возвращает ее курсор.
	AppendChange(change *models.Change) (int64, error)

	// GetIdempotency возвращает записанный результат по ключу.
	// ErrIdempotencyMiss при промахе.
	GetIdempotency(key string) (*IdempotencyResult, error)

	// PutIdempotency записывает результат по ключу с TTL.
	PutIdempotency(key string, result *IdempotencyResult, ttl time.Duration) error
}

// Store — интерфейс authoritative-хранилища сервера.
type Store interface {
	// WithTx выполняет fn внутри одной транзакции.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetRecord читает строку вне транзакции.
	GetRecord(ctx context.Context, resource, id string) (*models.Record, error)

	// ListRecords возвращает строки по списку id (отсутствующие пропускаются).
	ListRecords(ctx context.Context, resource string, ids []string) ([]*models.Record, error)

	// QueryRecords возвращает неудаленные строки ресурса с ограничением.
	QueryRecords(ctx context.Context, resource string, limit int) ([]*models.Record, error)

	// ChangesSince возвращает изменения с cursor (исключительно) в порядке
	// возрастания курсора и следующий курсор.
	ChangesSince(ctx context.Context, cursor int64, limit int, resources []string) ([]models.Change, int64, error)

	// CurrentCursor возвращает текущий максимальный курсор change log.
	CurrentCursor(ctx context.Context) (int64, error)
}

// DeviceStore — хранилище устройств для выпуска токенов.
type DeviceStore interface {
	// CreateDevice сохраняет устройство с bcrypt-хешем секрета.
	CreateDevice(ctx context.Context, deviceID, name string, secretHash []byte) error

	// GetDeviceSecretHash возвращает hash секрета устройства.
	// ErrDeviceNotFound, если устройства нет.
	GetDeviceSecretHash(ctx context.Context, deviceID string) ([]byte, error)
}
