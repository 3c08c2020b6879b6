package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/storage"
)

// sqliteTx реализует storage.Tx поверх *sql.Tx.
type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ storage.Tx = (*sqliteTx)(nil)

// WithTx выполняет fn внутри одной транзакции.
// Откат при любой ошибке fn; commit при nil.
func (s *Storage) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &storage.AdapterError{Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &storage.AdapterError{Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}

func (t *sqliteTx) GetRecord(resource, id string) (*models.Record, error) {
	return getRecord(t.ctx, t.tx, resource, id)
}

func (t *sqliteTx) InsertRecord(resource string, rec *models.Record) error {
	return insertRecord(t.ctx, t.tx, resource, rec)
}

func (t *sqliteTx) UpdateRecord(resource string, rec *models.Record) error {
	return updateRecord(t.ctx, t.tx, resource, rec)
}

func (t *sqliteTx) DeleteRecord(resource, id string) error {
	return deleteRecord(t.ctx, t.tx, resource, id)
}

// AppendChange добавляет запись в change log. Курсор назначается
// AUTOINCREMENT-колонкой и возвращается вызывающему.
func (t *sqliteTx) AppendChange(change *models.Change) (int64, error) {
	query := `
		INSERT INTO change_log (resource, id, kind, server_version, changed_at)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := t.tx.ExecContext(t.ctx, query,
		change.Resource,
		change.ID,
		string(change.Kind),
		change.ServerVersion,
		change.ChangedAt.Unix(),
	)
	if err != nil {
		return 0, &storage.AdapterError{Err: err}
	}

	cursor, err := res.LastInsertId()
	if err != nil {
		return 0, &storage.AdapterError{Err: err}
	}
	change.Cursor = cursor
	return cursor, nil
}

func (t *sqliteTx) GetIdempotency(key string) (*storage.IdempotencyResult, error) {
	return getIdempotency(t.ctx, t.tx, key, time.Now())
}

func (t *sqliteTx) PutIdempotency(key string, result *storage.IdempotencyResult, ttl time.Duration) error {
	return putIdempotency(t.ctx, t.tx, key, result, ttl, time.Now())
}
