package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/storage"
)

// querier объединяет *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const recordColumns = "resource, id, version, fields, deleted, deleted_at, updated_at"

func scanRecord(scan func(dest ...any) error) (*models.Record, error) {
	var (
		rec       models.Record
		resource  string
		fieldsRaw string
		deleted   int
		deletedAt sql.NullInt64
		updatedAt int64
	)

	err := scan(&resource, &rec.ID, &rec.Version, &fieldsRaw, &deleted, &deletedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fieldsRaw), &rec.Fields); err != nil {
		return nil, &storage.AdapterError{Err: fmt.Errorf("failed to decode fields: %w", err)}
	}
	rec.Deleted = deleted != 0
	if deletedAt.Valid {
		rec.DeletedAt = time.Unix(deletedAt.Int64, 0).UTC()
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &rec, nil
}

func getRecord(ctx context.Context, q querier, resource, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE resource = ? AND id = ?`

	row := q.QueryRowContext(ctx, query, resource, id)
	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, &storage.AdapterError{Err: err}
	}
	return rec, nil
}

func insertRecord(ctx context.Context, q querier, resource string, rec *models.Record) error {
	fieldsRaw, err := json.Marshal(rec.Fields)
	if err != nil {
		return &storage.AdapterError{Err: fmt.Errorf("failed to encode fields: %w", err)}
	}

	query := `
		INSERT INTO records (resource, id, version, fields, deleted, deleted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = q.ExecContext(ctx, query,
		resource,
		rec.ID,
		rec.Version,
		string(fieldsRaw),
		boolToInt(rec.Deleted),
		nullableUnix(rec.DeletedAt),
		rec.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateID
		}
		return &storage.AdapterError{Err: err}
	}
	return nil
}

func updateRecord(ctx context.Context, q querier, resource string, rec *models.Record) error {
	fieldsRaw, err := json.Marshal(rec.Fields)
	if err != nil {
		return &storage.AdapterError{Err: fmt.Errorf("failed to encode fields: %w", err)}
	}

	query := `
		UPDATE records
		SET version = ?, fields = ?, deleted = ?, deleted_at = ?, updated_at = ?
		WHERE resource = ? AND id = ?
	`

	res, err := q.ExecContext(ctx, query,
		rec.Version,
		string(fieldsRaw),
		boolToInt(rec.Deleted),
		nullableUnix(rec.DeletedAt),
		rec.UpdatedAt.Unix(),
		resource,
		rec.ID,
	)
	if err != nil {
		return &storage.AdapterError{Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.AdapterError{Err: err}
	}
	if affected == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}

func deleteRecord(ctx context.Context, q querier, resource, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM records WHERE resource = ? AND id = ?`, resource, id)
	if err != nil {
		return &storage.AdapterError{Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.AdapterError{Err: err}
	}
	if affected == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}

// GetRecord reads a single record outside a transaction
func (s *Storage) GetRecord(ctx context.Context, resource, id string) (*models.Record, error) {
	return getRecord(ctx, s.db, resource, id)
}

// ListRecords возвращает строки по списку id; отсутствующие пропускаются
func (s *Storage) ListRecords(ctx context.Context, resource string, ids []string) ([]*models.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + recordColumns + ` FROM records WHERE resource = ? AND id IN (` + placeholders + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, resource)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.AdapterError{Err: err}
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, &storage.AdapterError{Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.AdapterError{Err: err}
	}
	return records, nil
}

// QueryRecords возвращает неудаленные строки ресурса
func (s *Storage) QueryRecords(ctx context.Context, resource string, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE resource = ? AND deleted = 0 ORDER BY id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, resource, limit)
	if err != nil {
		return nil, &storage.AdapterError{Err: err}
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, &storage.AdapterError{Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.AdapterError{Err: err}
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// isUniqueViolation распознает нарушение уникальности первичного ключа
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: records.resource, records.id")
}
