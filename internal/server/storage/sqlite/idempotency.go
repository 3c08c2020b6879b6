package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/driftsync/driftsync/internal/server/storage"
)

// DefaultIdempotencyTTL срок хранения записанных результатов.
const DefaultIdempotencyTTL = 24 * time.Hour

func getIdempotency(ctx context.Context, q querier, key string, now time.Time) (*storage.IdempotencyResult, error) {
	var (
		result    storage.IdempotencyResult
		expiresAt int64
	)

	row := q.QueryRowContext(ctx, `SELECT status, body, expires_at FROM idempotency WHERE key = ?`, key)
	if err := row.Scan(&result.Status, &result.Body, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrIdempotencyMiss
		}
		return nil, &storage.AdapterError{Err: err}
	}

	if now.Unix() > expiresAt {
		// Истекшая запись эквивалентна промаху; строка вычищается лениво
		_, _ = q.ExecContext(ctx, `DELETE FROM idempotency WHERE key = ?`, key)
		return nil, storage.ErrIdempotencyMiss
	}

	return &result, nil
}

func putIdempotency(ctx context.Context, q querier, key string, result *storage.IdempotencyResult, ttl time.Duration, now time.Time) error {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}

	query := `
		INSERT INTO idempotency (key, status, body, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET status = excluded.status, body = excluded.body, expires_at = excluded.expires_at
	`

	_, err := q.ExecContext(ctx, query, key, result.Status, result.Body, now.Add(ttl).Unix())
	if err != nil {
		return &storage.AdapterError{Err: err}
	}
	return nil
}
