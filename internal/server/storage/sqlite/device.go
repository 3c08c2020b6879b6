package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/driftsync/driftsync/internal/server/storage"
)

// CreateDevice сохраняет устройство с bcrypt-хешем секрета.
func (s *Storage) CreateDevice(ctx context.Context, deviceID, name string, secretHash []byte) error {
	query := `INSERT INTO devices (id, name, secret_hash, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, deviceID, name, secretHash, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateID
		}
		return &storage.AdapterError{Err: err}
	}
	return nil
}

// GetDeviceSecretHash возвращает hash секрета устройства.
func (s *Storage) GetDeviceSecretHash(ctx context.Context, deviceID string) ([]byte, error) {
	var hash []byte
	row := s.db.QueryRowContext(ctx, `SELECT secret_hash FROM devices WHERE id = ?`, deviceID)
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDeviceNotFound
		}
		return nil, &storage.AdapterError{Err: err}
	}
	return hash, nil
}
