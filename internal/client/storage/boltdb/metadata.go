package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/driftsync/driftsync/internal/client/storage"
)

const (
	keyCursor      = "cursor"
	keyCredentials = "device"
	keyToken       = "access_token"
)

// SaveCursor сохраняет курсор последнего принятого изменения.
func (s *Storage) SaveCursor(ctx context.Context, cursor int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Конвертируем int64 в bytes
		cursorBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(cursorBytes, uint64(cursor))

		if err := bucket.Put([]byte(keyCursor), cursorBytes); err != nil {
			return fmt.Errorf("failed to save cursor: %w", err)
		}
		return nil
	})
}

// GetCursor возвращает сохраненный курсор.
// Возвращает 0, если синхронизации еще не было.
func (s *Storage) GetCursor(ctx context.Context) (int64, error) {
	var cursor int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		cursorBytes := bucket.Get([]byte(keyCursor))
		if cursorBytes == nil {
			// Первая синхронизация
			cursor = 0
			return nil
		}

		cursor = int64(binary.BigEndian.Uint64(cursorBytes))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}

	return cursor, nil
}

// SaveCredentials сохраняет учетные данные устройства.
func (s *Storage) SaveCredentials(ctx context.Context, creds storage.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}
		if err := bucket.Put([]byte(keyCredentials), data); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}
		return nil
	})
}

// GetCredentials возвращает учетные данные устройства.
func (s *Storage) GetCredentials(ctx context.Context) (storage.Credentials, error) {
	var creds storage.Credentials

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}

		data := bucket.Get([]byte(keyCredentials))
		if data == nil {
			return storage.ErrCredentialsNotFound
		}
		return json.Unmarshal(data, &creds)
	})
	if err != nil {
		return storage.Credentials{}, err
	}

	return creds, nil
}

// SaveToken сохраняет access token.
func (s *Storage) SaveToken(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}
		if err := bucket.Put([]byte(keyToken), []byte(token)); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		return nil
	})
}

// GetToken возвращает сохраненный access token.
func (s *Storage) GetToken(ctx context.Context) (string, error) {
	var token string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}

		data := bucket.Get([]byte(keyToken))
		if data == nil {
			return storage.ErrTokenNotFound
		}
		token = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// DeleteAuth удаляет учетные данные устройства и access token.
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}
		if err := bucket.Delete([]byte(keyCredentials)); err != nil {
			return fmt.Errorf("failed to delete credentials: %w", err)
		}
		if err := bucket.Delete([]byte(keyToken)); err != nil {
			return fmt.Errorf("failed to delete token: %w", err)
		}
		return nil
	})
}
