package storage

import "context"

// Credentials — учетные данные устройства, полученные при регистрации.
type Credentials struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

// MetadataStorage defines interface for storing client sync metadata
type MetadataStorage interface {
	// SaveCursor сохраняет курсор последнего принятого изменения.
	SaveCursor(ctx context.Context, cursor int64) error

	// GetCursor возвращает сохраненный курсор; 0, если синхронизации
	// еще не было.
	GetCursor(ctx context.Context) (int64, error)

	// SaveCredentials сохраняет учетные данные устройства.
	SaveCredentials(ctx context.Context, creds Credentials) error

	// GetCredentials возвращает учетные данные устройства.
	// ErrCredentialsNotFound, если устройство не зарегистрировано.
	GetCredentials(ctx context.Context) (Credentials, error)

	// SaveToken сохраняет access token.
	SaveToken(ctx context.Context, token string) error

	// GetToken возвращает access token. ErrTokenNotFound при отсутствии.
	GetToken(ctx context.Context) (string, error)

	// DeleteAuth удаляет учетные данные устройства и access token.
	DeleteAuth(ctx context.Context) error
}
