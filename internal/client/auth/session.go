// Package auth управляет device credentials и access token клиента.
//
// Устройство регистрируется один раз: сервер выдает device_id и секрет,
// секрет показывается ровно один раз и сохраняется локально. Дальше
// короткоживущий access token выпускается по credentials при каждом
// запуске и по мере истечения.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	clientapi "github.com/driftsync/driftsync/internal/client/api"
	"github.com/driftsync/driftsync/internal/client/storage"
	"github.com/driftsync/driftsync/pkg/api"
)

//go:generate moq -out api_mock.go . DeviceAPI

// DeviceAPI — часть API клиента, нужная для управления сессией.
type DeviceAPI interface {
	RegisterDevice(ctx context.Context, req api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error)
	Token(ctx context.Context, req api.TokenRequest) (*api.TokenResponse, error)
	SetToken(token string)
}

// ErrNotRegistered возвращается, когда у клиента нет сохраненных
// device credentials.
var ErrNotRegistered = errors.New("device is not registered")

// Session выпускает и хранит учетные данные устройства.
type Session struct {
	client DeviceAPI
	meta   storage.MetadataStorage
	logger *slog.Logger
}

func NewSession(client DeviceAPI, meta storage.MetadataStorage, logger *slog.Logger) *Session {
	return &Session{
		client: client,
		meta:   meta,
		logger: logger,
	}
}

// Register регистрирует устройство и сохраняет credentials.
// Возвращает ошибку, если устройство уже зарегистрировано: повторная
// регистрация создала бы нового владельца для той же локальной базы.
func (s *Session) Register(ctx context.Context, name string) (*storage.Credentials, error) {
	if _, err := s.meta.GetCredentials(ctx); err == nil {
		return nil, errors.New("device is already registered")
	} else if !errors.Is(err, storage.ErrCredentialsNotFound) {
		return nil, fmt.Errorf("failed to check credentials: %w", err)
	}

	resp, err := s.client.RegisterDevice(ctx, api.RegisterDeviceRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	creds := storage.Credentials{DeviceID: resp.DeviceID, Secret: resp.Secret}
	if err := s.meta.SaveCredentials(ctx, creds); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	s.logger.Info("device registered", "device_id", creds.DeviceID)
	return &creds, nil
}

// Login выпускает свежий access token по сохраненным credentials
// и устанавливает его в API клиент.
func (s *Session) Login(ctx context.Context) error {
	creds, err := s.meta.GetCredentials(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialsNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	resp, err := s.client.Token(ctx, api.TokenRequest{
		DeviceID: creds.DeviceID,
		Secret:   creds.Secret,
	})
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}

	s.client.SetToken(resp.AccessToken)

	// Токен сохраняется для status-команды; при следующем запуске все
	// равно выпускается новый.
	if err := s.meta.SaveToken(ctx, resp.AccessToken); err != nil {
		s.logger.Warn("failed to persist token", "error", err)
	}

	s.logger.Debug("token issued", "device_id", creds.DeviceID, "expires_in", resp.ExpiresIn)
	return nil
}

// IsRegistered сообщает, есть ли сохраненные device credentials.
func (s *Session) IsRegistered(ctx context.Context) (bool, error) {
	_, err := s.meta.GetCredentials(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrCredentialsNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check credentials: %w", err)
}

// DeviceID возвращает id зарегистрированного устройства.
func (s *Session) DeviceID(ctx context.Context) (string, error) {
	creds, err := s.meta.GetCredentials(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialsNotFound) {
			return "", ErrNotRegistered
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	return creds.DeviceID, nil
}

// Logout удаляет локальные credentials и token. Сервер не уведомляется:
// токены короткоживущие и истекают сами.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.meta.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete auth data: %w", err)
	}
	s.client.SetToken("")
	return nil
}

// Compile-time check that the real API client satisfies DeviceAPI
var _ DeviceAPI = (*clientapi.Client)(nil)
