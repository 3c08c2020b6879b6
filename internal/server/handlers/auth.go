package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/driftsync/driftsync/internal/server/jwt"
	"github.com/driftsync/driftsync/internal/server/storage"
	"github.com/driftsync/driftsync/pkg/api"
)

// AuthHandler обрабатывает регистрацию устройств и выпуск токенов.
type AuthHandler struct {
	logger  *slog.Logger
	devices storage.DeviceStore
	tokens  *jwt.Service
}

// NewAuthHandler создает handler авторизации устройств.
func NewAuthHandler(logger *slog.Logger, devices storage.DeviceStore, tokens *jwt.Service) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		devices: devices,
		tokens:  tokens,
	}
}

// Register обрабатывает POST /auth/register.
// Секрет устройства возвращается ровно один раз; сервер хранит только
// bcrypt-хеш.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, badRequest("invalid request body"))
		return
	}

	secret, err := newDeviceSecret()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate device secret", slog.Any("error", err))
		sendInternal(h.logger, w)
		return
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash device secret", slog.Any("error", err))
		sendInternal(h.logger, w)
		return
	}

	deviceID := uuid.New().String()
	if err := h.devices.CreateDevice(ctx, deviceID, req.Name, secretHash); err != nil {
		h.logger.ErrorContext(ctx, "failed to create device", slog.Any("error", err))
		sendInternal(h.logger, w)
		return
	}

	h.logger.InfoContext(ctx, "device registered",
		slog.String("device_id", deviceID),
		slog.String("name", req.Name))

	sendJSON(h.logger, w, api.RegisterDeviceResponse{
		DeviceID: deviceID,
		Secret:   secret,
	}, http.StatusCreated)
}

// Token обрабатывает POST /auth/token: выпуск access token по device
// credentials.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode token request", slog.Any("error", err))
		sendError(h.logger, w, badRequest("invalid request body"))
		return
	}

	if req.DeviceID == "" || req.Secret == "" {
		sendError(h.logger, w, badRequest("device_id and secret are required"))
		return
	}

	secretHash, err := h.devices.GetDeviceSecretHash(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			// Не раскрываем, существует ли устройство
			h.logger.WarnContext(ctx, "token request for unknown device", slog.String("device_id", req.DeviceID))
			sendUnauthorized(h.logger, w)
			return
		}
		h.logger.ErrorContext(ctx, "failed to load device secret", slog.Any("error", err))
		sendInternal(h.logger, w)
		return
	}

	if err := bcrypt.CompareHashAndPassword(secretHash, []byte(req.Secret)); err != nil {
		h.logger.WarnContext(ctx, "invalid device secret", slog.String("device_id", req.DeviceID))
		sendUnauthorized(h.logger, w)
		return
	}

	token, expiresIn, err := h.tokens.Issue(req.DeviceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		sendInternal(h.logger, w)
		return
	}

	sendJSON(h.logger, w, api.TokenResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}

func newDeviceSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func sendUnauthorized(logger *slog.Logger, w http.ResponseWriter) {
	sendError(logger, w, &api.Error{
		Code:    api.CodeUnauthorized,
		Message: "invalid device credentials",
		Kind:    api.KindAuth,
	})
}

func sendInternal(logger *slog.Logger, w http.ResponseWriter) {
	sendError(logger, w, &api.Error{
		Code:    api.CodeInternal,
		Message: "internal server error",
		Kind:    api.KindInternal,
	})
}
