package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/server/jwt"
	"github.com/driftsync/driftsync/internal/server/storage/sqlite"
	"github.com/driftsync/driftsync/pkg/api"
)

func setupAuth(t *testing.T) (*AuthHandler, *jwt.Service) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens := jwt.NewService("test-secret", 15*time.Minute)
	return NewAuthHandler(logger, store, tokens), tokens
}

func TestAuthHandler_RegisterAndToken(t *testing.T) {
	h, tokens := setupAuth(t)

	body, _ := json.Marshal(api.RegisterDeviceRequest{Name: "laptop"})
	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	var reg api.RegisterDeviceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.DeviceID)
	assert.NotEmpty(t, reg.Secret)

	// Выпуск токена по полученным credentials
	body, _ = json.Marshal(api.TokenRequest{DeviceID: reg.DeviceID, Secret: reg.Secret})
	w = httptest.NewRecorder()
	h.Token(w, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var tok api.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, int64(900), tok.ExpiresIn)

	claims, err := tokens.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.DeviceID, claims.DeviceID)
}

func TestAuthHandler_Token_WrongSecret(t *testing.T) {
	h, _ := setupAuth(t)

	body, _ := json.Marshal(api.RegisterDeviceRequest{Name: "laptop"})
	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)
	var reg api.RegisterDeviceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))

	body, _ = json.Marshal(api.TokenRequest{DeviceID: reg.DeviceID, Secret: "wrong"})
	w = httptest.NewRecorder()
	h.Token(w, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestAuthHandler_Token_UnknownDevice(t *testing.T) {
	h, _ := setupAuth(t)

	body, _ := json.Marshal(api.TokenRequest{DeviceID: "nope", Secret: "secret"})
	w := httptest.NewRecorder()
	h.Token(w, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))

	// Неизвестное устройство неотличимо от неверного секрета
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Token_MissingFields(t *testing.T) {
	h, _ := setupAuth(t)

	body, _ := json.Marshal(api.TokenRequest{DeviceID: "", Secret: ""})
	w := httptest.NewRecorder()
	h.Token(w, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHealthHandler(logger, "1.2.3")

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}
