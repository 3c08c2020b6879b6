package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/driftsync/driftsync/internal/server/jwt"
	"github.com/driftsync/driftsync/pkg/api"
)

type contextKey string

// DeviceIDKey ключ контекста с идентификатором аутентифицированного устройства.
const DeviceIDKey contextKey = "device_id"

// DeviceID возвращает идентификатор устройства из контекста запроса.
func DeviceID(ctx context.Context) string {
	id, _ := ctx.Value(DeviceIDKey).(string)
	return id
}

// TokenVerifier проверяет токен доступа устройства.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware проверки Bearer-токена устройства.
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header", "path", r.URL.Path)
				writeUnauthorized(w, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				writeUnauthorized(w, "invalid token format")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				logger.Warn("invalid access token", "error", err)
				writeUnauthorized(w, "invalid token")
				return
			}

			logger.Debug("device authenticated", "device_id", claims.DeviceID)

			ctx := context.WithValue(r.Context(), DeviceIDKey, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeErrorEnvelope(w, &api.Error{
		Code:    api.CodeUnauthorized,
		Message: message,
		Kind:    api.KindAuth,
	})
}

// writeErrorEnvelope пишет единый error envelope протокола.
func writeErrorEnvelope(w http.ResponseWriter, apiErr *api.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]any{"error": apiErr})
}
