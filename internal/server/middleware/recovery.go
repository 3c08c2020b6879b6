package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/driftsync/driftsync/pkg/api"
)

// RecoveryMiddleware перехватывает panic, логирует стек и возвращает
// generic error envelope без деталей.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"stack", string(debug.Stack()),
					)

					writeErrorEnvelope(w, &api.Error{
						Code:    api.CodeInternal,
						Message: "internal server error",
						Kind:    api.KindInternal,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
