package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		handler        http.HandlerFunc
		name           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "panic returns internal error envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "INTERNAL",
		},
		{
			name: "panic with error value",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(assert.AnError)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal server error",
		},
		{
			name: "normal request passes through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			wrapped := RecoveryMiddleware(logger)(tt.handler)

			req := httptest.NewRequest(http.MethodPost, "/ops", nil)
			w := httptest.NewRecorder()

			assert.NotPanics(t, func() {
				wrapped.ServeHTTP(w, req)
			})

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)

			if tt.expectedStatus == http.StatusInternalServerError {
				assert.Contains(t, buf.String(), "panic recovered")
			}
		})
	}
}

func TestRecoveryMiddleware_PanicDoesNotLeakDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	wrapped := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret database password")
	}))

	req := httptest.NewRequest(http.MethodPost, "/ops", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	// Детали остаются в логе
	assert.Contains(t, buf.String(), "secret database password")
}
