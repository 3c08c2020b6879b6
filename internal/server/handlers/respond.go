package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/driftsync/driftsync/pkg/api"
)

// sendJSON пишет JSON-ответ с указанным статусом.
func sendJSON(logger *slog.Logger, w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError пишет единый error envelope протокола.
func sendError(logger *slog.Logger, w http.ResponseWriter, apiErr *api.Error) {
	sendJSON(logger, w, map[string]any{"error": apiErr}, apiErr.HTTPStatus())
}

func badRequest(message string) *api.Error {
	return &api.Error{
		Code:    api.CodeValidation,
		Message: message,
		Kind:    api.KindValidation,
	}
}
