package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/muandane/estatic/internal/cache"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusForError maps store and storage failures onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cache.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, logger *slog.Logger, code int, message string, err error) {
	logger.Error(message,
		"error", err,
		"code", code,
	)

	writeJSON(w, logger, code, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
