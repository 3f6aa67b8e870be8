package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusForError maps a failed session operation to an HTTP status.
// fallback is used for rejected user input.
func statusForError(err error, fallback int) int {
	var gwErr *model.GatewayError
	switch {
	case errors.Is(err, model.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &gwErr) && (gwErr.Kind == model.KindNetwork || gwErr.Kind == model.KindServer):
		return http.StatusBadGateway
	default:
		return fallback
	}
}
