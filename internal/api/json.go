package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slok/runq/internal/model"
)

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as a JSON error response with the status code matching its kind.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusCode(err), map[string]string{"error": err.Error()})
}

// StatusCode maps domain errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotValid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
