package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"meditation/internal/auth"
	"meditation/internal/editor"
	"meditation/internal/repository"
	"meditation/internal/service"
	"meditation/internal/timer"
	"meditation/internal/upload"

	"github.com/go-playground/validator/v10"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, editor.ErrPageNotFound),
		errors.Is(err, editor.ErrVideoNotFound),
		errors.Is(err, editor.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, editor.ErrNoDraft),
		errors.Is(err, timer.ErrRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingID),
		errors.Is(err, timer.ErrInvalidValue),
		upload.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status, prefixing server errors with
// prefix.
func writeError(w http.ResponseWriter, prefix string, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = prefix + ": " + msg
	}
	http.Error(w, msg, status)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any, validate *validator.Validate) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
