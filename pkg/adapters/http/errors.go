package http

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSaveInFlight), errors.Is(err, fs.ErrExist):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidOperation), errors.Is(err, domain.ErrParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Retryable: domain.IsRetryable(err)})
}
