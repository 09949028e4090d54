package handler

import (
	"log"
	"net/http"

	"github.com/comanda-pos/api/internal/money"
	"github.com/comanda-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// retryAfterSeconds is sent with 503 when a tab or table is locked.
const retryAfterSeconds = "1"

// writeServiceError maps a service error to a status code. Unknown errors are
// logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case service.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case service.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case service.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case service.IsRetryable(err):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "resource busy, retry"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// urlUUID parses a path parameter, writing a 400 when it is malformed.
func urlUUID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return uuid.Nil, false
	}
	return id, true
}

// parseAmount accepts the string form used on the wire.
func parseAmount(w http.ResponseWriter, s string) (money.Money, bool) {
	if s == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return money.Zero, false
	}
	m, err := money.New(s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return money.Zero, false
	}
	return m, true
}

// optionalUUID parses an optional id from a request body.
func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
