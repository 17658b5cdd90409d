package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/projection"
	"fraud-ledger/internal/domain/transaction"
	"fraud-ledger/internal/pkg/lock"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into dst, rejecting unknown fields
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeFailure maps a use case error onto an HTTP status
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dto.ErrInvalidRequest),
		errors.Is(err, event.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, transaction.ErrAccountNotFound),
		errors.Is(err, transaction.ErrTransactionNotFound),
		errors.Is(err, projection.ErrUnknownProjection):
		return http.StatusNotFound
	case errors.Is(err, transaction.ErrAccountExists),
		errors.Is(err, event.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, fraud.ErrInsufficientTrainingData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// queryLimit parses the limit query parameter within [1, max]
func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d", max)
	}
	return n, nil
}
