package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"finlens/internal/core"
	"finlens/internal/log"
)

// money renders an amount as a JSON number with exactly two decimals.
type money float64

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.NewFromFloat(float64(m)).Round(2).StringFixed(2)), nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes a JSON error body. Internal details are
// only exposed for client errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeErrorMessage(w, status, http.StatusText(status))
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
		log.FieldOperation, op,
		log.FieldStatusCode, status,
		log.FieldError, err)
	writeErrorMessage(w, status, err.Error())
}
