package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finlens/internal/core"
	"finlens/internal/ports"
)

const (
	// UserIDHeader is set by the authenticating gateway in front of the API.
	UserIDHeader = "X-User-ID"

	maxBodyBytes = 1 << 20
	maxUserIDLen = 128
)

var errMissingUser = errors.New("missing or invalid " + UserIDHeader + " header")

// userIDFromRequest returns the gateway asserted identity.
func userIDFromRequest(r *http.Request) (string, error) {
	id := sanitizeInput(r.Header.Get(UserIDHeader))
	if id == "" || len(id) > maxUserIDLen {
		return "", errMissingUser
	}
	return id, nil
}

// decodeJSON reads one JSON object from the body into dst. An empty body
// leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrInvalidInput, tooLarge.Limit)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", core.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", core.ErrInvalidInput)
	}
	return nil
}

// ParseTransactionFilter reads the listing query parameters of
// GET /api/transactions.
func ParseTransactionFilter(userID string, q url.Values) (ports.TransactionFilter, error) {
	f := ports.TransactionFilter{
		UserID:    userID,
		AccountID: sanitizeInput(q.Get("accountId")),
		Category:  sanitizeInput(q.Get("category")),
	}

	var err error
	if f.Limit, err = parseIntParam(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseIntParam(q, "offset"); err != nil {
		return f, err
	}
	if f.From, f.To, err = parseDateRange(q); err != nil {
		return f, err
	}
	return f, nil
}

// parseDateRange reads startDate and endDate. Missing values are zero.
func parseDateRange(q url.Values) (from, to core.Date, err error) {
	if from, err = parseDateParam(q, "startDate"); err != nil {
		return
	}
	to, err = parseDateParam(q, "endDate")
	return
}

func parseDateParam(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", core.ErrInvalidInput, key)
	}
	return d, nil
}

func parseIntParam(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrInvalidInput, key)
	}
	return n, nil
}

func parseBoolParam(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return b
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
