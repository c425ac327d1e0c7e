package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"finlens/internal/core"
)

func TestParseTransactionFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		wantErr bool
		check   func(t *testing.T, q url.Values)
	}{
		{
			name:  "empty query",
			query: url.Values{},
		},
		{
			name: "all parameters",
			query: url.Values{
				"limit":     {"25"},
				"offset":    {"50"},
				"accountId": {" acc-1 "},
				"category":  {"Food & Dining"},
				"startDate": {"2025-06-01"},
				"endDate":   {"2025-06-30"},
			},
		},
		{name: "negative limit", query: url.Values{"limit": {"-1"}}, wantErr: true},
		{name: "non numeric offset", query: url.Values{"offset": {"ten"}}, wantErr: true},
		{name: "bad start date", query: url.Values{"startDate": {"06/01/2025"}}, wantErr: true},
		{name: "bad end date", query: url.Values{"endDate": {"2025-13-01"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseTransactionFilter("u1", tt.query)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.UserID != "u1" {
				t.Fatalf("UserID = %q", f.UserID)
			}
		})
	}

	f, err := ParseTransactionFilter("u1", url.Values{
		"limit":     {"25"},
		"offset":    {"50"},
		"accountId": {" acc-1 "},
		"startDate": {"2025-06-01"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if f.Limit != 25 || f.Offset != 50 || f.AccountID != "acc-1" {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f.From.String() != "2025-06-01" || !f.To.IsZero() {
		t.Fatalf("unexpected range %s..%s", f.From, f.To)
	}
}

func TestUserIDFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"present", "user-123", "user-123", true},
		{"trimmed", "  user-123 ", "user-123", true},
		{"missing", "", "", false},
		{"only control characters", "\x00\x01", "", false},
		{"too long", strings.Repeat("u", 129), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(UserIDHeader, tt.header)
			}
			got, err := userIDFromRequest(r)
			if (err == nil) != tt.ok || got != tt.want {
				t.Fatalf("userIDFromRequest() = %q, %v", got, err)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"object", `{"name":"x"}`, "x", false},
		{"empty body", ``, "", false},
		{"malformed", `{"name":`, "", true},
		{"two objects", `{"name":"a"}{"name":"b"}`, "", true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(httptest.NewRecorder(), r, &p)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || p.Name != tt.want {
				t.Fatalf("decodeJSON() = %+v, %v", p, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	cases := map[string]string{
		"  hello  ":       "hello",
		"a\x00b":          "ab",
		"line1\nline2":    "line1\nline2",
		"tab\tkept":       "tab\tkept",
		"\x1b[31mred\x1b": "[31mred",
	}
	for in, want := range cases {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
