package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func TestSealOpen(t *testing.T) {
	s, err := NewFromBase64(testKey)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := s.Seal("access-sandbox-123")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sealed, "access-sandbox") {
		t.Fatal("sealed value leaks plaintext")
	}

	again, _ := s.Seal("access-sandbox-123")
	if again == sealed {
		t.Fatal("nonces must differ between seals")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "access-sandbox-123" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewFromBase64(testKey)
	other, _ := NewEphemeral()

	sealed, _ := s.Seal("token")
	if _, err := other.Open(sealed); err == nil {
		t.Fatal("expected failure with a different key")
	}
	if _, err := s.Open("not base64!"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := s.Open("c2hvcnQ="); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for short input, got %v", err)
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := NewFromBase64("%%%"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
