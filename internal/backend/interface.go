package backend

import (
	"context"

	"finlens/internal/crypto"
	"finlens/internal/ports"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready persistence backend plus the sealer used for
// access tokens stored in it.
type BackendResult struct {
	Store   ports.Store
	Sealer  *crypto.Sealer
	Cleanup CleanupFunc
}

// Factory creates storage backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// TokenEncryptionKey is base64 of 32 bytes. Optional for memory.
	TokenEncryptionKey string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Persistent reports whether data outlives the process.
func (bt BackendType) Persistent() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}
