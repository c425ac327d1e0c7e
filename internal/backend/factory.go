package backend

import (
	"context"
	"fmt"

	"finlens/internal/crypto"
	"finlens/internal/log"
	"finlens/internal/storage"
	"finlens/internal/storage/memory"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sealer, err := f.sealer(config)
	if err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Store: memory.New(), Sealer: sealer, Cleanup: func() error { return nil }}, nil

	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(ctx, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &BackendResult{Store: store, Sealer: sealer, Cleanup: store.Close}, nil

	case PostgresBackend:
		store, err := storage.NewPostgresStore(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return &BackendResult{Store: store, Sealer: sealer, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) sealer(config Config) (*crypto.Sealer, error) {
	if config.TokenEncryptionKey != "" {
		s, err := crypto.NewFromBase64(config.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("token encryption key: %w", err)
		}
		return s, nil
	}
	// Memory data dies with the process, so a per-process key is enough.
	f.logger.Warn("No token encryption key configured, using an ephemeral key")
	return crypto.NewEphemeral()
}
