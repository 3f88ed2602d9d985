package storage

import (
	"fmt"
	"log/slog"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/storage/memory"
	"github.com/udl/extension/internal/storage/postgres"
	sqlitestorage "github.com/udl/extension/internal/storage/sqlite"
	"github.com/udl/extension/internal/storage/websocket"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, logger)
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.Path,
		}, logger)
	case "stream":
		return websocket.New(websocket.Config{URL: cfg.Stream.URL, Secret: cfg.Stream.Secret}, logger), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
