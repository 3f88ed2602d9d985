// Package postgres implements the storage.Backend interface on a shared
// PostgreSQL flight log database through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/database"
	gormstorage "github.com/udl/extension/internal/storage/gorm"
)

// Backend is the GORM backend bound to a PostgreSQL connection.
type Backend struct {
	*gormstorage.Backend
}

// New connects to PostgreSQL and wraps the connection in a GORM backend.
// The schema is migrated by Init.
func New(cfg config.PostgresConfig, logger *slog.Logger) (*Backend, error) {
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
	}, nil
}
