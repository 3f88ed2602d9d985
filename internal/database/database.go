// Package database opens the flight log databases and prepares their schema.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/model"
)

// DumpExt is the file extension of SQLite dumps.
const DumpExt = ".db"

var ErrNoDumpPath = errors.New("sqlite dump path not set")

// The in-memory database is rebuilt from the dump, so durability is traded
// for write speed.
var sqlitePragmas = []string{
	"PRAGMA user_version = 1",
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -32000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// PostgresDSN builds a keyword/value connection string. SSL is off unless
// cfg asks for it.
func PostgresDSN(cfg config.PostgresConfig) string {
	ssl := cfg.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, ssl)
}

// OpenPostgres connects and pings the shared flight log database.
func OpenPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), gormConfig(1000, false))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

// OpenSqlite opens the database file at path, creating its directory. An
// empty path gives a private in-memory database.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if path == "" {
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	} else if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(500, true))
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func ensureDir(file string) error {
	dir := filepath.Dir(file)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// Migrate creates or updates the flight log tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate flight log schema: %w", err)
	}
	return nil
}

// Dump snapshots db into a SQLite file at path with VACUUM INTO. An
// earlier dump at path is replaced.
func Dump(db *gorm.DB, path string) error {
	if path == "" {
		return ErrNoDumpPath
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace dump: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("dump to %s: %w", path, err)
	}
	return nil
}

// ListDumps returns the SQLite dumps directly inside dir, sorted by name.
func ListDumps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == DumpExt {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}
