// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/udl/extension/internal/database"
	"github.com/udl/extension/pkg/core"
	gormstorage "github.com/udl/extension/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	mu      sync.Mutex
	session core.Session
	meta    core.UploadMetadata
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:       db,
		cfg:      cfg,
		log:      logger.With("component", "sqlite"),
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// StartSession records the session and remembers it for the export metadata.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Backend.StartSession(s); err != nil {
		return err
	}
	b.mu.Lock()
	b.session = *s
	b.mu.Unlock()
	return nil
}

// EndSession closes the session and dumps the database right away.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	if err := b.Dump(); err != nil {
		return err
	}

	b.mu.Lock()
	b.meta = core.UploadMetadata{
		SessionID: b.session.ID,
		Duration:  time.Since(b.session.StartTime).Seconds(),
		Tag:       b.session.BridgeType,
	}
	b.mu.Unlock()
	return nil
}

// GetExportMetadata describes the last ended session.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if err = b.Backend.Close(); err != nil {
			return
		}
		err = b.Dump()
	})
	return err
}

// Dump writes the database to DumpPath. Without a path it does nothing.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	return database.Dump(b.db, b.cfg.DumpPath)
}

// GetExportedFilePath returns the dump location.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
