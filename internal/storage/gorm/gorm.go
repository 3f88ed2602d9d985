// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/udl/extension/internal/database"
	"github.com/udl/extension/internal/model"
	"github.com/udl/extension/internal/model/convert"
	"github.com/udl/extension/internal/queue"
	"github.com/udl/extension/pkg/core"
)

// DefaultFlushInterval is how often queued records are written.
const DefaultFlushInterval = 2 * time.Second

// queueLimit caps each write queue while the database is unreachable.
const queueLimit = 100_000

// ErrNoDatabase is returned by Init when no connection was injected.
var ErrNoDatabase = errors.New("gorm storage: no database")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Commands  *queue.Queue[model.Command]
	Telemetry *queue.Queue[model.TelemetrySample]
	Sightings *queue.Queue[model.Sighting]
}

func newQueues() *queues {
	return &queues{
		Commands:  queue.New[model.Command](queueLimit),
		Telemetry: queue.New[model.TelemetrySample](queueLimit),
		Sightings: queue.New[model.Sighting](queueLimit),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	mu        sync.Mutex
	sessionID string

	flushMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}

	b.deps.Logger.Info("Migrating flight log schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
		if b.deps.DB != nil {
			err = b.Flush()
		}
	})
	return err
}

// StartSession inserts the session row synchronously so queued records
// always have a parent.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.mu.Lock()
	b.sessionID = row.ID
	b.mu.Unlock()
	return nil
}

// EndSession writes the queues and stamps the session's end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	id := b.sessionID
	b.sessionID = ""
	b.mu.Unlock()
	if id == "" {
		return nil
	}

	if err := b.Flush(); err != nil {
		return err
	}
	end := time.Now()
	if err := b.deps.DB.Model(&model.FlightSession{}).Where("id = ?", id).Update("end_time", end).Error; err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

func (b *Backend) currentSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// RecordCommand converts and queues a command. Records outside a session
// are dropped.
func (b *Backend) RecordCommand(rec core.CommandRecord) error {
	id := b.currentSession()
	if id == "" {
		return nil
	}
	row := convert.CoreToCommand(rec)
	row.SessionID = id
	b.queues.Commands.Push(row)
	return nil
}

// RecordTelemetry converts and queues a telemetry sample.
func (b *Backend) RecordTelemetry(sample core.TelemetrySample) error {
	id := b.currentSession()
	if id == "" {
		return nil
	}
	row := convert.CoreToTelemetrySample(sample)
	row.SessionID = id
	b.queues.Telemetry.Push(row)
	return nil
}

// RecordSighting converts and queues a marker sighting.
func (b *Backend) RecordSighting(rec core.SightingRecord) error {
	id := b.currentSession()
	if id == "" {
		return nil
	}
	row := convert.CoreToSighting(rec)
	row.SessionID = id
	b.queues.Sightings.Push(row)
	return nil
}

// QueueLengths reports how many records wait for the next write.
func (b *Backend) QueueLengths() (commands, telemetry, sightings int) {
	return b.queues.Commands.Len(), b.queues.Telemetry.Len(), b.queues.Sightings.Len()
}

// Flush writes every queue now. Failed batches stay queued.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.queues.Commands, "commands"),
		writeQueue(b.deps.DB, b.queues.Telemetry, "telemetry samples"),
		writeQueue(b.deps.DB, b.queues.Sightings, "sightings"),
	)
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string) error {
	items := q.Drain()
	if len(items) == 0 {
		return nil
	}

	tx := db.Begin()
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		tx.Rollback()
		q.Restore(items)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Restore(items)
		return fmt.Errorf("error committing %s: %w", name, err)
	}
	return nil
}

// writeLoop periodically drains the queues into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("flight log write failed", "error", err,
					"droppedCommands", b.queues.Commands.Dropped(),
					"droppedTelemetry", b.queues.Telemetry.Dropped(),
					"droppedSightings", b.queues.Sightings.Dropped())
				continue
			}
			b.deps.Logger.Debug("flight log written", "duration", time.Since(start))
		}
	}
}
