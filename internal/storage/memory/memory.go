// Package memory keeps the flight log in memory and exports it as JSON when
// the session ends.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/pkg/core"
)

// ErrNoSession is returned by EndSession when no session was started.
var ErrNoSession = errors.New("memory storage: no session")

// Backend stores flight data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	endTime time.Time

	commands  []core.CommandRecord
	telemetry []core.TelemetrySample
	sightings []core.SightingRecord

	lastExportPath     string
	lastExportMetadata core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := *s
	b.session = &session
	b.endTime = time.Time{}

	// Reset all collections
	b.commands = nil
	b.telemetry = nil
	b.sightings = nil

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.endTime = time.Now()
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// RecordCommand records a forwarded command
func (b *Backend) RecordCommand(rec core.CommandRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	b.commands = append(b.commands, rec)
	return nil
}

// RecordTelemetry records an applied telemetry sample
func (b *Backend) RecordTelemetry(sample core.TelemetrySample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	b.telemetry = append(b.telemetry, sample)
	return nil
}

// RecordSighting records a marker sighting
func (b *Backend) RecordSighting(rec core.SightingRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	b.sightings = append(b.sightings, rec)
	return nil
}

// Counts reports how many records the running session holds.
func (b *Backend) Counts() (commands, telemetry, sightings int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.commands), len(b.telemetry), len(b.sightings)
}

// GetExportedFilePath returns the path of the last export, or "".
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}
