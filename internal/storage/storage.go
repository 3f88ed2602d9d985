// Package storage defines the flight log backends. A flight log holds one
// session's forwarded commands, applied telemetry samples and marker
// sightings.
package storage

import (
	"log/slog"

	"github.com/udl/extension/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordCommand(rec core.CommandRecord) error
	RecordTelemetry(sample core.TelemetrySample) error
	RecordSighting(rec core.SightingRecord) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the flight log server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// TelemetrySink feeds applied telemetry samples into a backend. Write
// errors are logged, never returned to the poller.
type TelemetrySink struct {
	Backend Backend
	Logger  *slog.Logger
}

// RecordTelemetry implements telemetry.Sink.
func (s TelemetrySink) RecordTelemetry(sample core.TelemetrySample) {
	if err := s.Backend.RecordTelemetry(sample); err != nil && s.Logger != nil {
		s.Logger.Warn("failed to record telemetry", "field", sample.Field, "error", err)
	}
}
