// Package websocket streams the flight log to a live dashboard.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/udl/extension/pkg/core"
	"github.com/udl/extension/pkg/streaming"
)

type Config struct {
	URL    string
	Secret string
}

// Backend sends every record to the dashboard as it happens. Session start
// and end wait for the server's ack; records do not. Nothing is kept
// locally, so there is no export to upload.
type Backend struct {
	cfg    Config
	stream *stream
}

func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, stream: newStream(logger.With("component", "stream"))}
}

func (b *Backend) Init() error {
	return b.stream.open(b.cfg.URL, b.cfg.Secret)
}

func (b *Backend) Close() error {
	return b.stream.close()
}

func envelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
}

// StartSession announces s and remembers the announcement so a reconnect
// can repeat it.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := envelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.stream.setGreeting(data)
	return b.stream.request(data, streaming.TypeStartSession, ackTimeout)
}

func (b *Backend) EndSession() error {
	data, err := envelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	defer b.stream.setGreeting(nil)
	return b.stream.request(data, streaming.TypeEndSession, ackTimeout)
}

func (b *Backend) emit(msgType string, payload any) error {
	data, err := envelope(msgType, payload)
	if err != nil {
		return err
	}
	b.stream.enqueue(data)
	return nil
}

func (b *Backend) RecordCommand(rec core.CommandRecord) error {
	return b.emit(streaming.TypeCommand, rec)
}

func (b *Backend) RecordTelemetry(sample core.TelemetrySample) error {
	return b.emit(streaming.TypeTelemetry, sample)
}

func (b *Backend) RecordSighting(rec core.SightingRecord) error {
	return b.emit(streaming.TypeSighting, rec)
}
