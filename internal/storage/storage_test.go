package storage_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/storage"
	gormstorage "github.com/udl/extension/internal/storage/gorm"
	"github.com/udl/extension/internal/storage/memory"
	"github.com/udl/extension/internal/storage/postgres"
	sqlitestorage "github.com/udl/extension/internal/storage/sqlite"
	"github.com/udl/extension/internal/storage/websocket"
	"github.com/udl/extension/pkg/core"
)

// Compile-time interface checks.
var (
	_ storage.Backend    = (*gormstorage.Backend)(nil)
	_ storage.Backend    = (*postgres.Backend)(nil)
	_ storage.Backend    = (*sqlitestorage.Backend)(nil)
	_ storage.Backend    = (*websocket.Backend)(nil)
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Uploadable = (*memory.Backend)(nil)
	_ storage.Uploadable = (*sqlitestorage.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := storage.NewBackend(config.StorageConfig{Type: "memory", Memory: config.MemoryConfig{OutputDir: dir}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)
	_, ok := b.(storage.Uploadable)
	assert.True(t, ok)

	b, err = storage.NewBackend(config.StorageConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "udl.db")}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlitestorage.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "stream", Stream: config.StreamConfig{URL: "ws://localhost:1"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &websocket.Backend{}, b)

	_, err = storage.NewBackend(config.StorageConfig{Type: "mongo"}, nil)
	assert.ErrorContains(t, err, "unknown storage type")
}

type failingBackend struct {
	storage.Backend
	samples []core.TelemetrySample
	err     error
}

func (f *failingBackend) RecordTelemetry(s core.TelemetrySample) error {
	f.samples = append(f.samples, s)
	return f.err
}

func TestTelemetrySink(t *testing.T) {
	fb := &failingBackend{err: errors.New("disk full")}
	sink := storage.TelemetrySink{Backend: fb}

	sink.RecordTelemetry(core.TelemetrySample{Field: core.FieldHeight, Value: 10})
	fb.err = nil
	sink.RecordTelemetry(core.TelemetrySample{Field: core.FieldHeight, Value: 20})

	assert.Len(t, fb.samples, 2)
}
