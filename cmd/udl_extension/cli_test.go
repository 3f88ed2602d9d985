package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/database"
	"github.com/udl/extension/internal/extension"
	gormstorage "github.com/udl/extension/internal/storage/gorm"
	"github.com/udl/extension/internal/storage/memory"
	"github.com/udl/extension/pkg/core"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfoCommand(t *testing.T) {
	out, err := runCmd(t, "info")
	require.NoError(t, err)

	var infos []core.ExtensionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, extension.TelloID, infos[0].ID)
	assert.Equal(t, extension.CameraID, infos[1].ID)
	assert.NotEmpty(t, infos[0].Blocks)
}

func TestVersionFlag(t *testing.T) {
	out, err := runCmd(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, CurrentExtensionVersion)
}

// writeFlightDB records one finished session into a SQLite file.
func writeFlightDB(t *testing.T) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flights.db")
	db, err := database.OpenSqlite(path)
	require.NoError(t, err)

	b := gormstorage.New(gormstorage.Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	id := uuid.NewString()
	require.NoError(t, b.StartSession(&core.Session{ID: id, StartTime: time.Now(), BridgeType: "tello"}))
	require.NoError(t, b.RecordCommand(core.CommandRecord{Time: time.Now(), Opcode: "udltello_takeoff", Status: true}))
	require.NoError(t, b.RecordSighting(core.SightingRecord{Time: time.Now(), MarkerID: 6}))
	require.NoError(t, b.EndSession())
	require.NoError(t, b.Close())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path, id
}

func TestExportCommand_List(t *testing.T) {
	path, id := writeFlightDB(t)

	out, err := runCmd(t, "export", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "tello")
}

func TestExportCommand_Session(t *testing.T) {
	path, id := writeFlightDB(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := runCmd(t, "export", "--db", path, "--session", id, "-o", outDir, "--compress")
	require.NoError(t, err)

	exported := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(exported, ".json.zst"))

	log, err := memory.ReadExport(exported)
	require.NoError(t, err)
	assert.Equal(t, id, log.SessionID)
	require.Len(t, log.Commands, 1)
	assert.Equal(t, "udltello_takeoff", log.Commands[0].Opcode)
	require.Len(t, log.Sightings, 1)
	assert.Equal(t, 6, log.Sightings[0].MarkerID)
}

func TestExportCommand_DumpDirectory(t *testing.T) {
	first, firstID := writeFlightDB(t)
	second, secondID := writeFlightDB(t)
	dir := t.TempDir()
	for i, src := range []string{first, second} {
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("session%d.db", i)), data, 0644))
	}

	out, err := runCmd(t, "export", "--db", dir)
	require.NoError(t, err)
	assert.Contains(t, out, firstID)
	assert.Contains(t, out, secondID)
	assert.Contains(t, out, "session1.db")

	out, err = runCmd(t, "export", "--db", dir, "--session", secondID, "-o", t.TempDir())
	require.NoError(t, err)
	log, err := memory.ReadExport(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, secondID, log.SessionID)

	_, err = runCmd(t, "export", "--db", dir, "--session", "missing")
	assert.ErrorIs(t, err, gormstorage.ErrSessionNotFound)
}

func TestExportCommand_MissingDB(t *testing.T) {
	_, err := runCmd(t, "export", "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewBridgeClient_UnknownType(t *testing.T) {
	_, err := newBridgeClient(config.BridgeConfig{Type: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown bridge type")
}

func TestStartRecording_FallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{
		Type:     "postgres",
		Postgres: config.PostgresConfig{Host: "127.0.0.1", Port: "1", Database: "udl"},
		Memory:   config.MemoryConfig{OutputDir: dir},
	}
	session := &core.Session{ID: uuid.NewString(), StartTime: time.Now()}

	backend := startRecording(cfg, session)
	mem, ok := backend.(*memory.Backend)
	require.True(t, ok)
	require.NoError(t, backend.RecordCommand(core.CommandRecord{Opcode: "udltello_land"}))

	finishRecording(backend, config.APIConfig{})
	require.NotEmpty(t, mem.GetExportedFilePath())
	_, err := os.Stat(mem.GetExportedFilePath())
	assert.NoError(t, err)
}

func TestFinishRecording_Uploads(t *testing.T) {
	var uploads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/flights/add" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if r.FormValue("secret") == "key" {
			uploads.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.StorageConfig{Type: "memory", Memory: config.MemoryConfig{OutputDir: t.TempDir()}}
	backend := startRecording(cfg, &core.Session{ID: uuid.NewString(), StartTime: time.Now()})

	finishRecording(backend, config.APIConfig{ServerURL: srv.URL, APIKey: "key", UploadOnEnd: true})
	assert.EqualValues(t, 1, uploads.Load())
}
