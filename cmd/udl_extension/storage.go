package main

import (
	"context"
	"time"

	"github.com/udl/extension/internal/api"
	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/storage"
	"github.com/udl/extension/internal/storage/memory"
	"github.com/udl/extension/pkg/core"
)

const uploadTimeout = 2 * time.Minute

// startRecording opens the configured flight log and starts session in it.
// A backend that cannot be reached is replaced by the in-memory one so the
// editor keeps working.
func startRecording(storageCfg config.StorageConfig, session *core.Session) storage.Backend {
	backend, err := createStorageBackend(storageCfg)
	if err == nil {
		err = backend.Init()
	}
	if err != nil {
		Logger.Error("Failed to initialize storage backend, falling back to memory", "type", storageCfg.Type, "error", err)
		if backend != nil {
			_ = backend.Close()
		}
		backend = memory.New(storageCfg.Memory)
		_ = backend.Init()
	}

	if err := backend.StartSession(session); err != nil {
		Logger.Error("Failed to start flight session", "session", session.ID, "error", err)
	} else {
		Logger.Info("Flight session started", "session", session.ID, "bridge", session.BridgeType)
	}
	return backend
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		return nil, err
	}
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
	case "sqlite":
		Logger.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
	case "stream":
		Logger.Info("Stream storage backend initialized", "url", storageCfg.Stream.URL)
	default:
		Logger.Info("Memory storage backend initialized", "dir", storageCfg.Memory.OutputDir)
	}
	return backend, nil
}

// finishRecording ends the session, uploads the export when configured and
// closes the backend.
func finishRecording(backend storage.Backend, apiCfg config.APIConfig) {
	if err := backend.EndSession(); err != nil {
		Logger.Error("Failed to end flight session", "error", err)
	}

	if up, ok := backend.(storage.Uploadable); ok && apiCfg.UploadOnEnd {
		uploadFlightLog(up, api.New(apiCfg.ServerURL, apiCfg.APIKey))
	}

	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
}

func uploadFlightLog(up storage.Uploadable, client *api.Client) {
	path := up.GetExportedFilePath()
	if path == "" {
		Logger.Warn("No flight log export to upload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	start := time.Now()
	if err := client.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		Logger.Error("Failed to upload flight log", "path", path, "error", err)
		return
	}
	Logger.Info("Uploaded flight log", "path", path, "duration", time.Since(start))
}
