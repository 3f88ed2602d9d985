package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/udl/extension/internal/api"
	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/internal/bridge/tello"
	wsbridge "github.com/udl/extension/internal/bridge/websocket"
	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/dispatcher"
	"github.com/udl/extension/internal/extension"
	"github.com/udl/extension/internal/influx"
	"github.com/udl/extension/internal/logging"
	"github.com/udl/extension/internal/monitor"
	"github.com/udl/extension/internal/program"
	"github.com/udl/extension/internal/sighting"
	"github.com/udl/extension/internal/storage"
	"github.com/udl/extension/internal/telemetry"
	"github.com/udl/extension/pkg/core"
	"github.com/udl/extension/pkg/hostlink"
)

// bridgeClient is a bridge.Client that knows whether its link is up.
type bridgeClient interface {
	bridge.Client
	Connected() bool
}

// queueReporter is implemented by the database backends.
type queueReporter interface {
	QueueLengths() (commands, telemetry, sightings int)
}

func runServe(ctx context.Context) error {
	logsDir := config.GetLogConfig().Dir
	bridgeCfg := config.GetBridgeConfig()
	session := &core.Session{
		ID:               uuid.NewString(),
		StartTime:        SessionStartTime,
		BridgeType:       bridgeCfg.Type,
		ExtensionVersion: CurrentExtensionVersion,
	}

	var client bridgeClient
	closeLogs := setupLogging(logsDir, func() []slog.Attr {
		attrs := []slog.Attr{slog.String("session", session.ID)}
		if client != nil {
			attrs = append(attrs, slog.Bool("bridgeConnected", client.Connected()))
		}
		return attrs
	})
	defer closeLogs()
	Logger.Info("Starting udl-extension", "version", CurrentExtensionVersion, "buildDate", BuildDate, "bridge", bridgeCfg.Type)

	client, err := newBridgeClient(bridgeCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	// flight log
	apiCfg := config.GetAPIConfig()
	backend := startRecording(config.GetStorageConfig(), session)
	defer finishRecording(backend, apiCfg)
	go checkServerStatus(ctx, api.New(apiCfg.ServerURL, apiCfg.APIKey))

	// telemetry
	telCfg := config.GetTelemetryConfig()
	cache := telemetry.NewCache()
	poller := telemetry.NewPoller(client, cache, telCfg.Interval, Logger)
	poller.AddSink(storage.TelemetrySink{Backend: backend, Logger: Logger})

	influxManager := influx.NewManager(
		config.GetInfluxConfig(),
		filepath.Join(logsDir, fmt.Sprintf("influx_backup_%s.lp.gz", SessionStartTime.Format("20060102_150405"))),
		dispatcherZerolog(),
	)
	if err := influxManager.Connect(ctx); err == nil {
		influxManager.SetSession(session.ID)
		poller.AddSink(influxManager)
	} else if !errors.Is(err, influx.ErrDisabled) {
		Logger.Error("Failed to set up InfluxDB", "error", err)
	}
	defer influxManager.Close()

	// program graph and sightings
	workspace := program.NewWorkspace()
	sightings := sighting.New(program.MarkerClaims{Graph: workspace, FieldName: extension.MarkerMenu})

	d, err := dispatcher.New(logging.NewDispatcherLogger(dispatcherZerolog()))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	hostCfg := config.GetHostConfig()
	server := hostlink.NewServer(hostlink.Config{
		Listen:         hostCfg.Listen,
		Path:           hostCfg.Path,
		AllowedOrigins: hostCfg.AllowedOrigins,
	}, d, workspace, Logger)

	telloExt := extension.NewTello(client, cache, bridge.Unit(bridgeCfg.Unit), server, Logger)
	telloExt.SetRecorder(backend)
	cameraExt := extension.NewCamera(client, sightings, telCfg.DetectInterval, server, Logger)
	cameraExt.SetRecorder(backend)

	extension.RegisterHandlers(ctx, d, telloExt, cameraExt, hostCfg.CommandBuffer)
	server.SetExtensions(extension.Infos(telloExt, cameraExt))

	statusDeps := monitor.Dependencies{
		Logger:          Logger,
		StatusPath:      filepath.Join(logsDir, "status.json"),
		Telemetry:       cache,
		Sightings:       sightings,
		SessionID:       func() string { return session.ID },
		BridgeConnected: client.Connected,
		Editors:         server.Clients,
	}
	if qr, ok := backend.(queueReporter); ok {
		statusDeps.WriteQueues = qr.QueueLengths
	}
	status := monitor.NewService(statusDeps)
	if err := status.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}
	defer status.Stop()

	poller.Start(ctx)
	defer poller.Stop()
	defer cameraExt.DetectEnd()

	err = server.ListenAndServe(ctx)
	Logger.Info("Shutting down", "session", session.ID)
	return err
}

func newBridgeClient(cfg config.BridgeConfig) (bridgeClient, error) {
	switch cfg.Type {
	case "tello":
		c := tello.New(tello.NewGobotDrone(cfg.TelloPort), tello.Config{
			Port:         cfg.TelloPort,
			SpeedPercent: cfg.TelloSpeed,
		}, Logger)
		if err := c.Start(); err != nil {
			Logger.Warn("Tello not reachable yet", "port", cfg.TelloPort, "error", err)
		}
		return c, nil
	case "websocket", "":
		c := wsbridge.New(wsbridge.Config{URL: cfg.URL}, Logger)
		if err := c.Connect(); err != nil {
			Logger.Warn("Bridge host not reachable", "url", cfg.URL, "error", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown bridge type: %s", cfg.Type)
	}
}

// checkServerStatus logs whether the flight log server answers.
func checkServerStatus(ctx context.Context, client *api.Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Info("Flight log server is offline", "error", err)
		return
	}
	Logger.Info("Flight log server is online")
}
