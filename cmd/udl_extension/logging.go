package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/logging"
	intOtel "github.com/udl/extension/internal/otel"
)

var (
	LogFilePath string
	LogFile     *os.File
)

// setupLogging opens the session log file and routes slog to it, to OTel
// and to Graylog as configured. The returned func flushes and closes
// everything.
func setupLogging(logsDir string, provider logging.ContextProvider) func() {
	var err error
	LogFile, LogFilePath, err = logging.OpenLogFile(logsDir, ExtensionName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var w io.Writer
		if LogFile != nil {
			w = LogFile
		}
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    w,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var extra []io.Writer
	var graylog io.WriteCloser
	if gl := config.GetGraylogConfig(); gl.Enabled {
		graylog, err = logging.NewGraylogWriter(gl.Address, gl.Facility)
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err)
		} else {
			extra = append(extra, graylog)
		}
	}

	opts := logging.Options{
		Level:   config.GetLogConfig().Level,
		Extra:   extra,
		Context: provider,
	}
	// a nil *os.File must not reach Options as a non-nil io.Writer
	if LogFile != nil {
		opts.File = LogFile
	}
	if OTelProvider != nil {
		opts.Provider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFilePath)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := SlogManager.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush logs", "error", err)
		}
		if OTelProvider != nil {
			if err := OTelProvider.Shutdown(ctx); err != nil {
				Logger.Warn("Failed to shut down OTel", "error", err)
			}
		}
		if graylog != nil {
			_ = graylog.Close()
		}
		if LogFile != nil {
			_ = LogFile.Close()
		}
	}
}

// dispatcherZerolog returns the zerolog logger used by the dispatcher and
// the influx writer, writing to the session log file.
func dispatcherZerolog() zerolog.Logger {
	var w io.Writer = os.Stderr
	if LogFile != nil {
		w = LogFile
	}
	return logging.NewZerolog(w, config.GetLogConfig().Level, LogFile != nil)
}
