package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Swapped by tests.
var osStdout io.Writer = os.Stdout

// Options selects where a SlogManager sends records.
type Options struct {
	// File receives text records. Stdout is used when nil.
	File io.Writer
	// Level is one of debug, info, warn or error. Anything else means info.
	Level string
	// Provider, when set, forwards every record to OpenTelemetry.
	Provider *sdklog.LoggerProvider
	// Extra writers (Graylog) receive JSON records.
	Extra []io.Writer
	// Context adds attributes evaluated per record.
	Context ContextProvider
}

// SlogManager owns the process-wide slog.Logger.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup replaces the logger. Calling it again drops the previous outputs.
func (m *SlogManager) Setup(opts Options) {
	hopts := &slog.HandlerOptions{Level: parseLevel(opts.Level), ReplaceAttr: utcTime}

	out := opts.File
	if out == nil {
		out = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(out, hopts)}
	for _, w := range opts.Extra {
		if w != nil {
			handlers = append(handlers, slog.NewJSONHandler(w, hopts))
		}
	}
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler("udl-extension", otelslog.WithLoggerProvider(opts.Provider)))
	}

	m.logProvider = opts.Provider
	m.logger = slog.New(WithContext(Fanout(handlers...), opts.Context))
	m.logger.Info("Logging initialized", "level", hopts.Level.Level().String())
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
