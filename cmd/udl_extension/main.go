package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/udl/extension/internal/logging"
	intOtel "github.com/udl/extension/internal/otel"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.0.1"
	BuildDate               string = "unknown"

	ExtensionName string = "udl_extension"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
