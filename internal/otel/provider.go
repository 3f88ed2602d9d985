// Package otel exports the extension's slog records through OpenTelemetry.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var ErrNoExporter = errors.New("otel enabled without a log writer or endpoint")

type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	// LogWriter receives pretty-printed OTel records, usually the session log.
	LogWriter io.Writer
	// Endpoint is an OTLP/HTTP collector (host:port). Empty skips it.
	Endpoint string
	Insecure bool
}

// Provider owns the log pipeline. The zero value is disabled.
type Provider struct {
	logs *sdklog.LoggerProvider
}

// New builds a batch processor per configured exporter. A disabled config
// returns a Provider whose LoggerProvider is nil.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	ctx := context.Background()

	exporters, err := logExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))))
	}
	return &Provider{logs: sdklog.NewLoggerProvider(opts...)}, nil
}

func logExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("otel file exporter: %w", err)
		}
		out = append(out, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otel otlp exporter %s: %w", cfg.Endpoint, err)
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, ErrNoExporter
	}
	return out, nil
}

// LoggerProvider is nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

func (p *Provider) Enabled() bool {
	return p.logs != nil
}

// Shutdown flushes pending records and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel shutdown: %w", err)
	}
	return nil
}
