package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/pkg/core"
)

// DefaultInterval is the delay between poll rounds.
const DefaultInterval = 500 * time.Millisecond

// Sink receives every sample applied to the cache.
type Sink interface {
	RecordTelemetry(sample core.TelemetrySample)
}

// Poller refreshes a Cache from the bridge on a fixed delay. A round issues
// one request per field and re-arms without waiting for the answers, so a
// hung request only leaves its field stale.
type Poller struct {
	client   bridge.Client
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	sinks  []Sink
	cancel context.CancelFunc
	done   chan struct{}
	// requests tracks in-flight calls so Stop can release them.
	requests sync.WaitGroup
}

// NewPoller creates a stopped poller. A non-positive interval means
// DefaultInterval.
func NewPoller(client bridge.Client, cache *Cache, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:   client,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// AddSink registers s to receive applied samples.
func (p *Poller) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Start begins polling until ctx ends or Stop is called. Starting a running
// poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the loop and waits for in-flight requests to be released.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.requests.Wait()
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p.Poll(ctx)
		timer.Reset(p.interval)
	}
}

// Poll issues one request per field and returns without waiting.
func (p *Poller) Poll(ctx context.Context) {
	for _, field := range core.TelemetryFields {
		get, err := bridge.TelemetryGetter(p.client, field)
		if err != nil {
			p.logger.Error("no getter for telemetry field", "field", field, "error", err)
			continue
		}
		p.requests.Add(1)
		go func(field core.TelemetryField) {
			defer p.requests.Done()
			res, err := get(ctx)
			p.apply(field, res, err)
		}(field)
	}
}

func (p *Poller) apply(field core.TelemetryField, res core.Result, err error) {
	if err != nil {
		p.logger.Debug("telemetry request failed", "field", field, "error", err)
		return
	}
	v, err := ParseReading(res)
	if err != nil {
		p.logger.Debug("telemetry reading ignored", "field", field, "error", err)
		return
	}
	if err := p.cache.Set(field, v); err != nil {
		p.logger.Error("telemetry cache update failed", "field", field, "error", err)
		return
	}

	p.mu.Lock()
	sinks := p.sinks
	p.mu.Unlock()
	sample := core.TelemetrySample{Time: time.Now(), Field: field, Value: v}
	for _, s := range sinks {
		s.RecordTelemetry(sample)
	}
}
