package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/udl/extension/internal/dispatcher"

// instruments are the block metrics. They come from the global meter, which
// is a no-op until an SDK provider is installed.
type instruments struct {
	pending   metric.Int64ObservableGauge
	completed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments(pending func() map[string]int) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	ins := &instruments{}
	var err error

	if ins.pending, err = m.Int64ObservableGauge("udl.blocks.pending",
		metric.WithDescription("Command blocks waiting in an opcode queue")); err != nil {
		return nil, fmt.Errorf("pending gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for op, n := range pending() {
			o.ObserveInt64(ins.pending, int64(n), metric.WithAttributes(attribute.String("opcode", op)))
		}
		return nil
	}, ins.pending); err != nil {
		return nil, fmt.Errorf("pending callback: %w", err)
	}
	if ins.completed, err = m.Int64Counter("udl.blocks.completed",
		metric.WithDescription("Blocks that ran without error")); err != nil {
		return nil, fmt.Errorf("completed counter: %w", err)
	}
	if ins.failed, err = m.Int64Counter("udl.blocks.failed",
		metric.WithDescription("Blocks whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("failed counter: %w", err)
	}
	if ins.dropped, err = m.Int64Counter("udl.blocks.dropped",
		metric.WithDescription("Command blocks rejected because their queue was full")); err != nil {
		return nil, fmt.Errorf("dropped counter: %w", err)
	}
	if ins.duration, err = m.Float64Histogram("udl.blocks.duration",
		metric.WithDescription("Handler run time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	return ins, nil
}

func (ins *instruments) ran(opcode string, took time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("opcode", opcode))
	ins.duration.Record(ctx, took.Seconds(), attrs)
	if err != nil {
		ins.failed.Add(ctx, 1, attrs)
		return
	}
	ins.completed.Add(ctx, 1, attrs)
}

func (ins *instruments) drop(opcode string) {
	ins.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("opcode", opcode)))
}
