package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes that change while the process runs,
// such as the session id or whether the bridge is connected.
type ContextProvider func() []slog.Attr

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

// Fanout combines handlers; nil entries are skipped.
func Fanout(handlers ...slog.Handler) slog.Handler {
	f := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	return f
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to all handlers even when some of them fail.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// dynamic appends the provider's attributes to every record at log time.
type dynamic struct {
	next     slog.Handler
	provider ContextProvider
}

// WithContext wraps h so each record carries provider's current attributes.
// A nil provider returns h unchanged.
func WithContext(h slog.Handler, provider ContextProvider) slog.Handler {
	if provider == nil {
		return h
	}
	return dynamic{next: h, provider: provider}
}

func (d dynamic) Enabled(ctx context.Context, level slog.Level) bool {
	return d.next.Enabled(ctx, level)
}

func (d dynamic) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(d.provider()...)
	return d.next.Handle(ctx, r)
}

func (d dynamic) WithAttrs(attrs []slog.Attr) slog.Handler {
	return dynamic{next: d.next.WithAttrs(attrs), provider: d.provider}
}

func (d dynamic) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	return dynamic{next: d.next.WithGroup(name), provider: d.provider}
}
