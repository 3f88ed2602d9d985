// Package dispatcher routes editor block invocations to their handlers.
package dispatcher

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrQueueFull     = errors.New("queue full")

	errRetired = errors.New("route replaced")
)

// Queued is the result of a command block accepted into its queue.
const Queued = "queued"

// Event is one block invocation from the editor. Opcode is the qualified
// "<extension>_<opcode>" name; Args holds the block's named arguments.
type Event struct {
	Opcode    string
	Args      map[string]any
	Timestamp time.Time
}

// Arg returns the named argument, or nil.
func (e Event) Arg(name string) any {
	return e.Args[name]
}

// HandlerFunc processes an event and returns the block's value.
type HandlerFunc func(Event) (any, error)

type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a registration.
type Option func(*route)

// Buffered runs the handler on its own goroutine behind a queue of size
// events. Dispatch returns Queued as soon as the event is accepted.
func Buffered(size int) Option {
	return func(r *route) { r.size = size }
}

// Blocking makes Dispatch wait for room in a full queue instead of failing.
func Blocking() Option {
	return func(r *route) { r.blocking = true }
}

// Logged logs each run at debug level and failures at error level.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

// Detached starts each queued event on its own goroutine, so a handler that
// never returns holds up only its own invocation. Events still start in
// queue order.
func Detached() Option {
	return func(r *route) { r.detached = true }
}

type route struct {
	opcode   string
	handler  HandlerFunc
	size     int
	blocking bool
	logged   bool
	detached bool

	mu      sync.RWMutex // guards sends on queue against retire
	retired bool
	queue   chan Event
	drained chan struct{} // closed when drain returns
}

// retire closes the queue of a replaced route. Events already queued still
// run; later ones see errRetired.
func (r *route) retire() {
	if r.queue == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.retired {
		r.retired = true
		close(r.queue)
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger
	ins    *instruments

	mu     sync.RWMutex
	routes map[string]*route
}

// New creates a Dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{logger: logger, routes: make(map[string]*route)}
	ins, err := newInstruments(d.pending)
	if err != nil {
		return nil, err
	}
	d.ins = ins
	return d, nil
}

// Register binds h to opcode, replacing any earlier handler.
func (d *Dispatcher) Register(opcode string, h HandlerFunc, opts ...Option) {
	r := &route{opcode: opcode, handler: h}
	for _, opt := range opts {
		opt(r)
	}
	if r.size > 0 {
		r.queue = make(chan Event, r.size)
		r.drained = make(chan struct{})
		go d.drain(r)
	}

	d.mu.Lock()
	old := d.routes[opcode]
	d.routes[opcode] = r
	d.mu.Unlock()

	if old != nil {
		old.retire()
	}
}

// Dispatch runs the handler for e.Opcode, or queues e for a buffered one.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for {
		d.mu.RLock()
		r, ok := d.routes[e.Opcode]
		d.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOpcode, e.Opcode)
		}

		if r.queue == nil {
			return d.run(r, e)
		}
		v, err := d.enqueue(r, e)
		if errors.Is(err, errRetired) {
			// replaced between lookup and send; use the new route
			continue
		}
		return v, err
	}
}

func (d *Dispatcher) enqueue(r *route, e Event) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.retired {
		return nil, errRetired
	}
	if r.blocking {
		r.queue <- e
		return Queued, nil
	}
	select {
	case r.queue <- e:
		return Queued, nil
	default:
		d.ins.drop(r.opcode)
		if r.logged {
			d.logger.Error("block dropped", "opcode", r.opcode, "queued", len(r.queue))
		}
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, r.opcode)
	}
}

func (d *Dispatcher) drain(r *route) {
	defer close(r.drained)
	for e := range r.queue {
		if r.detached {
			go d.runQueued(r, e)
			continue
		}
		d.runQueued(r, e)
	}
}

func (d *Dispatcher) runQueued(r *route, e Event) {
	if _, err := d.run(r, e); err != nil && !r.logged {
		d.logger.Error("buffered block failed", "opcode", r.opcode, "error", err)
	}
}

func (d *Dispatcher) run(r *route, e Event) (any, error) {
	if r.logged {
		d.logger.Debug("handling block", "opcode", r.opcode, "args", len(e.Args))
	}
	start := time.Now()
	v, err := r.handler(e)
	took := time.Since(start)
	d.ins.ran(r.opcode, took, err)

	switch {
	case !r.logged:
	case err != nil:
		d.logger.Error("block failed", "opcode", r.opcode, "duration", took, "error", err)
	default:
		d.logger.Debug("block complete", "opcode", r.opcode, "duration", took)
	}
	return v, err
}

func (d *Dispatcher) pending() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int)
	for op, r := range d.routes {
		if r.queue != nil {
			out[op] = len(r.queue)
		}
	}
	return out
}

// HasHandler reports whether opcode is registered.
func (d *Dispatcher) HasHandler(opcode string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[opcode]
	return ok
}

// Opcodes returns every registered opcode, sorted.
func (d *Dispatcher) Opcodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.routes))
}
