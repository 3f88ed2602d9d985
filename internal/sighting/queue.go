// Package sighting turns a stream of reported AR marker ids into
// level-triggered hat block checks.
package sighting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/udl/extension/internal/sighting"

// Marker ids printed on the physical AR cards.
const (
	MinMarkerID = 1
	MaxMarkerID = 10
)

// MarkerID identifies a physical AR marker.
type MarkerID int

// Valid reports whether id is one of the printed markers.
func (id MarkerID) Valid() bool {
	return id >= MinMarkerID && id <= MaxMarkerID
}

// Coerce reads a block value as a marker id the way the editor compares
// values: surrounding space is ignored and "3", "3.0" and 3 all name marker
// 3. Anything that is not a whole number in range is marker 0.
func Coerce(v any) MarkerID {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) || f < 0 || f > MaxMarkerID {
		return 0
	}
	return MarkerID(f)
}

// ClaimChecker answers whether some configured hat block still waits on id.
type ClaimChecker interface {
	Claimed(id MarkerID) bool
}

// ClaimFunc adapts a plain function to ClaimChecker.
type ClaimFunc func(id MarkerID) bool

// Claimed calls f.
func (f ClaimFunc) Claimed(id MarkerID) bool {
	return f(id)
}

// Queue is a FIFO of marker sightings shared by every hat block of one
// camera extension instance.
type Queue struct {
	mu     sync.Mutex
	items  []MarkerID
	claims ClaimChecker

	pushed   metric.Int64Counter
	consumed metric.Int64Counter
	requeued metric.Int64Counter
	dropped  metric.Int64Counter
}

// New creates an empty queue that asks claims before requeueing.
// A nil claims means nothing is ever claimed.
func New(claims ClaimChecker) *Queue {
	if claims == nil {
		claims = ClaimFunc(func(MarkerID) bool { return false })
	}
	q := &Queue{
		items:  make([]MarkerID, 0),
		claims: claims,
	}

	m := otel.Meter(instrumentationName)
	// the global meter never fails instrument creation; errors only come
	// from invalid names, which these are not
	q.pushed, _ = m.Int64Counter("sighting.pushed", metric.WithDescription("Marker sightings reported"))
	q.consumed, _ = m.Int64Counter("sighting.consumed", metric.WithDescription("Sightings consumed by a hat block"))
	q.requeued, _ = m.Int64Counter("sighting.requeued", metric.WithDescription("Sightings returned to the queue for another block"))
	q.dropped, _ = m.Int64Counter("sighting.dropped", metric.WithDescription("Sightings no block claimed"))
	return q
}

// Push appends id to the tail.
func (q *Queue) Push(id MarkerID) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()
	q.pushed.Add(context.Background(), 1)
}

// PushRaw coerces a value reported by the detector and queues it.
// Values that are not a marker number are dropped and returned as an error.
func (q *Queue) PushRaw(v any) (MarkerID, error) {
	switch v.(type) {
	case nil, bool:
		return 0, fmt.Errorf("marker id %v is not a number", v)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("marker id %v is not a number", v)
	}
	id := MarkerID(f)
	if !id.Valid() {
		return 0, fmt.Errorf("marker id %d out of range %d..%d", int(id), MinMarkerID, MaxMarkerID)
	}
	q.Push(id)
	return id, nil
}

// CheckAndConsume reports whether a sighting of id is waiting and removes it.
// Entries inspected before the match are requeued when another block claims
// them and dropped otherwise. Entries after the match are left alone.
func (q *Queue) CheckAndConsume(id MarkerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return false
	}

	ctx := context.Background()
	for i := 0; i < n; i++ {
		head := q.items[0]
		q.items = q.items[1:]

		if head == id {
			q.consumed.Add(ctx, 1)
			return true
		}
		if q.claims.Claimed(head) {
			q.items = append(q.items, head)
			q.requeued.Add(ctx, 1)
			continue
		}
		q.dropped.Add(ctx, 1)
	}
	return false
}

// Len returns the number of waiting sightings.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the waiting sightings, head first.
func (q *Queue) Snapshot() []MarkerID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]MarkerID, len(q.items))
	copy(out, q.items)
	return out
}

// Clear removes all sightings.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
