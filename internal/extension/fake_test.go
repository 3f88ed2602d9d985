package extension

import (
	"context"
	"sync"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/pkg/core"
)

type call struct {
	method string
	x      float64
	unit   bridge.Unit
}

// fakeClient records every call and answers from results, defaulting to OK.
type fakeClient struct {
	mu      sync.Mutex
	calls   []call
	results map[string]core.Result
	errs    map[string]error
	// markers feeds ARMarkerDetected; empty means "nothing seen".
	markers []string
	// gate runs before each call is recorded and may block it.
	gate func(method string, x float64)
}

func newFakeClient() *fakeClient {
	return &fakeClient{results: map[string]core.Result{}, errs: map[string]error{}}
}

func (f *fakeClient) do(method string, x float64, unit bridge.Unit) (core.Result, error) {
	if f.gate != nil {
		f.gate(method, x)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method, x, unit})
	if err := f.errs[method]; err != nil {
		return core.Result{}, err
	}
	if res, ok := f.results[method]; ok {
		return res, nil
	}
	return core.OK(""), nil
}

func (f *fakeClient) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeClient) Takeoff(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodTakeoff, 0, 0)
}
func (f *fakeClient) Land(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodLand, 0, 0)
}
func (f *fakeClient) Up(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodUp, x, u)
}
func (f *fakeClient) Down(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodDown, x, u)
}
func (f *fakeClient) Left(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodLeft, x, u)
}
func (f *fakeClient) Right(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodRight, x, u)
}
func (f *fakeClient) Forward(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodForward, x, u)
}
func (f *fakeClient) Backward(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodBackward, x, u)
}
func (f *fakeClient) LeftTurn(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodLeftTurn, x, u)
}
func (f *fakeClient) RightTurn(ctx context.Context, x float64, u bridge.Unit) (core.Result, error) {
	return f.do(bridge.MethodRightTurn, x, u)
}
func (f *fakeClient) BatteryPercentage(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodBatteryPercentage, 0, 0)
}
func (f *fakeClient) Speed(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodSpeed, 0, 0)
}
func (f *fakeClient) VerticalSpeed(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodVerticalSpeed, 0, 0)
}
func (f *fakeClient) FlyTime(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodFlyTime, 0, 0)
}
func (f *fakeClient) Height(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodHeight, 0, 0)
}
func (f *fakeClient) Temperature(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodTemperature, 0, 0)
}
func (f *fakeClient) ARMarkerDetected(ctx context.Context) (core.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: bridge.MethodARMarkerDetected})
	if len(f.markers) == 0 {
		f.mu.Unlock()
		return core.OK(""), nil
	}
	m := f.markers[0]
	f.markers = f.markers[1:]
	f.mu.Unlock()
	return core.OK(m), nil
}
func (f *fakeClient) ARMarkerChaseStart(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodARMarkerChaseStart, 0, 0)
}
func (f *fakeClient) ARMarkerChaseEnd(ctx context.Context) (core.Result, error) {
	return f.do(bridge.MethodARMarkerChaseEnd, 0, 0)
}
func (f *fakeClient) Close() error { return nil }

type alertLog struct {
	mu       sync.Mutex
	messages []string
}

func (a *alertLog) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
}

func (a *alertLog) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

type memRecorder struct {
	mu        sync.Mutex
	commands  []core.CommandRecord
	sightings []core.SightingRecord
}

func (r *memRecorder) RecordCommand(rec core.CommandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, rec)
	return nil
}

func (r *memRecorder) RecordSighting(rec core.SightingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sightings = append(r.sightings, rec)
	return nil
}

func (r *memRecorder) sightingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sightings)
}
