package tello

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/pkg/core"
)

var _ bridge.Client = (*Client)(nil)

type fakeDrone struct {
	mu         sync.Mutex
	calls      []string
	pcts       []int
	takeoffErr error

	onConnected  func()
	onFlightData func(FlightData)
}

func (f *fakeDrone) record(name string, pct int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.pcts = append(f.pcts, pct)
	return nil
}

func (f *fakeDrone) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDrone) Start() error { return f.record("start", 0) }
func (f *fakeDrone) Halt() error { return f.record("halt", 0) }
func (f *fakeDrone) TakeOff() error {
	_ = f.record("takeoff", 0)
	return f.takeoffErr
}
func (f *fakeDrone) Land() error { return f.record("land", 0) }
func (f *fakeDrone) Up(p int) error { return f.record("up", p) }
func (f *fakeDrone) Down(p int) error { return f.record("down", p) }
func (f *fakeDrone) Left(p int) error { return f.record("left", p) }
func (f *fakeDrone) Right(p int) error { return f.record("right", p) }
func (f *fakeDrone) Forward(p int) error { return f.record("forward", p) }
func (f *fakeDrone) Backward(p int) error { return f.record("backward", p) }
func (f *fakeDrone) Clockwise(p int) error { return f.record("cw", p) }
func (f *fakeDrone) CounterClockwise(p int) error { return f.record("ccw", p) }
func (f *fakeDrone) Hover() error { return f.record("hover", 0) }
func (f *fakeDrone) OnConnected(fn func()) { f.onConnected = fn }
func (f *fakeDrone) OnFlightData(fn func(FlightData)) { f.onFlightData = fn }

func newConnected(t *testing.T, cfg Config) (*Client, *fakeDrone) {
	t.Helper()
	d := &fakeDrone{}
	c := New(d, cfg, nil)
	require.NoError(t, c.Start())
	d.onConnected()
	require.True(t, c.Connected())
	return c, d
}

func TestClient_NotConnected(t *testing.T) {
	d := &fakeDrone{}
	c := New(d, Config{}, nil)

	_, err := c.Takeoff(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.Height(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, d.Calls())
}

func TestClient_TakeoffLand(t *testing.T) {
	c, d := newConnected(t, Config{})

	res, err := c.Takeoff(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Status)
	res, err = c.Land(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Status)

	assert.Equal(t, []string{"start", "takeoff", "land"}, d.Calls())
}

func TestClient_DriverErrorIsStatusFalse(t *testing.T) {
	c, d := newConnected(t, Config{})
	d.takeoffErr = errors.New("udp write failed")

	res, err := c.Takeoff(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Status)
	assert.Contains(t, res.Message, "udp write failed")
}

func TestClient_TimedMoveHovers(t *testing.T) {
	c, d := newConnected(t, Config{SpeedPercent: 30})

	start := time.Now()
	res, err := c.Up(context.Background(), 0.05, bridge.UnitTime)
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	assert.Equal(t, []string{"start", "up", "hover"}, d.Calls())
	assert.Equal(t, 30, d.pcts[1])
}

func TestClient_TurnsMapToRotation(t *testing.T) {
	c, d := newConnected(t, Config{})

	_, err := c.LeftTurn(context.Background(), 0.01, bridge.UnitTime)
	require.NoError(t, err)
	_, err = c.RightTurn(context.Background(), 0.01, bridge.UnitTime)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "ccw", "hover", "cw", "hover"}, d.Calls())
	assert.Equal(t, 50, d.pcts[1], "default speed")
}

func TestClient_CancelledMoveStillHovers(t *testing.T) {
	c, d := newConnected(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Forward(ctx, 10, bridge.UnitTime)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"start", "forward", "hover"}, d.Calls())
}

func TestClient_DistanceUnitRefused(t *testing.T) {
	c, d := newConnected(t, Config{})

	res, err := c.Backward(context.Background(), 50, bridge.UnitDistance)
	require.NoError(t, err)
	assert.False(t, res.Status)
	assert.Equal(t, []string{"start"}, d.Calls())

	_, err = c.Left(context.Background(), 1, bridge.Unit(0))
	require.Error(t, err)
}

func TestClient_Telemetry(t *testing.T) {
	c, d := newConnected(t, Config{})
	d.onFlightData(FlightData{
		BatteryPercentage: 87,
		NorthSpeed:        3,
		EastSpeed:         4,
		VerticalSpeed:     -2,
		FlyTime:           120,
		Height:            15,
	})

	ctx := context.Background()
	cases := []struct {
		name string
		get  func(context.Context) (core.Result, error)
		want string
	}{
		{"battery", c.BatteryPercentage, "87"},
		{"speed", c.Speed, "5"},
		{"vertical", c.VerticalSpeed, "-2"},
		{"flytime", c.FlyTime, "120"},
		{"height", c.Height, "15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tc.get(ctx)
			require.NoError(t, err)
			assert.Equal(t, core.OK(tc.want), res)
		})
	}

	res, err := c.Temperature(ctx)
	require.NoError(t, err)
	assert.False(t, res.Status)
}

func TestClient_CameraUnavailable(t *testing.T) {
	c, _ := newConnected(t, Config{})
	for _, fn := range []func(context.Context) (core.Result, error){
		c.ARMarkerDetected, c.ARMarkerChaseStart, c.ARMarkerChaseEnd,
	} {
		res, err := fn(context.Background())
		require.NoError(t, err)
		assert.False(t, res.Status)
	}
}

func TestClient_Close(t *testing.T) {
	c, d := newConnected(t, Config{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Land(context.Background())
	assert.ErrorIs(t, err, bridge.ErrClosed)
	assert.Equal(t, []string{"start", "halt"}, d.Calls())
}
