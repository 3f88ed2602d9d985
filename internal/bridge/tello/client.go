// Package tello implements bridge.Client directly against a DJI Tello, for
// running without the native host. Camera operations are not available.
package tello

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/pkg/core"
)

// ErrNotConnected is returned while the drone has not answered yet.
var ErrNotConnected = errors.New("drone not connected")

const (
	msgDistanceUnsupported = "距離指定の移動はこのブリッジでは使えません"
	msgTemperature         = "温度はこのブリッジでは取得できません"
	msgNoCamera            = "ARマーカー機能はこのブリッジでは使えません"
)

// Config holds direct-drone settings.
type Config struct {
	Port         string
	SpeedPercent int
}

// Client drives a Tello through a Drone.
type Client struct {
	drone  Drone
	speed  int
	logger *slog.Logger

	// moveMu serializes stick commands so one move's hover cannot cut
	// another short.
	moveMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
	data      FlightData
}

// New wraps drone. Call Start to open the link.
func New(drone Drone, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	speed := cfg.SpeedPercent
	if speed <= 0 || speed > 100 {
		speed = 50
	}
	c := &Client{drone: drone, speed: speed, logger: logger}
	drone.OnConnected(func() {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.logger.Info("Tello connected")
	})
	drone.OnFlightData(func(fd FlightData) {
		c.mu.Lock()
		c.data = fd
		c.mu.Unlock()
	})
	return c
}

// Start opens the UDP link to the drone.
func (c *Client) Start() error {
	if err := c.drone.Start(); err != nil {
		return fmt.Errorf("start tello driver: %w", err)
	}
	return nil
}

// Connected reports whether the drone has answered.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close halts the driver.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()
	return c.drone.Halt()
}

func (c *Client) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return bridge.ErrClosed
	}
	if !c.connected {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) simple(name string, fn func() error) (core.Result, error) {
	if err := c.ready(); err != nil {
		return core.Result{}, err
	}
	if err := fn(); err != nil {
		return core.Fail(fmt.Sprintf("%s: %v", name, err)), nil
	}
	return core.OK(""), nil
}

func (c *Client) Takeoff(ctx context.Context) (core.Result, error) {
	return c.simple(bridge.MethodTakeoff, c.drone.TakeOff)
}

func (c *Client) Land(ctx context.Context) (core.Result, error) {
	return c.simple(bridge.MethodLand, c.drone.Land)
}

// move holds a stick command for x seconds and then hovers. The hover is
// sent even when ctx ends early.
func (c *Client) move(ctx context.Context, name string, stick func(int) error, x float64, unit bridge.Unit) (core.Result, error) {
	if !unit.Valid() {
		return core.Result{}, fmt.Errorf("%s: unknown unit %d", name, unit)
	}
	if err := c.ready(); err != nil {
		return core.Result{}, err
	}
	if unit == bridge.UnitDistance {
		return core.Fail(msgDistanceUnsupported), nil
	}
	if x <= 0 {
		return core.OK(""), nil
	}

	c.moveMu.Lock()
	defer c.moveMu.Unlock()

	if err := stick(c.speed); err != nil {
		return core.Fail(fmt.Sprintf("%s: %v", name, err)), nil
	}
	timer := time.NewTimer(time.Duration(x * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	if err := c.drone.Hover(); err != nil {
		return core.Fail(fmt.Sprintf("hover: %v", err)), nil
	}
	if ctx.Err() != nil {
		return core.Result{}, fmt.Errorf("%s: %w", name, ctx.Err())
	}
	return core.OK(""), nil
}

func (c *Client) Up(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodUp, c.drone.Up, x, unit)
}

func (c *Client) Down(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodDown, c.drone.Down, x, unit)
}

func (c *Client) Left(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodLeft, c.drone.Left, x, unit)
}

func (c *Client) Right(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodRight, c.drone.Right, x, unit)
}

func (c *Client) Forward(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodForward, c.drone.Forward, x, unit)
}

func (c *Client) Backward(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodBackward, c.drone.Backward, x, unit)
}

func (c *Client) LeftTurn(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodLeftTurn, c.drone.CounterClockwise, x, unit)
}

func (c *Client) RightTurn(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodRightTurn, c.drone.Clockwise, x, unit)
}

// reading reports one value from the last flight data packet.
func (c *Client) reading(pick func(FlightData) float64) (core.Result, error) {
	if err := c.ready(); err != nil {
		return core.Result{}, err
	}
	c.mu.RLock()
	v := pick(c.data)
	c.mu.RUnlock()
	return core.OK(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

func (c *Client) BatteryPercentage(ctx context.Context) (core.Result, error) {
	return c.reading(func(fd FlightData) float64 { return fd.BatteryPercentage })
}

// Speed is the horizontal ground speed.
func (c *Client) Speed(ctx context.Context) (core.Result, error) {
	return c.reading(func(fd FlightData) float64 { return math.Hypot(fd.NorthSpeed, fd.EastSpeed) })
}

func (c *Client) VerticalSpeed(ctx context.Context) (core.Result, error) {
	return c.reading(func(fd FlightData) float64 { return fd.VerticalSpeed })
}

func (c *Client) FlyTime(ctx context.Context) (core.Result, error) {
	return c.reading(func(fd FlightData) float64 { return fd.FlyTime })
}

func (c *Client) Height(ctx context.Context) (core.Result, error) {
	return c.reading(func(fd FlightData) float64 { return fd.Height })
}

func (c *Client) Temperature(ctx context.Context) (core.Result, error) {
	if err := c.ready(); err != nil {
		return core.Result{}, err
	}
	return core.Fail(msgTemperature), nil
}

func (c *Client) ARMarkerDetected(ctx context.Context) (core.Result, error) {
	return core.Fail(msgNoCamera), nil
}

func (c *Client) ARMarkerChaseStart(ctx context.Context) (core.Result, error) {
	return core.Fail(msgNoCamera), nil
}

func (c *Client) ARMarkerChaseEnd(ctx context.Context) (core.Result, error) {
	return core.Fail(msgNoCamera), nil
}
