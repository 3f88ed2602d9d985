// Package websocket implements bridge.Client over a WebSocket to the native
// host process that owns the drone and camera.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/pkg/core"
)

var errClosed = bridge.ErrClosed

// Config holds host connection settings.
type Config struct {
	URL string
}

// Client calls the host's bound object over WebSocket.
type Client struct {
	conn   *connection
	cfg    Config
	nextID atomic.Uint64
}

// New creates a client. Call Connect before use.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Connect dials the host. When the first dial fails it keeps retrying in
// the background with the reconnect backoff and returns the dial error.
func (c *Client) Connect() error {
	if err := c.conn.dial(c.cfg.URL); err != nil {
		go c.conn.reconnect(nil)
		return err
	}
	return nil
}

// Connected reports whether the host socket is currently up.
func (c *Client) Connected() bool {
	return c.conn.connected()
}

// Close disconnects from the host and fails calls still waiting.
func (c *Client) Close() error {
	return c.conn.close()
}

// call sends one request and waits for its envelope.
func (c *Client) call(ctx context.Context, method string, args ...any) (core.Result, error) {
	id := c.nextID.Add(1)
	data, err := json.Marshal(Request{ID: id, Method: method, Args: args})
	if err != nil {
		return core.Result{}, fmt.Errorf("marshal %s request: %w", method, err)
	}

	reply, err := c.conn.register(id)
	if err != nil {
		return core.Result{}, err
	}
	if err := c.conn.send(id, data); err != nil {
		c.conn.unregister(id)
		return core.Result{}, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			return core.Result{}, fmt.Errorf("%s: %w", method, errConnectionLost)
		}
		if resp.Error != "" {
			return core.Result{}, fmt.Errorf("%s: host error: %s", method, resp.Error)
		}
		res, err := bridge.Decode(resp.Result)
		if err != nil {
			return core.Result{}, fmt.Errorf("%s: %w", method, err)
		}
		return res, nil
	case <-ctx.Done():
		c.conn.unregister(id)
		return core.Result{}, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Client) move(ctx context.Context, method string, x float64, unit bridge.Unit) (core.Result, error) {
	if !unit.Valid() {
		return core.Result{}, fmt.Errorf("%s: unknown unit %d", method, unit)
	}
	return c.call(ctx, method, x, int(unit))
}

func (c *Client) Takeoff(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodTakeoff)
}

func (c *Client) Land(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodLand)
}

func (c *Client) Up(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodUp, x, unit)
}

func (c *Client) Down(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodDown, x, unit)
}

func (c *Client) Left(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodLeft, x, unit)
}

func (c *Client) Right(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodRight, x, unit)
}

func (c *Client) Forward(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodForward, x, unit)
}

func (c *Client) Backward(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodBackward, x, unit)
}

func (c *Client) LeftTurn(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodLeftTurn, x, unit)
}

func (c *Client) RightTurn(ctx context.Context, x float64, unit bridge.Unit) (core.Result, error) {
	return c.move(ctx, bridge.MethodRightTurn, x, unit)
}

func (c *Client) BatteryPercentage(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodBatteryPercentage)
}

func (c *Client) Speed(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodSpeed)
}

func (c *Client) VerticalSpeed(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodVerticalSpeed)
}

func (c *Client) FlyTime(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodFlyTime)
}

func (c *Client) Height(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodHeight)
}

func (c *Client) Temperature(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodTemperature)
}

func (c *Client) ARMarkerDetected(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodARMarkerDetected)
}

func (c *Client) ARMarkerChaseStart(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodARMarkerChaseStart)
}

func (c *Client) ARMarkerChaseEnd(ctx context.Context) (core.Result, error) {
	return c.call(ctx, bridge.MethodARMarkerChaseEnd)
}

// IsConnectionLost reports whether err came from the host socket dropping
// while a call was in flight.
func IsConnectionLost(err error) bool {
	return errors.Is(err, errConnectionLost)
}
