// Package bridge defines the client side of the native host contract: one
// call per drone or camera operation, each answered with a status envelope.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/udl/extension/pkg/core"
)

// Unit selects how movement amounts are interpreted by the host.
type Unit int

const (
	// UnitTime moves for N seconds (turns for N seconds).
	UnitTime Unit = 1
	// UnitDistance moves N centimetres (turns N degrees).
	UnitDistance Unit = 2
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitTime || u == UnitDistance
}

// Remote method names, as exposed by the host's bound object.
const (
	MethodTakeoff            = "takeoff"
	MethodLand               = "land"
	MethodUp                 = "up"
	MethodDown               = "down"
	MethodLeft               = "left"
	MethodRight              = "right"
	MethodForward            = "forward"
	MethodBackward           = "backward"
	MethodLeftTurn           = "leftturn"
	MethodRightTurn          = "rightturn"
	MethodBatteryPercentage  = "getBatteryPercentage"
	MethodSpeed              = "getSpeed"
	MethodVerticalSpeed      = "getVerticalSpeed"
	MethodFlyTime            = "getFlyTime"
	MethodHeight             = "getHeight"
	MethodTemperature        = "getTemperature"
	MethodARMarkerDetected   = "armarkerdetected"
	MethodARMarkerChaseStart = "armarkerchasestart"
	MethodARMarkerChaseEnd   = "armarkerchaseend"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("bridge closed")

// Client is the native host's bound object. Every call blocks until the host
// answers or ctx ends; a transport failure is an error, a refused operation
// is a Result with Status false.
type Client interface {
	Takeoff(ctx context.Context) (core.Result, error)
	Land(ctx context.Context) (core.Result, error)
	Up(ctx context.Context, x float64, unit Unit) (core.Result, error)
	Down(ctx context.Context, x float64, unit Unit) (core.Result, error)
	Left(ctx context.Context, x float64, unit Unit) (core.Result, error)
	Right(ctx context.Context, x float64, unit Unit) (core.Result, error)
	Forward(ctx context.Context, x float64, unit Unit) (core.Result, error)
	Backward(ctx context.Context, x float64, unit Unit) (core.Result, error)
	LeftTurn(ctx context.Context, x float64, unit Unit) (core.Result, error)
	RightTurn(ctx context.Context, x float64, unit Unit) (core.Result, error)

	BatteryPercentage(ctx context.Context) (core.Result, error)
	Speed(ctx context.Context) (core.Result, error)
	VerticalSpeed(ctx context.Context) (core.Result, error)
	FlyTime(ctx context.Context) (core.Result, error)
	Height(ctx context.Context) (core.Result, error)
	Temperature(ctx context.Context) (core.Result, error)

	// ARMarkerDetected returns the most recently seen marker id in Message.
	ARMarkerDetected(ctx context.Context) (core.Result, error)
	ARMarkerChaseStart(ctx context.Context) (core.Result, error)
	ARMarkerChaseEnd(ctx context.Context) (core.Result, error)

	Close() error
}

// TelemetryGetter returns the Client method polling field.
func TelemetryGetter(c Client, field core.TelemetryField) (func(context.Context) (core.Result, error), error) {
	switch field {
	case core.FieldBatteryPercentage:
		return c.BatteryPercentage, nil
	case core.FieldSpeed:
		return c.Speed, nil
	case core.FieldVerticalSpeed:
		return c.VerticalSpeed, nil
	case core.FieldFlyTime:
		return c.FlyTime, nil
	case core.FieldHeight:
		return c.Height, nil
	case core.FieldTemperature:
		return c.Temperature, nil
	default:
		return nil, fmt.Errorf("unknown telemetry field: %s", field)
	}
}

const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "boolean"},
    "message": {"type": ["string", "number", "null"]}
  }
}`

var schema = jsonschema.MustCompileString("envelope.schema.json", envelopeSchema)

// Decode parses a host envelope. The host may send the envelope as an object
// or as a JSON-encoded string holding the object; numeric messages are
// rendered back to their decimal text.
func Decode(raw []byte) (core.Result, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return core.Result{}, fmt.Errorf("decode envelope string: %w", err)
		}
		raw = []byte(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return core.Result{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return core.Result{}, fmt.Errorf("invalid envelope: %w", err)
	}

	obj := doc.(map[string]any)
	res := core.Result{Status: obj["status"].(bool)}
	switch m := obj["message"].(type) {
	case string:
		res.Message = m
	case json.Number:
		res.Message = m.String()
	}
	return res, nil
}

// Encode renders r the way the host sends it.
func Encode(r core.Result) []byte {
	b, _ := json.Marshal(r)
	return b
}

// FailureMessage is the user-facing text for a failed call.
func FailureMessage(res core.Result, err error) string {
	if err != nil {
		return strings.TrimSpace(NotConnectedMessage + err.Error())
	}
	return res.Message
}

// NotConnectedMessage prefixes alerts for calls that never reached the drone.
const NotConnectedMessage = "Telloに接続できません。\n"
