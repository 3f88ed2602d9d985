package extension

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/internal/telemetry"
	"github.com/udl/extension/pkg/core"
)

// TelloID is the extension id of the drone blocks.
const TelloID = "udltello"

// Drone block opcodes.
const (
	OpTakeoff              = "takeoff"
	OpLand                 = "land"
	OpUp                   = "up"
	OpDown                 = "down"
	OpLeftMove             = "leftmove"
	OpRightMove            = "rightmove"
	OpForward              = "forward"
	OpBackward             = "backward"
	OpLeftTurn             = "leftturn"
	OpRightTurn            = "rightturn"
	OpGetBatteryPercentage = "getBatteryPercentage"
	OpGetSpeed             = "getSpeed"
	OpGetVerticalSpeed     = "getVerticalSpeed"
	OpGetFlyTime           = "getFlyTime"
	OpGetHeight            = "getHeight"
	OpGetTemperature       = "getTemperature"
	OpWriteLog             = "writeLog"
)

// moveText holds the block text suffix per unit: index 0 seconds, 1 distance.
var moveText = map[string][2]string{
	OpUp:        {"秒 上昇する", "cm 上昇する"},
	OpDown:      {"秒 下降する", "cm 下降する"},
	OpLeftMove:  {"秒 左に移動する", "cm 左に移動する"},
	OpRightMove: {"秒 右に移動する", "cm 右に移動する"},
	OpForward:   {"秒 前進する", "cm 前進する"},
	OpBackward:  {"秒 後退する", "cm 後退する"},
	OpLeftTurn:  {"秒 左旋回する", "度 左旋回する"},
	OpRightTurn: {"秒 右旋回する", "度 右旋回する"},
}

var moveOrder = []string{
	OpUp, OpDown, OpLeftMove, OpRightMove, OpForward, OpBackward, OpLeftTurn, OpRightTurn,
}

var reporters = []struct {
	opcode string
	text   string
	field  core.TelemetryField
}{
	{OpGetBatteryPercentage, "バッテリー残量", core.FieldBatteryPercentage},
	{OpGetSpeed, "速度", core.FieldSpeed},
	{OpGetVerticalSpeed, "上昇速度", core.FieldVerticalSpeed},
	{OpGetFlyTime, "飛行時間", core.FieldFlyTime},
	{OpGetHeight, "高度", core.FieldHeight},
	{OpGetTemperature, "温度", core.FieldTemperature},
}

// Tello is the drone command and telemetry extension.
type Tello struct {
	client   bridge.Client
	cache    *telemetry.Cache
	unit     bridge.Unit
	alerter  Alerter
	recorder Recorder
	logger   *slog.Logger
}

// NewTello creates the drone extension. An invalid unit falls back to
// seconds.
func NewTello(client bridge.Client, cache *telemetry.Cache, unit bridge.Unit, alerter Alerter, logger *slog.Logger) *Tello {
	if !unit.Valid() {
		unit = bridge.UnitTime
	}
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = AlertFunc(func(string) {})
	}
	return &Tello{
		client:  client,
		cache:   cache,
		unit:    unit,
		alerter: alerter,
		logger:  logger.With("extension", TelloID),
	}
}

// SetRecorder attaches the flight log.
func (t *Tello) SetRecorder(r Recorder) {
	t.recorder = r
}

// Unit returns the configured movement unit.
func (t *Tello) Unit() bridge.Unit {
	return t.unit
}

// Info returns the block declarations for the configured unit.
func (t *Tello) Info() core.ExtensionInfo {
	idx := int(t.unit) - 1

	blocks := []core.BlockInfo{
		{Opcode: OpTakeoff, Text: "離陸する", BlockType: core.BlockCommand},
		{Opcode: OpLand, Text: "着陸する", BlockType: core.BlockCommand},
	}
	for _, op := range moveOrder {
		def := 1
		if op == OpLeftTurn || op == OpRightTurn {
			def = 90
		}
		blocks = append(blocks, core.BlockInfo{
			Opcode:    op,
			Text:      "[x] " + moveText[op][idx],
			BlockType: core.BlockCommand,
			Arguments: map[string]core.Argument{
				"x": {Type: core.ArgumentNumber, DefaultValue: def},
			},
		})
	}
	for _, r := range reporters {
		blocks = append(blocks, core.BlockInfo{Opcode: r.opcode, Text: r.text, BlockType: core.BlockReporter})
	}
	blocks = append(blocks, core.BlockInfo{
		Opcode:    OpWriteLog,
		Text:      "ログ [TEXT]",
		BlockType: core.BlockCommand,
		Arguments: map[string]core.Argument{
			"TEXT": {Type: core.ArgumentString, DefaultValue: "hello"},
		},
	})

	return core.ExtensionInfo{ID: TelloID, Name: "UDL Tello", Blocks: blocks}
}

// Takeoff forwards the takeoff block.
func (t *Tello) Takeoff(ctx context.Context) error {
	res, err := t.client.Takeoff(ctx)
	return t.finish(OpTakeoff, nil, res, err)
}

// Land forwards the land block.
func (t *Tello) Land(ctx context.Context) error {
	res, err := t.client.Land(ctx)
	return t.finish(OpLand, nil, res, err)
}

// Move forwards one of the movement blocks with its x argument coerced to a
// number.
func (t *Tello) Move(ctx context.Context, opcode string, x any) error {
	call, err := t.mover(opcode)
	if err != nil {
		return err
	}
	n := toNumber(x)
	res, err := call(ctx, n, t.unit)
	return t.finish(opcode, []any{n, int(t.unit)}, res, err)
}

func (t *Tello) mover(opcode string) (func(context.Context, float64, bridge.Unit) (core.Result, error), error) {
	switch opcode {
	case OpUp:
		return t.client.Up, nil
	case OpDown:
		return t.client.Down, nil
	case OpLeftMove:
		return t.client.Left, nil
	case OpRightMove:
		return t.client.Right, nil
	case OpForward:
		return t.client.Forward, nil
	case OpBackward:
		return t.client.Backward, nil
	case OpLeftTurn:
		return t.client.LeftTurn, nil
	case OpRightTurn:
		return t.client.RightTurn, nil
	}
	return nil, fmt.Errorf("not a movement block: %s", opcode)
}

// Reading returns the cached value behind a reporter block.
func (t *Tello) Reading(opcode string) (float64, error) {
	for _, r := range reporters {
		if r.opcode == opcode {
			v, _ := t.cache.Get(r.field)
			return v, nil
		}
	}
	return 0, fmt.Errorf("not a reporter block: %s", opcode)
}

// WriteLog logs text from the log block.
func (t *Tello) WriteLog(text any) {
	t.logger.Info(toString(text), "source", "block")
}

// finish alerts on failure and records the call. A failed call is reported
// to the user, not to the caller.
func (t *Tello) finish(opcode string, args []any, res core.Result, err error) error {
	if rerr := record(t.recorder, TelloID+"_"+opcode, args, res, err); rerr != nil {
		t.logger.Warn("failed to record command", "opcode", opcode, "error", rerr)
	}
	msg, ok := commandResult(res, err)
	if ok {
		return nil
	}
	t.logger.Info("command failed", "opcode", opcode, "message", msg)
	t.alerter.Alert(msg)
	return nil
}
