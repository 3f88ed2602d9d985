// Package extension implements the udltello and udlcamera block extensions:
// block declarations for the editor and the handlers behind each opcode.
package extension

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/pkg/core"
)

// Alerter shows a blocking message to the user in the editor.
type Alerter interface {
	Alert(message string)
}

// AlertFunc adapts a plain function to Alerter.
type AlertFunc func(message string)

// Alert calls f.
func (f AlertFunc) Alert(message string) {
	f(message)
}

// Recorder receives forwarded commands and marker sightings for the flight
// log.
type Recorder interface {
	RecordCommand(rec core.CommandRecord) error
	RecordSighting(rec core.SightingRecord) error
}

// toNumber coerces a block argument the way the editor runtime does:
// numbers pass through, numeric text is parsed, booleans are 0 or 1, and
// anything else (including NaN) is 0.
func toNumber(v any) float64 {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}

// toString coerces a block argument to text.
func toString(v any) string {
	if v == nil {
		return ""
	}
	return cast.ToString(v)
}

// commandResult folds a bridge answer into the alert text, or "" on success.
func commandResult(res core.Result, err error) (string, bool) {
	if err == nil && res.Status {
		return "", true
	}
	return bridge.FailureMessage(res, err), false
}

func record(r Recorder, opcode string, args []any, res core.Result, err error) error {
	if r == nil {
		return nil
	}
	rec := core.CommandRecord{
		Time:    time.Now(),
		Opcode:  opcode,
		Args:    args,
		Status:  err == nil && res.Status,
		Message: res.Message,
	}
	if err != nil {
		rec.Message = err.Error()
	}
	return r.RecordCommand(rec)
}
