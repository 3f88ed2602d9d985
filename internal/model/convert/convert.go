package convert

import (
	"encoding/json"

	"github.com/udl/extension/internal/model"
	"github.com/udl/extension/pkg/core"
)

// SessionToCore converts a GORM model.FlightSession to a core.Session
func SessionToCore(s model.FlightSession) core.Session {
	return core.Session{
		ID:               s.ID,
		StartTime:        s.StartTime,
		BridgeType:       s.BridgeType,
		ExtensionVersion: s.ExtensionVersion,
	}
}

// CommandToCore converts a GORM model.Command to a core.CommandRecord.
// Unreadable args come back empty.
func CommandToCore(c model.Command) core.CommandRecord {
	var args []any
	if len(c.Args) > 0 {
		if err := json.Unmarshal(c.Args, &args); err != nil {
			args = nil
		}
	}
	if len(args) == 0 {
		args = nil
	}
	return core.CommandRecord{
		Time:    c.Time,
		Opcode:  c.Opcode,
		Args:    args,
		Status:  c.Status,
		Message: c.Message,
	}
}

// TelemetrySampleToCore converts a GORM model.TelemetrySample to a core.TelemetrySample
func TelemetrySampleToCore(s model.TelemetrySample) core.TelemetrySample {
	return core.TelemetrySample{
		Time:  s.Time,
		Field: core.TelemetryField(s.Field),
		Value: s.Value,
	}
}

// SightingToCore converts a GORM model.Sighting to a core.SightingRecord
func SightingToCore(s model.Sighting) core.SightingRecord {
	return core.SightingRecord{
		Time:     s.Time,
		MarkerID: s.MarkerID,
	}
}
