// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/udl/extension/internal/model"
	"github.com/udl/extension/pkg/core"
	"gorm.io/datatypes"
)

// argsToJSON converts command arguments to datatypes.JSON for DB storage.
func argsToJSON(args []any) datatypes.JSON {
	if len(args) == 0 {
		return datatypes.JSON("[]")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.FlightSession.
func CoreToSession(s core.Session) model.FlightSession {
	return model.FlightSession{
		ID:               s.ID,
		StartTime:        s.StartTime,
		BridgeType:       s.BridgeType,
		ExtensionVersion: s.ExtensionVersion,
	}
}

// CoreToCommand converts a core.CommandRecord to a GORM model.Command.
func CoreToCommand(c core.CommandRecord) model.Command {
	return model.Command{
		Time:    c.Time,
		Opcode:  c.Opcode,
		Args:    argsToJSON(c.Args),
		Status:  c.Status,
		Message: c.Message,
	}
}

// CoreToTelemetrySample converts a core.TelemetrySample to a GORM model.TelemetrySample.
func CoreToTelemetrySample(s core.TelemetrySample) model.TelemetrySample {
	return model.TelemetrySample{
		Time:  s.Time,
		Field: string(s.Field),
		Value: s.Value,
	}
}

// CoreToSighting converts a core.SightingRecord to a GORM model.Sighting.
func CoreToSighting(s core.SightingRecord) model.Sighting {
	return model.Sighting{
		Time:     s.Time,
		MarkerID: s.MarkerID,
	}
}
