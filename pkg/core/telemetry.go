// pkg/core/telemetry.go
package core

import "time"

// TelemetryField names one cached drone reading.
type TelemetryField string

const (
	FieldBatteryPercentage TelemetryField = "batteryPercentage"
	FieldSpeed             TelemetryField = "speed"
	FieldVerticalSpeed     TelemetryField = "verticalSpeed"
	FieldFlyTime           TelemetryField = "flyTime"
	FieldHeight            TelemetryField = "height"
	FieldTemperature       TelemetryField = "temperature"
)

// TelemetryFields lists every polled field in request order.
var TelemetryFields = []TelemetryField{
	FieldBatteryPercentage,
	FieldSpeed,
	FieldVerticalSpeed,
	FieldFlyTime,
	FieldHeight,
	FieldTemperature,
}

// TelemetrySnapshot is the last known value of every field.
type TelemetrySnapshot struct {
	BatteryPercentage float64 `json:"batteryPercentage"`
	Speed             float64 `json:"speed"`
	VerticalSpeed     float64 `json:"verticalSpeed"`
	FlyTime           float64 `json:"flyTime"`
	Height            float64 `json:"height"`
	Temperature       float64 `json:"temperature"`
}

// TelemetrySample is a single successfully applied reading.
type TelemetrySample struct {
	Time  time.Time      `json:"time"`
	Field TelemetryField `json:"field"`
	Value float64        `json:"value"`
}
