package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&FlightSession{},
	&Command{},
	&TelemetrySample{},
	&Sighting{},
}

////////////////////////
// RECORDING MODELS
////////////////////////

// FlightSession is one run of the extension host
type FlightSession struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	StartTime        time.Time  `json:"startTime" gorm:"index:idx_session_start"`
	EndTime          *time.Time `json:"endTime"`
	BridgeType       string     `json:"bridgeType" gorm:"size:32"`
	ExtensionVersion string     `json:"extensionVersion" gorm:"size:64"`
}

func (*FlightSession) TableName() string {
	return "flight_sessions"
}

// Command is a block invocation forwarded to the bridge
type Command struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time" gorm:"index:idx_command_time"`
	SessionID string         `json:"sessionId" gorm:"index:idx_command_session_id;size:36"`
	Session   FlightSession  `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Opcode    string         `json:"opcode" gorm:"size:64"`
	Args      datatypes.JSON `json:"args" gorm:"default:'[]'"`
	Status    bool           `json:"status"`
	Message   string         `json:"message" gorm:"size:255"`
}

func (*Command) TableName() string {
	return "commands"
}

// TelemetrySample is one applied telemetry reading
type TelemetrySample struct {
	ID        uint          `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time     `json:"time" gorm:"index:idx_telemetry_time"`
	SessionID string        `json:"sessionId" gorm:"index:idx_telemetry_session_id;size:36"`
	Session   FlightSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Field     string        `json:"field" gorm:"size:32"`
	Value     float64       `json:"value"`
}

func (*TelemetrySample) TableName() string {
	return "telemetry_samples"
}

// Sighting is an AR marker id reported by the detector
type Sighting struct {
	ID        uint          `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time     `json:"time" gorm:"index:idx_sighting_time"`
	SessionID string        `json:"sessionId" gorm:"index:idx_sighting_session_id;size:36"`
	Session   FlightSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	MarkerID  int           `json:"markerId"`
}

func (*Sighting) TableName() string {
	return "sightings"
}
