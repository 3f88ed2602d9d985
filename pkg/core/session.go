// pkg/core/session.go
package core

import "time"

// Session is one run of the extension host, from start to shutdown.
type Session struct {
	ID               string    `json:"id"`
	StartTime        time.Time `json:"startTime"`
	BridgeType       string    `json:"bridgeType"`
	ExtensionVersion string    `json:"extensionVersion"`
}

// CommandRecord is a block invocation that was forwarded to the bridge.
type CommandRecord struct {
	Time    time.Time `json:"time"`
	Opcode  string    `json:"opcode"`
	Args    []any     `json:"args,omitempty"`
	Status  bool      `json:"status"`
	Message string    `json:"message,omitempty"`
}

// SightingRecord is an AR marker id reported by the detector.
type SightingRecord struct {
	Time     time.Time `json:"time"`
	MarkerID int       `json:"markerId"`
}

// UploadMetadata describes an exported flight log for upload.
type UploadMetadata struct {
	SessionID string
	Duration  float64
	Tag       string
}
