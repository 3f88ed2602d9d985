// Package streaming defines the messages of the live flight log stream.
package streaming

import (
	"encoding/json"

	"github.com/udl/extension/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeCommand      = "command"
	TypeTelemetry    = "telemetry"
	TypeSighting     = "sighting"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session being streamed.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}
