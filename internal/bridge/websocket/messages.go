package websocket

import "encoding/json"

// Request is a call on the host's bound object.
type Request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Args   []any  `json:"args,omitempty"`
}

// Response answers the Request with the same ID. Result holds the
// {status, message} envelope, either as an object or as a JSON string.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
