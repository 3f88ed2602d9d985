package hostlink

import (
	"encoding/json"
	"fmt"

	"github.com/udl/extension/internal/program"
	"github.com/udl/extension/pkg/core"
)

// Message types exchanged with the block editor.
const (
	// editor -> host
	TypeCall    = "call"
	TypeInfo    = "info"
	TypeProgram = "program"
	TypeBlock   = "block"
	TypeDelete  = "delete"

	// host -> editor
	TypeResult = "result"
	TypeAlert  = "alert"
)

// Base carries the discriminator every message has.
type Base struct {
	Type string `json:"type"`
}

// CallMessage runs one block. Opcode is "<extension>_<opcode>".
type CallMessage struct {
	Type   string         `json:"type"`
	ID     int64          `json:"id"`
	Opcode string         `json:"opcode"`
	Args   map[string]any `json:"args,omitempty"`
}

// InfoMessage asks for every extension's block declarations.
type InfoMessage struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// ProgramMessage replaces the whole program graph.
type ProgramMessage struct {
	Type   string          `json:"type"`
	Blocks []program.Block `json:"blocks"`
}

// BlockMessage adds or changes one block.
type BlockMessage struct {
	Type  string        `json:"type"`
	Block program.Block `json:"block"`
}

// DeleteMessage removes one block.
type DeleteMessage struct {
	Type    string `json:"type"`
	BlockID string `json:"blockId"`
}

// ResultMessage answers a call or info request. Value is always present so
// a false hat result is not lost.
type ResultMessage struct {
	Type  string `json:"type"`
	ID    int64  `json:"id"`
	OK    bool   `json:"ok"`
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

// AlertMessage asks the editor to show a blocking alert.
type AlertMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// InfoValue is the Value of an info result.
type InfoValue []core.ExtensionInfo

// DecodeType returns the discriminator of a raw message.
func DecodeType(raw []byte) (string, error) {
	var b Base
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", fmt.Errorf("decode message: %w", err)
	}
	if b.Type == "" {
		return "", fmt.Errorf("message has no type")
	}
	return b.Type, nil
}

// NewResult builds the answer to request id from a handler's return values.
func NewResult(id int64, value any, err error) ResultMessage {
	if err != nil {
		return ResultMessage{Type: TypeResult, ID: id, OK: false, Error: err.Error()}
	}
	return ResultMessage{Type: TypeResult, ID: id, OK: true, Value: value}
}
