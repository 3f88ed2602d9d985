// pkg/core/blocks.go
package core

// BlockType is the shape of a block in the editor palette.
type BlockType string

const (
	BlockCommand  BlockType = "command"
	BlockReporter BlockType = "reporter"
	BlockHat      BlockType = "hat"
)

// ArgumentType is the input type of a block argument slot.
type ArgumentType string

const (
	ArgumentNumber ArgumentType = "number"
	ArgumentString ArgumentType = "string"
)

// Argument describes one [slot] in a block's text.
type Argument struct {
	Type         ArgumentType `json:"type"`
	Menu         string       `json:"menu,omitempty"`
	DefaultValue any          `json:"defaultValue,omitempty"`
}

// BlockInfo is the declaration of a single block.
type BlockInfo struct {
	Opcode    string              `json:"opcode"`
	Text      string              `json:"text"`
	BlockType BlockType           `json:"blockType"`
	Arguments map[string]Argument `json:"arguments,omitempty"`
}

// MenuItem is one entry of a fixed-choice menu. Text is what the editor
// shows, Value is what the block receives.
type MenuItem struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Menu is a fixed-choice argument menu.
type Menu struct {
	AcceptReporters bool       `json:"acceptReporters"`
	Items           []MenuItem `json:"items"`
}

// ExtensionInfo is the metadata an extension hands to the editor.
type ExtensionInfo struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Blocks []BlockInfo     `json:"blocks"`
	Menus  map[string]Menu `json:"menus,omitempty"`
}

// Block returns the declaration for opcode, if the extension has one.
func (e ExtensionInfo) Block(opcode string) (BlockInfo, bool) {
	for _, b := range e.Blocks {
		if b.Opcode == opcode {
			return b, true
		}
	}
	return BlockInfo{}, false
}
