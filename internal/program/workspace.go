// Package program mirrors the editor's program graph so extensions can ask
// which blocks are configured without reaching into the editor itself.
package program

import (
	"sync"

	"github.com/udl/extension/internal/sighting"
)

// Block is one block of the edited program with its field values.
type Block struct {
	ID     string            `json:"id"`
	Opcode string            `json:"opcode"`
	Fields map[string]string `json:"fields,omitempty"`
}

// FieldRef is a block using a given field and the field's literal value.
type FieldRef struct {
	Opcode string
	Value  string
}

// Graph is the query surface extensions need from the edited program.
type Graph interface {
	ListBlocksWithField(fieldName string) []FieldRef
}

// Workspace is the in-process copy of the edited program, kept current by
// the editor over the host link.
type Workspace struct {
	mu     sync.RWMutex
	blocks map[string]Block
}

// NewWorkspace creates an empty workspace
func NewWorkspace() *Workspace {
	return &Workspace{
		blocks: make(map[string]Block),
	}
}

// Replace swaps the whole program for blocks
func (w *Workspace) Replace(blocks []Block) {
	next := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		next[b.ID] = b
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks = next
}

// Upsert adds or replaces a single block
func (w *Workspace) Upsert(b Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks[b.ID] = b
}

// Delete removes a block by id
func (w *Workspace) Delete(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.blocks, id)
}

// Get retrieves a block by id
func (w *Workspace) Get(id string) (Block, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.blocks[id]
	return b, ok
}

// Len returns the number of blocks in the program
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.blocks)
}

// Reset clears the program
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks = make(map[string]Block)
}

// HasOpcode reports whether any block uses opcode
func (w *Workspace) HasOpcode(opcode string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, b := range w.blocks {
		if b.Opcode == opcode {
			return true
		}
	}
	return false
}

// ListBlocksWithField returns every block carrying fieldName.
func (w *Workspace) ListBlocksWithField(fieldName string) []FieldRef {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var refs []FieldRef
	for _, b := range w.blocks {
		if v, ok := b.Fields[fieldName]; ok {
			refs = append(refs, FieldRef{Opcode: b.Opcode, Value: v})
		}
	}
	return refs
}

// MarkerClaims answers claim checks by looking for a block whose FieldName
// field holds the marker id.
type MarkerClaims struct {
	Graph     Graph
	FieldName string
}

// Claimed implements sighting.ClaimChecker.
func (c MarkerClaims) Claimed(id sighting.MarkerID) bool {
	if c.Graph == nil || !id.Valid() {
		return false
	}
	for _, ref := range c.Graph.ListBlocksWithField(c.FieldName) {
		if sighting.Coerce(ref.Value) == id {
			return true
		}
	}
	return false
}
