package flow

import (
	"encoding/json"
	"fmt"
	"time"
)

// BoardStage marks where a board sits in its lifecycle.
type BoardStage string

const (
	StageDev  BoardStage = "dev"
	StageProd BoardStage = "prod"
)

// VersionBump selects which component of a board version to increment.
type VersionBump string

const (
	BumpMajor VersionBump = "major"
	BumpMinor VersionBump = "minor"
	BumpPatch VersionBump = "patch"
)

// Board is the full persisted graph for one workflow: nodes, layers,
// variables and comments, all addressed by ID. It never holds direct
// references between elements; resolution goes through PinLookup.
// Boards are mutated exclusively through commands and repaired by the
// cleanup pipeline after every edit or load.
type Board struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       map[string]*Node     `json:"nodes" yaml:"nodes"`
	Layers      map[string]*Layer    `json:"layers" yaml:"layers"`
	Variables   map[string]*Variable `json:"variables" yaml:"variables"`
	Comments    map[string]*Comment  `json:"comments" yaml:"comments"`
	Version     [3]int64             `json:"version" yaml:"version"`
	Stage       BoardStage           `json:"stage" yaml:"stage"`
	LogLevel    LogLevel             `json:"log_level" yaml:"log_level"`
	Refs        map[string]string    `json:"refs,omitempty" yaml:"refs,omitempty"`
	Viewport    [4]float64           `json:"viewport" yaml:"viewport"`
	CreatedAt   int64                `json:"created_at" yaml:"created_at"`
	UpdatedAt   int64                `json:"updated_at" yaml:"updated_at"`
}

// NewBoard creates an empty board with a fresh ID.
func NewBoard(name string) *Board {
	now := time.Now().UnixMicro()
	return &Board{
		ID:        NewID(),
		Name:      name,
		Nodes:     make(map[string]*Node),
		Layers:    make(map[string]*Layer),
		Variables: make(map[string]*Variable),
		Comments:  make(map[string]*Comment),
		Stage:     StageDev,
		LogLevel:  LevelInfo,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PinRef is one entry of the transient pin lookup: the pin plus its
// owner. Exactly one of Node or Layer is set.
type PinRef struct {
	Pin   *Pin
	Node  *Node
	Layer *Layer
}

// PinLookup builds a fresh ID-to-pin table over every pin on the board,
// including layer boundary pins. The table is ephemeral; callers must
// rebuild it after any structural mutation.
func (b *Board) PinLookup() map[string]PinRef {
	lookup := make(map[string]PinRef)
	for _, n := range b.Nodes {
		for _, p := range n.Pins {
			lookup[p.ID] = PinRef{Pin: p, Node: n}
		}
	}
	for _, l := range b.Layers {
		for _, p := range l.Pins {
			lookup[p.ID] = PinRef{Pin: p, Layer: l}
		}
	}
	return lookup
}

// GetPinByID scans nodes first, then layers, for the pin.
func (b *Board) GetPinByID(id string) (*Pin, bool) {
	for _, n := range b.Nodes {
		if p, ok := n.Pins[id]; ok {
			return p, true
		}
	}
	for _, l := range b.Layers {
		if p, ok := l.Pins[id]; ok {
			return p, true
		}
	}
	return nil, false
}

// NodeByID returns the node or ErrNodeNotFound.
func (b *Board) NodeByID(id string) (*Node, error) {
	n, ok := b.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// StartNodes returns every node flagged as an entry point, plus event
// callback nodes when includeCallbacks is set.
func (b *Board) StartNodes(includeCallbacks bool) []*Node {
	var out []*Node
	for _, n := range b.Nodes {
		if n.Start || (includeCallbacks && n.EventCallback) {
			out = append(out, n)
		}
	}
	return out
}

// BumpVersion increments the requested version component and resets the
// lower ones.
func (b *Board) BumpVersion(kind VersionBump) [3]int64 {
	switch kind {
	case BumpMajor:
		b.Version[0]++
		b.Version[1] = 0
		b.Version[2] = 0
	case BumpMinor:
		b.Version[1]++
		b.Version[2] = 0
	default:
		b.Version[2]++
	}
	return b.Version
}

// Ref resolves a shared-string reference, falling back to the key
// itself when it is not present in the table. Large pin schemas are
// stored once in Refs and referenced by key from many pins.
func (b *Board) Ref(key string) string {
	if v, ok := b.Refs[key]; ok {
		return v
	}
	return key
}

// Touch updates the modification timestamp.
func (b *Board) Touch() {
	b.UpdatedAt = time.Now().UnixMicro()
}

// Normalize repairs nil maps and edge sets after unmarshalling.
func (b *Board) Normalize() {
	if b.Nodes == nil {
		b.Nodes = make(map[string]*Node)
	}
	if b.Layers == nil {
		b.Layers = make(map[string]*Layer)
	}
	if b.Variables == nil {
		b.Variables = make(map[string]*Variable)
	}
	if b.Comments == nil {
		b.Comments = make(map[string]*Comment)
	}
	for _, n := range b.Nodes {
		n.normalize()
	}
	for _, l := range b.Layers {
		l.normalize()
	}
}

// Clone returns an independent deep copy of the board.
func (b *Board) Clone() *Board {
	out := *b
	out.Nodes = make(map[string]*Node, len(b.Nodes))
	for id, n := range b.Nodes {
		out.Nodes[id] = n.Clone()
	}
	out.Layers = make(map[string]*Layer, len(b.Layers))
	for id, l := range b.Layers {
		out.Layers[id] = l.Clone()
	}
	out.Variables = make(map[string]*Variable, len(b.Variables))
	for id, v := range b.Variables {
		out.Variables[id] = v.Clone()
	}
	out.Comments = make(map[string]*Comment, len(b.Comments))
	for id, c := range b.Comments {
		out.Comments[id] = c.Clone()
	}
	if b.Refs != nil {
		out.Refs = make(map[string]string, len(b.Refs))
		for k, v := range b.Refs {
			out.Refs[k] = v
		}
	}
	return &out
}

// Marshal serializes the board to its canonical JSON wire form.
func (b *Board) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBoard parses a board from its JSON wire form and normalizes it.
func UnmarshalBoard(data []byte) (*Board, error) {
	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse board: %w", err)
	}
	b.Normalize()
	return &b, nil
}
