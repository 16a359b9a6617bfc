package flow

import "sort"

// Node is one operation instance in the graph. It owns its pins and
// references other nodes only by ID (FnRefs for structural, non-pin
// references such as callable tools).
type Node struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	FriendlyName  string          `json:"friendly_name" yaml:"friendly_name"`
	Description   string          `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string          `json:"category,omitempty" yaml:"category,omitempty"`
	Coordinates   *[3]float64     `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	Pins          map[string]*Pin `json:"pins" yaml:"pins"`
	FnRefs        StringSet       `json:"fn_refs" yaml:"fn_refs"`
	LongRunning   bool            `json:"long_running,omitempty" yaml:"long_running,omitempty"`
	Start         bool            `json:"start,omitempty" yaml:"start,omitempty"`
	EventCallback bool            `json:"event_callback,omitempty" yaml:"event_callback,omitempty"`
	Layer         string          `json:"layer,omitempty" yaml:"layer,omitempty"`
	Comment       string          `json:"comment,omitempty" yaml:"comment,omitempty"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewNode creates a node with a fresh ID and no pins.
func NewNode(name, friendlyName, description, category string) *Node {
	return &Node{
		ID:           NewID(),
		Name:         name,
		FriendlyName: friendlyName,
		Description:  description,
		Category:     category,
		Pins:         make(map[string]*Pin),
		FnRefs:       NewStringSet(),
	}
}

// AddPin attaches an existing pin to the node.
func (n *Node) AddPin(p *Pin) *Pin {
	n.Pins[p.ID] = p
	return p
}

// AddInputPin declares a data input pin.
func (n *Node) AddInputPin(name, friendlyName, description string, dataType VariableType) *Pin {
	return n.AddPin(NewPin(name, friendlyName, description, PinInput, dataType))
}

// AddOutputPin declares a data output pin.
func (n *Node) AddOutputPin(name, friendlyName, description string, dataType VariableType) *Pin {
	return n.AddPin(NewPin(name, friendlyName, description, PinOutput, dataType))
}

// AddInputExecPin declares an execution input pin.
func (n *Node) AddInputExecPin(name, friendlyName, description string) *Pin {
	return n.AddPin(NewPin(name, friendlyName, description, PinInput, TypeExecution))
}

// AddOutputExecPin declares an execution output pin.
func (n *Node) AddOutputExecPin(name, friendlyName, description string) *Pin {
	return n.AddPin(NewPin(name, friendlyName, description, PinOutput, TypeExecution))
}

// PinByName returns the first pin with the given name, or nil.
// Pins sharing a name are ordered by Index, then ID.
func (n *Node) PinByName(name string) *Pin {
	var found *Pin
	for _, p := range n.Pins {
		if p.Name != name {
			continue
		}
		if found == nil || p.Index < found.Index || (p.Index == found.Index && p.ID < found.ID) {
			found = p
		}
	}
	return found
}

// PinsByName returns every pin with the given name, ordered by index.
func (n *Node) PinsByName(name string) []*Pin {
	var out []*Pin
	for _, p := range n.Pins {
		if p.Name == name {
			out = append(out, p)
		}
	}
	sortPins(out)
	return out
}

// SortedPins returns all pins ordered by type (inputs first), index and ID.
func (n *Node) SortedPins() []*Pin {
	out := make([]*Pin, 0, len(n.Pins))
	for _, p := range n.Pins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PinType != out[j].PinType {
			return out[i].PinType == PinInput
		}
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsPure reports whether the node has no execution pins at all.
// Pure nodes are evaluated on demand when a consumer pulls their output.
func (n *Node) IsPure() bool {
	for _, p := range n.Pins {
		if p.IsExecution() {
			return false
		}
	}
	return true
}

// Clone returns an independent deep copy of the node.
func (n *Node) Clone() *Node {
	out := *n
	out.Pins = make(map[string]*Pin, len(n.Pins))
	for id, p := range n.Pins {
		out.Pins[id] = p.Clone()
	}
	out.FnRefs = n.FnRefs.Clone()
	if n.Coordinates != nil {
		coords := *n.Coordinates
		out.Coordinates = &coords
	}
	return &out
}

func (n *Node) normalize() {
	if n.Pins == nil {
		n.Pins = make(map[string]*Pin)
	}
	if n.FnRefs == nil {
		n.FnRefs = NewStringSet()
	}
	for _, p := range n.Pins {
		p.normalize()
	}
}

func sortPins(pins []*Pin) {
	sort.Slice(pins, func(i, j int) bool {
		if pins[i].Index != pins[j].Index {
			return pins[i].Index < pins[j].Index
		}
		return pins[i].ID < pins[j].ID
	})
}
