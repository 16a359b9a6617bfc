package flow

// LayerKind describes how a layer groups its contents.
type LayerKind string

const (
	LayerFunction  LayerKind = "function"
	LayerMacro     LayerKind = "macro"
	LayerCollapsed LayerKind = "collapsed"
)

// Layer is a named sub-graph grouping. Its boundary pins bridge edges
// between pins inside the layer and pins outside it; a boundary pin's
// presence is derived from the inner edges it represents, never
// authored independently.
type Layer struct {
	ID          string          `json:"id" yaml:"id"`
	ParentID    string          `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	Type        LayerKind       `json:"type" yaml:"type"`
	Nodes       StringSet       `json:"nodes" yaml:"nodes"`
	Comments    StringSet       `json:"comments" yaml:"comments"`
	Pins        map[string]*Pin `json:"pins" yaml:"pins"`
	Coordinates *[3]float64     `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	Color       string          `json:"color,omitempty" yaml:"color,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewLayer creates a layer with a fresh ID and no contents.
func NewLayer(name string, kind LayerKind) *Layer {
	return &Layer{
		ID:       NewID(),
		Name:     name,
		Type:     kind,
		Nodes:    NewStringSet(),
		Comments: NewStringSet(),
		Pins:     make(map[string]*Pin),
	}
}

// AddPin attaches a boundary pin to the layer.
func (l *Layer) AddPin(p *Pin) *Pin {
	l.Pins[p.ID] = p
	return p
}

// Clone returns an independent deep copy of the layer.
func (l *Layer) Clone() *Layer {
	out := *l
	out.Nodes = l.Nodes.Clone()
	out.Comments = l.Comments.Clone()
	out.Pins = make(map[string]*Pin, len(l.Pins))
	for id, p := range l.Pins {
		out.Pins[id] = p.Clone()
	}
	if l.Coordinates != nil {
		coords := *l.Coordinates
		out.Coordinates = &coords
	}
	return &out
}

func (l *Layer) normalize() {
	if l.Nodes == nil {
		l.Nodes = NewStringSet()
	}
	if l.Comments == nil {
		l.Comments = NewStringSet()
	}
	if l.Pins == nil {
		l.Pins = make(map[string]*Pin)
	}
	for _, p := range l.Pins {
		p.normalize()
	}
}
