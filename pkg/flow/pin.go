package flow

// PinType distinguishes input slots from output slots.
type PinType string

const (
	PinInput  PinType = "input"
	PinOutput PinType = "output"
)

// VariableType is the value kind carried by a pin or variable.
// Execution pins carry control-flow activation instead of data.
type VariableType string

const (
	TypeExecution VariableType = "execution"
	TypeString    VariableType = "string"
	TypeInteger   VariableType = "integer"
	TypeFloat     VariableType = "float"
	TypeBoolean   VariableType = "boolean"
	TypeDate      VariableType = "date"
	TypePathBuf   VariableType = "pathbuf"
	TypeGeneric   VariableType = "generic"
	TypeStruct    VariableType = "struct"
	TypeByte      VariableType = "byte"
)

// ValueKind is the container shape of a pin or variable value.
type ValueKind string

const (
	KindNormal  ValueKind = "normal"
	KindArray   ValueKind = "array"
	KindHashSet ValueKind = "hashset"
	KindHashMap ValueKind = "hashmap"
)

// PinOptions carries editor-facing constraints on a pin's value.
type PinOptions struct {
	ValidValues   []string `json:"valid_values,omitempty" yaml:"valid_values,omitempty"`
	RangeMin      *float64 `json:"range_min,omitempty" yaml:"range_min,omitempty"`
	RangeMax      *float64 `json:"range_max,omitempty" yaml:"range_max,omitempty"`
	EnforceSchema bool     `json:"enforce_schema,omitempty" yaml:"enforce_schema,omitempty"`
}

// Pin is a single typed connection point owned by exactly one node or
// layer. ConnectedTo lists successor pins this pin feeds; DependsOn
// lists predecessor pins feeding this one. For any two pins A and B,
// B in A.ConnectedTo must hold exactly when A is in B.DependsOn; the
// cleanup pipeline removes edges that break this symmetry.
type Pin struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	FriendlyName string       `json:"friendly_name" yaml:"friendly_name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	PinType      PinType      `json:"pin_type" yaml:"pin_type"`
	DataType     VariableType `json:"data_type" yaml:"data_type"`
	ValueKind    ValueKind    `json:"value_kind" yaml:"value_kind"`
	Schema       string       `json:"schema,omitempty" yaml:"schema,omitempty"`
	DefaultValue any          `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Index        int          `json:"index" yaml:"index"`
	Options      *PinOptions  `json:"options,omitempty" yaml:"options,omitempty"`
	ConnectedTo  StringSet    `json:"connected_to" yaml:"connected_to"`
	DependsOn    StringSet    `json:"depends_on" yaml:"depends_on"`
}

// NewPin creates a pin with a fresh ID and empty edge sets.
func NewPin(name, friendlyName, description string, pinType PinType, dataType VariableType) *Pin {
	return &Pin{
		ID:           NewID(),
		Name:         name,
		FriendlyName: friendlyName,
		Description:  description,
		PinType:      pinType,
		DataType:     dataType,
		ValueKind:    KindNormal,
		ConnectedTo:  NewStringSet(),
		DependsOn:    NewStringSet(),
	}
}

// IsExecution reports whether the pin carries control-flow activation.
func (p *Pin) IsExecution() bool {
	return p.DataType == TypeExecution
}

// Clone returns an independent deep copy of the pin.
func (p *Pin) Clone() *Pin {
	out := *p
	out.ConnectedTo = p.ConnectedTo.Clone()
	out.DependsOn = p.DependsOn.Clone()
	if p.Options != nil {
		opts := *p.Options
		opts.ValidValues = append([]string(nil), p.Options.ValidValues...)
		out.Options = &opts
	}
	return &out
}

// normalize guarantees the edge sets are non-nil after unmarshalling
// hand-edited documents.
func (p *Pin) normalize() {
	if p.ConnectedTo == nil {
		p.ConnectedTo = NewStringSet()
	}
	if p.DependsOn == nil {
		p.DependsOn = NewStringSet()
	}
}
