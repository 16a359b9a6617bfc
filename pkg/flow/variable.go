package flow

// Variable is a named, typed value slot scoped to a board. Secret
// variables are redacted from editor payloads; exposed variables can be
// overridden by the caller submitting a run.
type Variable struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Category     string       `json:"category,omitempty" yaml:"category,omitempty"`
	DataType     VariableType `json:"data_type" yaml:"data_type"`
	ValueKind    ValueKind    `json:"value_kind" yaml:"value_kind"`
	DefaultValue any          `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Exposed      bool         `json:"exposed,omitempty" yaml:"exposed,omitempty"`
	Secret       bool         `json:"secret,omitempty" yaml:"secret,omitempty"`
	Editable     bool         `json:"editable" yaml:"editable"`
}

// NewVariable creates a variable with a fresh ID.
func NewVariable(name string, dataType VariableType, defaultValue any) *Variable {
	return &Variable{
		ID:           NewID(),
		Name:         name,
		DataType:     dataType,
		ValueKind:    KindNormal,
		DefaultValue: defaultValue,
		Editable:     true,
	}
}

// Clone returns a copy of the variable.
func (v *Variable) Clone() *Variable {
	out := *v
	return &out
}
