// Package schema exports the JSON schemas of the wire protocol: the
// board document, the run record and the command envelope. The graph
// editor consumes these machine-generated schemas; any change to the
// exported shapes is a breaking protocol change.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/commands"
	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/invopop/jsonschema"
)

// Export generates the schema for every wire protocol type, keyed by
// type name.
func Export() map[string]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: false,
	}
	return map[string]*jsonschema.Schema{
		"Board":           reflector.Reflect(&flow.Board{}),
		"Node":            reflector.Reflect(&flow.Node{}),
		"Pin":             reflector.Reflect(&flow.Pin{}),
		"Layer":           reflector.Reflect(&flow.Layer{}),
		"Variable":        reflector.Reflect(&flow.Variable{}),
		"Comment":         reflector.Reflect(&flow.Comment{}),
		"Run":             reflector.Reflect(&execution.Run{}),
		"CommandEnvelope": reflector.Reflect(&commands.Envelope{}),
	}
}

// MarshalAll renders the full schema set as one JSON document with
// deterministic key order.
func MarshalAll() ([]byte, error) {
	schemas := Export()
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make(map[string]json.RawMessage, len(schemas))
	for _, name := range names {
		data, err := json.Marshal(schemas[name])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema %s: %w", name, err)
		}
		ordered[name] = data
	}
	return json.MarshalIndent(ordered, "", "  ")
}
