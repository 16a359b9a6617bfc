// Package espalier is a visual dataflow-programming engine: boards of
// typed operation nodes connected through typed pins, interpreted as an
// executable program.
//
// The Engine at this level wraps the graph model (pkg/flow), the
// repair pipeline (pkg/flow/cleanup), the undoable command layer
// (pkg/flow/commands), the execution protocol (pkg/flow/execution) and
// the built-in node catalog (pkg/catalog) behind one embeddable API.
package espalier
