// Package flow contains the persisted graph model: boards, nodes,
// layers, pins, variables and comments. All cross-references between
// graph elements are by ID; resolution happens through a transient pin
// lookup built fresh for every cleanup or run.
package flow
