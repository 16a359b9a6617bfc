package flow

import "github.com/google/uuid"

// NewID returns a fresh globally unique identifier.
// Every board element (node, pin, layer, variable, comment, run) gets one.
func NewID() string {
	return uuid.NewString()
}
