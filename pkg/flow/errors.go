package flow

import "errors"

// ErrNodeNotFound is returned by commands referencing an absent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrPinNotFound is returned when a pin ID cannot be resolved on the board.
var ErrPinNotFound = errors.New("pin not found")

// ErrVariableNotFound is returned when a variable ID is absent.
var ErrVariableNotFound = errors.New("variable not found")

// ErrCommentNotFound is returned when a comment ID is absent.
var ErrCommentNotFound = errors.New("comment not found")
