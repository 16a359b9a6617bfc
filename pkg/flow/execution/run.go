// Package execution walks a board at run time: pull-based evaluation
// for data pins, push-based activation for execution pins, a tree of
// sub-contexts for tracing, and a per-run memoization cache.
package execution

import (
	"time"

	"github.com/espalierhq/espalier/pkg/flow"
)

// RunStatus is the lifecycle state of one top-level execution.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunStopped RunStatus = "stopped"
)

// NodeState is the outcome of one node invocation within a run.
type NodeState string

const (
	StatePending     NodeState = "pending"
	StateRunning     NodeState = "running"
	StateSuccess     NodeState = "success"
	StateError       NodeState = "error"
	StateInterrupted NodeState = "interrupted"
)

// LogMessage is one entry in a sub-context's log.
type LogMessage struct {
	Message string        `json:"message"`
	Level   flow.LogLevel `json:"level"`
	Start   int64         `json:"start"`
	End     int64         `json:"end"`
}

// Trace records one node invocation: timing, outcome and logs.
type Trace struct {
	ID     string       `json:"id"`
	NodeID string       `json:"node_id"`
	Start  int64        `json:"start"`
	End    int64        `json:"end"`
	State  NodeState    `json:"state"`
	Logs   []LogMessage `json:"logs,omitempty"`
}

// Run is the record of one top-level execution trigger. It is
// append-only while the run is live and finalized exactly once.
type Run struct {
	ID              string        `json:"id"`
	BoardID         string        `json:"board_id"`
	Status          RunStatus     `json:"status"`
	Start           int64         `json:"start"`
	End             int64         `json:"end"`
	LogLevel        flow.LogLevel `json:"log_level"`
	HighestLogLevel flow.LogLevel `json:"highest_log_level"`
	Traces          []Trace       `json:"traces,omitempty"`
	VisitedNodes    []string      `json:"visited_nodes,omitempty"`
	PayloadSize     int64         `json:"payload_size,omitempty"`
}

// NewRun creates a running record for the given board.
func NewRun(boardID string, level flow.LogLevel) *Run {
	return &Run{
		ID:       flow.NewID(),
		BoardID:  boardID,
		Status:   RunRunning,
		Start:    time.Now().UnixMicro(),
		LogLevel: level,
	}
}
