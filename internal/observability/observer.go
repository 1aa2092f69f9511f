// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package observability provides lightweight timing and event logging for
// the detection and masking pipeline.
package observability

import (
	"encoding/json"
	"io"
	"time"
)

// StandardObserver records component timings and emits them as JSON when
// debug-level observability is enabled.
type StandardObserver struct {
	level  Level
	writer io.Writer
}

// Level controls how much the observer emits.
type Level int

const (
	// LevelOff disables all output.
	LevelOff Level = 0
	// LevelMetrics collects timings without emitting them.
	LevelMetrics Level = 1
	// LevelDebug emits one JSON line per operation.
	LevelDebug Level = 2
)

// NewStandardObserver creates an observer writing to w.
func NewStandardObserver(level Level, w io.Writer) *StandardObserver {
	return &StandardObserver{level: level, writer: w}
}

// StartTiming returns a completion function that logs the operation's
// duration and outcome when called.
func (o *StandardObserver) StartTiming(component, operation, subject string) func(success bool, metadata map[string]interface{}) {
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		o.LogOperation(OperationData{
			Component:  component,
			Operation:  operation,
			Subject:    subject,
			DurationMs: time.Since(start).Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		})
	}
}

// LogOperation logs one completed operation.
func (o *StandardObserver) LogOperation(data OperationData) {
	if o == nil || o.level < LevelDebug || o.writer == nil {
		return
	}
	json.NewEncoder(o.writer).Encode(data) //nolint:errcheck // best-effort debug output
}

// OperationData describes one timed operation. Subject is the unit ID or
// file path the operation ran against.
type OperationData struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Subject    string                 `json:"subject,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
