// Copyright 2025 The AgentCanvas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package task holds the canvas-side task and document model: the records
// created and advanced by webhook callbacks from remote agents, and the
// persistent store behind them.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Sentinel errors for store lookups.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// Status is the lifecycle state of a canvas task.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusWorking       Status = "working"
	StatusInputRequired Status = "input-required"
	StatusAuthRequired  Status = "auth-required"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCanceled      Status = "canceled"
	StatusRejected      Status = "rejected"
	StatusUnknown       Status = "unknown"
)

// Valid reports whether s is a recognized lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusWorking, StatusInputRequired, StatusAuthRequired,
		StatusCompleted, StatusFailed, StatusCanceled, StatusRejected, StatusUnknown:
		return true
	}
	return false
}

// Terminal reports whether the task can no longer change state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusRejected:
		return true
	}
	return false
}

// Task is one unit of agent work tracked on the canvas.
type Task struct {
	ID            string
	ContextID     string
	Title         string
	Status        Status
	StatusMessage string

	// Result holds the structured outcome reported by the agent, if any.
	Result map[string]any

	// WebhookToken authorizes status callbacks for this task. Compared in
	// constant time on every update.
	WebhookToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is a canvas document that tasks may attach to.
type Document struct {
	ID        string
	Title     string
	Content   map[string]any
	TaskIDs   []string
	CreatedAt time.Time
}

// Update describes a partial change to a task. Nil fields are left as-is.
type Update struct {
	Status        *Status
	StatusMessage *string
	Result        map[string]any
}

// Descriptor is a task announcement embedded in an agent artifact. Agents
// send these when they spawn work that the canvas should start tracking.
type Descriptor struct {
	ID            string         `mapstructure:"id"`
	Title         string         `mapstructure:"title"`
	Description   string         `mapstructure:"description"`
	Status        string         `mapstructure:"status"`
	ContextID     string         `mapstructure:"contextId"`
	AssignedAgent string         `mapstructure:"assignedAgent"`
	Priority      string         `mapstructure:"priority"`
	Order         int            `mapstructure:"order"`
	Metadata      map[string]any `mapstructure:"metadata"`
}

// Result folds the descriptor's informational fields into the opaque result
// map persisted with the task. Zero-valued fields are omitted; nil when the
// descriptor carries nothing beyond its identity.
func (d *Descriptor) Result() map[string]any {
	result := make(map[string]any)
	if d.Description != "" {
		result["description"] = d.Description
	}
	if d.AssignedAgent != "" {
		result["assignedAgent"] = d.AssignedAgent
	}
	if d.Priority != "" {
		result["priority"] = d.Priority
	}
	if d.Order != 0 {
		result["order"] = d.Order
	}
	if len(d.Metadata) > 0 {
		result["metadata"] = d.Metadata
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// DecodeDescriptor decodes the loosely-typed descriptor payload from a data
// part. Unknown fields are ignored; a missing title is rejected because the
// title is the dedup key for redelivered announcements.
func DecodeDescriptor(raw map[string]any) (*Descriptor, error) {
	var d Descriptor
	if err := mapstructure.Decode(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode task descriptor: %w", err)
	}
	if d.Title == "" {
		return nil, fmt.Errorf("task descriptor has no title")
	}
	return &d, nil
}
