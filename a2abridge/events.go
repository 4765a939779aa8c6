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

package a2abridge

// StreamEvent is the normalized output unit the bridge emits to its consumer.
// It is a sealed union: the chat layer switches over the concrete types and
// unknown events are a programming error, not a runtime condition.
type StreamEvent interface {
	isStreamEvent()
}

func (StreamStart) isStreamEvent()      {}
func (ResponseMetadata) isStreamEvent() {}
func (TextStart) isStreamEvent()        {}
func (TextDelta) isStreamEvent()        {}
func (TextEnd) isStreamEvent()          {}
func (FileEvent) isStreamEvent()        {}
func (ToolCallEvent) isStreamEvent()    {}
func (ErrorEvent) isStreamEvent()       {}
func (Finish) isStreamEvent()           {}

// StreamStart opens every stream, before any content event.
type StreamStart struct{}

// ResponseMetadata carries the remote task correlation identifiers.
// Emitted at most once per stream, as soon as they are known.
type ResponseMetadata struct {
	TaskID    string
	ContextID string
}

// TextStart opens a text block. Every TextDelta and the closing TextEnd for
// the block carry the same ID.
type TextStart struct {
	ID string
}

// TextDelta carries a piece of text for an open block.
type TextDelta struct {
	ID   string
	Text string
}

// TextEnd closes a text block.
type TextEnd struct {
	ID string
}

// FileEvent carries a file produced by the agent, either inline (Data) or by
// reference (URI). Exactly one of Data and URI is set.
type FileEvent struct {
	Name      string
	MediaType string
	Data      []byte
	URI       string
}

// ToolCallEvent reports a tool invocation initiated by the remote agent.
// Arguments is the JSON-serialized argument object.
type ToolCallEvent struct {
	ID        string
	Function  string
	Arguments string
}

// ErrorEvent reports a recoverable or terminal stream failure to the consumer.
type ErrorEvent struct {
	Message string
}

// FinishReason explains why a stream terminated.
type FinishReason string

const (
	// ReasonStop is a normal completion.
	ReasonStop FinishReason = "stop"
	// ReasonError is a completion caused by a failure.
	ReasonError FinishReason = "error"
)

// Finish terminates a stream. Exactly one Finish is emitted per stream and no
// event follows it.
type Finish struct {
	Reason FinishReason
}
