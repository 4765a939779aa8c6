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

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// Tool call lifecycle markers carried in data parts.
const (
	dataTypeTask              = "task"
	dataTypeToolCallInitiated = "toolcall_initiated"
	dataTypeToolCallCompleted = "toolcall_completed"
	dataTypeToolCallFailed    = "toolcall_failed"
)

// dedupKey identifies one tool call lifecycle notification. Agents may
// redeliver the same notification across chunks; each is surfaced once.
type dedupKey struct {
	id    string
	event string
}

// Processor folds a raw A2A chunk stream into the flat UI event stream.
// One Processor handles one response; it is not safe for concurrent use.
type Processor struct {
	metaSent bool
	closed   bool
	seen     map[dedupKey]struct{}
}

// NewProcessor returns a processor for a single response stream.
func NewProcessor() *Processor {
	return &Processor{seen: make(map[dedupKey]struct{})}
}

// Process translates the chunk stream into UI events. The sequence always
// begins with StreamStart and ends with exactly one Finish; upstream errors
// surface in-band as an ErrorEvent followed by Finish(ReasonError).
func (p *Processor) Process(chunks iter.Seq2[a2a.Event, error]) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		if !yield(StreamStart{}) {
			return
		}
		for chunk, err := range chunks {
			if err != nil {
				p.closed = true
				if !yield(ErrorEvent{Message: err.Error()}) {
					return
				}
				yield(Finish{Reason: ReasonError})
				return
			}
			if !p.handleChunk(chunk, yield) {
				return
			}
			if p.closed {
				return
			}
		}
		if !p.closed {
			yield(Finish{Reason: ReasonStop})
		}
	}
}

func (p *Processor) handleChunk(chunk a2a.Event, yield func(StreamEvent) bool) bool {
	switch e := chunk.(type) {
	case *a2a.Message:
		return p.emitParts(e.Parts, yield)

	case *a2a.Task:
		if !p.emitMetadata(e.ID, e.ContextID, yield) {
			return false
		}
		if e.Status.Message != nil {
			if !p.emitParts(e.Status.Message.Parts, yield) {
				return false
			}
		}
		for _, artifact := range e.Artifacts {
			if artifact == nil {
				continue
			}
			if !p.emitParts(artifact.Parts, yield) {
				return false
			}
		}
		if e.Status.State.Terminal() {
			p.closed = true
			reason := ReasonStop
			if e.Status.State == a2a.TaskStateFailed {
				reason = ReasonError
			}
			return yield(Finish{Reason: reason})
		}
		return true

	case *a2a.TaskArtifactUpdateEvent:
		if !p.emitMetadata(e.TaskID, e.ContextID, yield) {
			return false
		}
		if e.Artifact == nil {
			return true
		}
		return p.emitParts(e.Artifact.Parts, yield)

	case *a2a.TaskStatusUpdateEvent:
		if !p.emitMetadata(e.TaskID, e.ContextID, yield) {
			return false
		}
		if e.Status.Message != nil {
			if !p.emitParts(e.Status.Message.Parts, yield) {
				return false
			}
		}
		if e.Final || e.Status.State.Terminal() {
			p.closed = true
			reason := ReasonStop
			if e.Status.State == a2a.TaskStateFailed {
				reason = ReasonError
			}
			return yield(Finish{Reason: reason})
		}
		return true

	default:
		p.closed = true
		if !yield(ErrorEvent{Message: fmt.Sprintf("unexpected event type %T", chunk)}) {
			return false
		}
		return yield(Finish{Reason: ReasonError})
	}
}

// emitMetadata yields the task/context identifiers once per stream.
func (p *Processor) emitMetadata(taskID a2a.TaskID, contextID string, yield func(StreamEvent) bool) bool {
	if p.metaSent {
		return true
	}
	p.metaSent = true
	return yield(ResponseMetadata{TaskID: string(taskID), ContextID: contextID})
}

func (p *Processor) emitParts(parts []a2a.Part, yield func(StreamEvent) bool) bool {
	for _, part := range parts {
		switch pt := part.(type) {
		case a2a.TextPart:
			if !emitText(pt.Text, yield) {
				return false
			}
		case a2a.FilePart:
			if !emitFile(pt, yield) {
				return false
			}
		case a2a.DataPart:
			if !p.emitData(pt, yield) {
				return false
			}
		default:
			slog.Debug("Skipping unrecognized part", "type", fmt.Sprintf("%T", part))
		}
	}
	return true
}

// emitText surfaces one text fragment as a complete start/delta/end block.
func emitText(text string, yield func(StreamEvent) bool) bool {
	id := uuid.NewString()
	if !yield(TextStart{ID: id}) {
		return false
	}
	if !yield(TextDelta{ID: id, Text: text}) {
		return false
	}
	return yield(TextEnd{ID: id})
}

func emitFile(part a2a.FilePart, yield func(StreamEvent) bool) bool {
	switch f := part.File.(type) {
	case a2a.FileBytes:
		data, err := base64.StdEncoding.DecodeString(f.Bytes)
		if err != nil {
			slog.Debug("File part is not base64, passing through raw", "name", f.Name, "error", err)
			data = []byte(f.Bytes)
		}
		return yield(FileEvent{Name: f.Name, MediaType: f.MimeType, Data: data})
	case a2a.FileURI:
		return yield(FileEvent{Name: f.Name, MediaType: f.MimeType, URI: f.URI})
	default:
		slog.Debug("Skipping unrecognized file content", "type", fmt.Sprintf("%T", part.File))
		return true
	}
}

// emitData routes structured data parts. Tool call lifecycle notifications
// map to their UI events with at-most-once delivery; anything else is shown
// to the user as serialized text rather than dropped.
func (p *Processor) emitData(part a2a.DataPart, yield func(StreamEvent) bool) bool {
	kind, _ := part.Data["type"].(string)
	switch kind {
	case dataTypeToolCallInitiated, dataTypeToolCallCompleted, dataTypeToolCallFailed:
		return p.emitToolCall(kind, part.Data, yield)
	default:
		raw, err := json.Marshal(part.Data)
		if err != nil {
			slog.Debug("Skipping unserializable data part", "error", err)
			return true
		}
		return emitText(string(raw), yield)
	}
}

func (p *Processor) emitToolCall(kind string, data map[string]any, yield func(StreamEvent) bool) bool {
	call, _ := data["toolcall"].(map[string]any)
	if call == nil {
		slog.Debug("Tool call notification has no payload", "type", kind)
		return true
	}
	id, _ := call["id"].(string)

	key := dedupKey{id: id, event: kind}
	if _, dup := p.seen[key]; dup {
		return true
	}
	p.seen[key] = struct{}{}

	switch kind {
	case dataTypeToolCallInitiated:
		function, _ := call["function"].(string)
		args := ""
		if rawArgs, ok := call["arguments"]; ok && rawArgs != nil {
			if s, ok := rawArgs.(string); ok {
				args = s
			} else if encoded, err := json.Marshal(rawArgs); err == nil {
				args = string(encoded)
			}
		}
		return yield(ToolCallEvent{ID: id, Function: function, Arguments: args})
	case dataTypeToolCallFailed:
		reason, _ := call["result"].(string)
		if reason == "" {
			reason, _ = call["error"].(string)
		}
		if reason == "" {
			reason = "tool call failed"
		}
		if function, _ := call["function"].(string); function != "" {
			reason = function + ": " + reason
		}
		return yield(ErrorEvent{Message: reason})
	default:
		// Completion is tracked for dedup only; the agent's follow-up text
		// carries the outcome.
		return true
	}
}
