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

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"iter"
	"net/http"
	"time"

	"github.com/agentcanvas/agentcanvas/a2abridge"
)

// chatStreamTimeout bounds one hosted chat exchange end to end.
const chatStreamTimeout = 60 * time.Second

// promptRunner is the slice of the bridge the chat route depends on.
type promptRunner interface {
	Run(ctx context.Context, prompt []a2abridge.Message, opts a2abridge.RunOptions) (iter.Seq[a2abridge.StreamEvent], error)
}

// chatRequest is the hosted chat POST body.
type chatRequest struct {
	Messages   []chatMessage `json:"messages"`
	ContextID  string        `json:"contextId,omitempty"`
	DocumentID string        `json:"documentId,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatHandler serves one chat exchange as newline-delimited JSON events,
// flushed as they arrive so the UI can render the response incrementally.
func chatHandler(bridge promptRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		prompt := decodePrompt(req.Messages)
		if len(prompt) == 0 {
			http.Error(w, "messages are required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), chatStreamTimeout)
		defer cancel()

		events, err := bridge.Run(ctx, prompt, a2abridge.RunOptions{
			ContextID:  req.ContextID,
			DocumentID: req.DocumentID,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)
		for event := range events {
			if err := enc.Encode(eventPayload(event)); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// decodePrompt maps the wire messages onto the bridge prompt, dropping
// entries with unknown roles or no content.
func decodePrompt(messages []chatMessage) []a2abridge.Message {
	var prompt []a2abridge.Message
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case "user":
			prompt = append(prompt, a2abridge.NewTextMessage(a2abridge.RoleUser, m.Content))
		case "assistant":
			prompt = append(prompt, a2abridge.NewTextMessage(a2abridge.RoleAssistant, m.Content))
		}
	}
	return prompt
}

// eventPayload flattens a stream event into its wire form.
func eventPayload(event a2abridge.StreamEvent) map[string]any {
	switch e := event.(type) {
	case a2abridge.StreamStart:
		return map[string]any{"type": "start"}
	case a2abridge.ResponseMetadata:
		return map[string]any{"type": "metadata", "taskId": e.TaskID, "contextId": e.ContextID}
	case a2abridge.TextStart:
		return map[string]any{"type": "text-start", "id": e.ID}
	case a2abridge.TextDelta:
		return map[string]any{"type": "text-delta", "id": e.ID, "delta": e.Text}
	case a2abridge.TextEnd:
		return map[string]any{"type": "text-end", "id": e.ID}
	case a2abridge.ToolCallEvent:
		return map[string]any{"type": "tool-call", "id": e.ID, "function": e.Function, "arguments": e.Arguments}
	case a2abridge.FileEvent:
		p := map[string]any{"type": "file", "name": e.Name, "mediaType": e.MediaType}
		if e.URI != "" {
			p["uri"] = e.URI
		} else {
			p["data"] = base64.StdEncoding.EncodeToString(e.Data)
		}
		return p
	case a2abridge.ErrorEvent:
		return map[string]any{"type": "error", "message": e.Message}
	case a2abridge.Finish:
		return map[string]any{"type": "finish", "reason": string(e.Reason)}
	default:
		return map[string]any{"type": "unknown"}
	}
}
