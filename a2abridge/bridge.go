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

// Package a2abridge adapts a remote A2A agent to the flat event stream the
// chat UI consumes. It encodes conversation prompts into protocol messages,
// manages transport with retry and streaming fallback, and folds the
// heterogeneous protocol chunks back into ordered UI events.
package a2abridge

import (
	"context"
	"iter"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
)

// Bridge is the top-level adapter for one remote agent. It is safe for
// concurrent use; each Run spins up an independent processor.
type Bridge struct {
	client     *Client
	maxHistory int
	onFinish   func(reason FinishReason)
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	Client ClientConfig

	// MaxHistory caps how many prior conversation turns are folded into the
	// outbound prompt. Default: DefaultMaxHistory.
	MaxHistory int

	// OnFinish, when set, observes the finish reason of every stream.
	// Used for metrics.
	OnFinish func(reason FinishReason)
}

// NewBridge builds the adapter. The remote agent is contacted lazily on the
// first Run.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	client, err := NewClient(cfg.Client)
	if err != nil {
		return nil, err
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	return &Bridge{client: client, maxHistory: cfg.MaxHistory, onFinish: cfg.OnFinish}, nil
}

// RunOptions carries per-call parameters.
type RunOptions struct {
	// ContextID continues an existing conversation on the remote agent.
	ContextID string

	// TaskID continues an existing task, typically after input-required.
	TaskID string

	// DocumentID tags the outbound message with the canvas document the
	// conversation is anchored to.
	DocumentID string
}

// Run sends the prompt to the remote agent and returns the resulting UI
// event stream. Encoding failures are reported synchronously; everything
// after the call starts arrives in-band on the stream.
func (b *Bridge) Run(ctx context.Context, prompt []Message, opts RunOptions) (iter.Seq[StreamEvent], error) {
	msg, err := EncodePrompt(prompt, CodecConfig{
		MaxHistory: b.maxHistory,
		DocumentID: opts.DocumentID,
	})
	if err != nil {
		return nil, err
	}
	msg.ContextID = opts.ContextID
	msg.TaskID = a2a.TaskID(opts.TaskID)

	slog.Debug("Dispatching prompt to agent",
		"contextID", opts.ContextID,
		"taskID", opts.TaskID,
		"turns", len(prompt))

	chunks := b.client.Stream(ctx, msg)
	events := NewProcessor().Process(chunks)
	if b.onFinish == nil {
		return events, nil
	}
	return func(yield func(StreamEvent) bool) {
		for event := range events {
			if f, ok := event.(Finish); ok {
				b.onFinish(f.Reason)
			}
			if !yield(event) {
				return
			}
		}
	}, nil
}
