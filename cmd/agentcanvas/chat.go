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
	"fmt"
	"os"

	"github.com/agentcanvas/agentcanvas/a2abridge"
	"github.com/agentcanvas/agentcanvas/config"
)

// ChatCmd sends a one-shot prompt to the remote agent and prints the
// streamed response.
type ChatCmd struct {
	Prompt    string `arg:"" help:"The prompt to send."`
	AgentURL  string `help:"Remote agent URL (overrides A2A_AGENT_URL)." placeholder:"URL"`
	ContextID string `name:"context-id" help:"Continue an existing conversation." placeholder:"ID"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	agentURL := c.AgentURL
	if agentURL == "" {
		agentURL = cfg.Agent.URL
	}
	if agentURL == "" {
		return fmt.Errorf("agent URL is required (set %s or pass --agent-url)", config.EnvAgentURL)
	}

	bridge, err := a2abridge.NewBridge(a2abridge.BridgeConfig{
		Client: a2abridge.ClientConfig{
			AgentURL:   agentURL,
			Timeout:    cfg.Agent.Timeout,
			MaxRetries: cfg.Agent.MaxRetries,
		},
		MaxHistory: cfg.Agent.MaxHistory,
	})
	if err != nil {
		return err
	}

	prompt := []a2abridge.Message{
		a2abridge.NewTextMessage(a2abridge.RoleUser, c.Prompt),
	}

	events, err := bridge.Run(context.Background(), prompt, a2abridge.RunOptions{
		ContextID: c.ContextID,
	})
	if err != nil {
		return err
	}

	for event := range events {
		switch e := event.(type) {
		case a2abridge.ResponseMetadata:
			fmt.Fprintf(os.Stderr, "[task %s context %s]\n", e.TaskID, e.ContextID)
		case a2abridge.TextDelta:
			fmt.Print(e.Text)
		case a2abridge.TextEnd:
			fmt.Println()
		case a2abridge.ToolCallEvent:
			fmt.Fprintf(os.Stderr, "[tool %s %s]\n", e.Function, e.Arguments)
		case a2abridge.FileEvent:
			fmt.Fprintf(os.Stderr, "[file %s %s %d bytes]\n", e.Name, e.MediaType, len(e.Data))
		case a2abridge.ErrorEvent:
			fmt.Fprintf(os.Stderr, "error: %s\n", e.Message)
		case a2abridge.Finish:
			if e.Reason == a2abridge.ReasonError {
				return fmt.Errorf("agent stream finished with error")
			}
		}
	}
	return nil
}
