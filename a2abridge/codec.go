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
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// DefaultMaxHistory is the number of prior turns included in the history
// preamble when the codec config does not set one.
const DefaultMaxHistory = 10

// MetadataKeyDocumentID is the message metadata key carrying the canvas
// document id. It rides alongside the prompt so the remote agent can
// correlate its output with a specific canvas without polluting the text.
const MetadataKeyDocumentID = "canvasDocumentId"

// CodecConfig controls prompt-to-protocol encoding.
type CodecConfig struct {
	// MaxHistory bounds the number of prior turns included in the
	// history preamble. Older turns are dropped silently.
	MaxHistory int

	// DocumentID, when set, is attached as message metadata.
	DocumentID string
}

// EncodePrompt converts the caller's ordered prompt history into the single
// outbound protocol message the remote agent expects. The last message is the
// current request; preceding user/assistant turns become a bounded preamble.
func EncodePrompt(prompt []Message, cfg CodecConfig) (*a2a.Message, error) {
	if len(prompt) == 0 {
		return nil, fmt.Errorf("prompt is empty")
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	last := prompt[len(prompt)-1]
	body := buildBody(prompt[:len(prompt)-1], last.Text(), cfg.MaxHistory)

	parts := []a2a.Part{a2a.TextPart{Text: body}}
	for _, p := range last.Parts {
		switch fp := p.(type) {
		case TextPart:
			// Already folded into the body.
		case FilePart:
			converted, err := encodeFilePart(fp)
			if err != nil {
				return nil, err
			}
			parts = append(parts, converted)
		default:
			return nil, &UnsupportedPartError{Kind: fmt.Sprintf("%T", p)}
		}
	}

	msg := a2a.NewMessage(a2a.MessageRoleUser, parts...)
	if cfg.DocumentID != "" {
		msg.Metadata = map[string]any{MetadataKeyDocumentID: cfg.DocumentID}
	}
	return msg, nil
}

// buildBody assembles the history preamble and the current request text.
func buildBody(history []Message, current string, maxHistory int) string {
	var lines []string
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case RoleUser:
			lines = append(lines, "User: "+text)
		case RoleAssistant:
			lines = append(lines, "Assistant: "+text)
		}
	}
	if len(lines) > maxHistory {
		lines = lines[len(lines)-maxHistory:]
	}

	if len(lines) == 0 {
		return "Current request: " + current
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nCurrent request: ")
	b.WriteString(current)
	return b.String()
}

func encodeFilePart(fp FilePart) (a2a.Part, error) {
	meta := a2a.FileMeta{MimeType: fp.MediaType, Name: fp.Name}
	if fp.URI != "" {
		return a2a.FilePart{File: a2a.FileURI{
			URI:      fp.URI,
			FileMeta: meta,
		}}, nil
	}
	if fp.Data != nil {
		return a2a.FilePart{File: a2a.FileBytes{
			Bytes:    base64.StdEncoding.EncodeToString(fp.Data),
			FileMeta: meta,
		}}, nil
	}
	return nil, &UnsupportedPartError{Kind: "file part with neither URI nor data"}
}
