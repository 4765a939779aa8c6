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

// Role identifies the author of a prompt message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the caller's prompt history.
type Message struct {
	Role  Role
	Parts []Part
}

// Part is a sealed union of prompt content kinds the codec understands.
// Anything else fails encoding with an UnsupportedPartError.
type Part interface {
	isPart()
}

func (TextPart) isPart() {}
func (FilePart) isPart() {}

// TextPart is plain prompt text.
type TextPart struct {
	Text string
}

// FilePart is a file attachment, either by reference (URI) or inline (Data).
type FilePart struct {
	URI       string
	Data      []byte
	MediaType string
	Name      string
}

// Text returns the concatenated text content of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}
