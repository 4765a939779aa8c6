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
	"errors"
	"fmt"
)

// ErrMissingAgentURL is returned at construction time when no agent URL is
// configured. The bridge cannot operate without one.
var ErrMissingAgentURL = errors.New("agent URL is required")

// UnsupportedPartError reports a prompt part kind the codec cannot convert to
// a protocol part. It is propagated to the caller and never retried.
type UnsupportedPartError struct {
	Kind string
}

func (e *UnsupportedPartError) Error() string {
	return fmt.Sprintf("unsupported prompt part kind: %s", e.Kind)
}

// TimeoutError reports a call that exceeded its configured deadline. It is
// distinguishable from connection failures so callers can tune timeouts
// separately from availability handling.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to agent %s timed out: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError reports a call that failed after exhausting every configured
// retry attempt. Err holds the last attempt's failure.
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent %s unreachable after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamError reports a failure while iterating a streamed response. The
// processor converts it into a terminal ErrorEvent rather than a crash.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("agent stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
