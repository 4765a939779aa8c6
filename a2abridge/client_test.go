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
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC scripts protocol responses for the client under test.
type fakeRPC struct {
	sendCalls   int
	sendErrs    []error
	sendResult  a2a.SendMessageResult
	streamCalls int
	stream      iter.Seq2[a2a.Event, error]
	lastParams  *a2a.MessageSendParams
}

func (f *fakeRPC) SendMessage(_ context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	f.lastParams = params
	call := f.sendCalls
	f.sendCalls++
	if call < len(f.sendErrs) && f.sendErrs[call] != nil {
		return nil, f.sendErrs[call]
	}
	return f.sendResult, nil
}

func (f *fakeRPC) SendStreamingMessage(_ context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	f.lastParams = params
	f.streamCalls++
	if f.stream != nil {
		return f.stream
	}
	return func(yield func(a2a.Event, error) bool) {}
}

// newTestClient wires a fake in place of the resolved protocol client and
// collapses the backoff schedule so retries are instant.
func newTestClient(t *testing.T, cfg ClientConfig, rpc protocolClient) *Client {
	t.Helper()
	saved := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond}
	t.Cleanup(func() { backoffSchedule = saved })

	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.rpc = rpc
	return c
}

func completedTask() *a2a.Task {
	return &a2a.Task{
		ID:        "task-1",
		ContextID: "ctx-1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
	}
}

func TestNewClient_RequiresAgentURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.ErrorIs(t, err, ErrMissingAgentURL)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(ClientConfig{AgentURL: "http://agent.local"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Equal(t, DefaultMaxRetries, c.cfg.MaxRetries)
}

func TestSend_Success(t *testing.T) {
	rpc := &fakeRPC{sendResult: completedTask()}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local"}, rpc)

	result, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, err)
	assert.Equal(t, completedTask().ID, result.(*a2a.Task).ID)
	assert.Equal(t, 1, rpc.sendCalls)

	require.NotNil(t, rpc.lastParams.Config)
	require.NotNil(t, rpc.lastParams.Config.Blocking)
	assert.True(t, *rpc.lastParams.Config.Blocking)
}

func TestSend_RetriesTransientFailure(t *testing.T) {
	rpc := &fakeRPC{
		sendErrs:   []error{errors.New("connection refused"), errors.New("connection refused")},
		sendResult: completedTask(),
	}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local", MaxRetries: 3}, rpc)

	_, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, err)
	assert.Equal(t, 3, rpc.sendCalls)
}

func TestSend_ExhaustsRetries(t *testing.T) {
	boom := errors.New("connection refused")
	rpc := &fakeRPC{sendErrs: []error{boom, boom, boom}}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local", MaxRetries: 3}, rpc)

	_, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, "http://agent.local", te.URL)
	assert.ErrorIs(t, err, boom)
}

func TestSend_NoRetryOnProtocolRejection(t *testing.T) {
	rpc := &fakeRPC{sendErrs: []error{a2a.ErrTaskNotFound, a2a.ErrTaskNotFound, a2a.ErrTaskNotFound}}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local", MaxRetries: 3}, rpc)

	_, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.ErrorIs(t, err, a2a.ErrTaskNotFound)
	assert.Equal(t, 1, rpc.sendCalls, "protocol rejections must not be retried")
}

func TestSend_NoRetryOnInvalidRequest(t *testing.T) {
	rejections := []error{
		a2a.ErrInvalidRequest,
		a2a.ErrInvalidParams,
		a2a.ErrMethodNotFound,
		a2a.ErrParseError,
		a2a.ErrUnsupportedOperation,
		a2a.ErrPushNotificationNotSupported,
	}
	for _, sentinel := range rejections {
		rpc := &fakeRPC{sendErrs: []error{sentinel, sentinel, sentinel}}
		c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local", MaxRetries: 3}, rpc)

		_, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, rpc.sendCalls, "rejection %v must not be retried", sentinel)
	}
}

func TestSend_NoRetryAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rpc := &fakeRPC{sendErrs: []error{context.Canceled}}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local", MaxRetries: 3}, rpc)

	_, err := c.Send(ctx, a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rpc.sendCalls)
}

func TestSend_AttachesPushConfig(t *testing.T) {
	rpc := &fakeRPC{sendResult: completedTask()}
	c := newTestClient(t, ClientConfig{
		AgentURL: "http://agent.local",
		Push:     &PushNotificationTarget{URL: "https://canvas.local/webhook", Token: "secret"},
	}, rpc)

	_, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, err)

	push := rpc.lastParams.Config.PushConfig
	require.NotNil(t, push)
	assert.Equal(t, "https://canvas.local/webhook", push.URL)
	assert.Equal(t, "secret", push.Token)
}

func TestSend_GeneratesPushToken(t *testing.T) {
	rpc := &fakeRPC{sendResult: completedTask()}
	c := newTestClient(t, ClientConfig{
		AgentURL: "http://agent.local",
		Push:     &PushNotificationTarget{URL: "https://canvas.local/webhook"},
	}, rpc)

	_, err := c.Send(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}))
	require.NoError(t, err)
	assert.NotEmpty(t, rpc.lastParams.Config.PushConfig.Token)
}

func TestStream_YieldsChunks(t *testing.T) {
	rpc := &fakeRPC{
		stream: func(yield func(a2a.Event, error) bool) {
			yield(completedTask(), nil)
		},
	}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local"}, rpc)

	var got []a2a.Event
	for event, err := range c.Stream(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"})) {
		require.NoError(t, err)
		got = append(got, event)
	}
	require.Len(t, got, 1)
	require.NotNil(t, rpc.lastParams.Config.Blocking)
	assert.False(t, *rpc.lastParams.Config.Blocking)
}

func TestStream_FallsBackToUnary(t *testing.T) {
	rpc := &fakeRPC{
		stream: func(yield func(a2a.Event, error) bool) {
			yield(nil, errors.New("streaming unsupported"))
		},
		sendResult: completedTask(),
	}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local"}, rpc)

	var got []a2a.Event
	for event, err := range c.Stream(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"})) {
		require.NoError(t, err)
		got = append(got, event)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 1, rpc.sendCalls, "failed stream setup degrades to one unary call")
}

func TestStream_MidStreamErrorDoesNotFallBack(t *testing.T) {
	rpc := &fakeRPC{
		stream: func(yield func(a2a.Event, error) bool) {
			if !yield(completedTask(), nil) {
				return
			}
			yield(nil, errors.New("connection reset"))
		},
	}
	c := newTestClient(t, ClientConfig{AgentURL: "http://agent.local"}, rpc)

	var events int
	var streamErr error
	for event, err := range c.Stream(context.Background(), a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"})) {
		if err != nil {
			streamErr = err
			continue
		}
		_ = event
		events++
	}

	assert.Equal(t, 1, events)
	var se *StreamError
	require.ErrorAs(t, streamErr, &se)
	assert.Equal(t, 0, rpc.sendCalls, "mid-stream failures must not replay the request")
}
