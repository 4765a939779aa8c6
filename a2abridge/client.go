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
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single protocol call when the config does not set one.
const DefaultTimeout = 10 * time.Second

// DefaultMaxRetries is the total number of unary attempts when the config
// does not set one.
const DefaultMaxRetries = 3

// backoffSchedule is the fixed delay before each retry attempt. The last
// entry is reused for any further attempts.
var backoffSchedule = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

// PushNotificationTarget configures out-of-band task delivery: the remote
// agent POSTs task lifecycle updates to URL, authenticated with Token.
type PushNotificationTarget struct {
	URL string

	// Token authorizes the callbacks. Generated per call when empty.
	Token string
}

// ClientConfig configures the transport client.
type ClientConfig struct {
	// AgentURL is the base URL of the remote A2A agent. Required.
	AgentURL string

	// Timeout bounds each individual protocol call. Default: DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the total number of unary attempts. Default: DefaultMaxRetries.
	MaxRetries int

	// Push, when set, is attached to every outbound call so the agent can
	// deliver later task updates to the webhook receiver.
	Push *PushNotificationTarget
}

// protocolClient is the slice of a2aclient.Client the transport depends on.
// Narrowed for substitution in tests.
type protocolClient interface {
	SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)
	SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]
}

// Client issues protocol calls to one remote A2A agent, in unary or streamed
// delivery mode, with bounded retry on transient failures.
type Client struct {
	cfg ClientConfig

	mu  sync.Mutex
	rpc protocolClient
}

// NewClient validates the configuration and returns a client. The agent card
// is resolved lazily on the first call, not here.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.AgentURL == "" {
		return nil, ErrMissingAgentURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Client{cfg: cfg}, nil
}

// connect resolves the agent card and builds the underlying protocol client.
// The resolved client is cached for the lifetime of this Client.
func (c *Client) connect(ctx context.Context) (protocolClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		return c.rpc, nil
	}

	source := strings.TrimSuffix(c.cfg.AgentURL, "/") + "/.well-known/agent.json"
	card, err := agentcard.DefaultResolver.Resolve(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card from %s: %w", source, err)
	}

	rpc, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to create protocol client: %w", err)
	}

	c.rpc = rpc
	return rpc, nil
}

// Send issues one blocking call and returns the terminal result. Transient
// failures are retried on the fixed backoff schedule; protocol rejections
// fail immediately.
func (c *Client) Send(ctx context.Context, msg *a2a.Message) (a2a.SendMessageResult, error) {
	params := c.buildParams(msg, true)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			slog.Debug("Retrying agent call", "url", c.cfg.AgentURL, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.sendOnce(ctx, params)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &TransportError{URL: c.cfg.AgentURL, Attempts: c.cfg.MaxRetries, Err: lastErr}
}

func (c *Client) sendOnce(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	rpc, err := c.connect(callCtx)
	if err != nil {
		return nil, c.wrapCallError(callCtx, err)
	}

	result, err := rpc.SendMessage(callCtx, params)
	if err != nil {
		return nil, c.wrapCallError(callCtx, err)
	}
	return result, nil
}

// wrapCallError maps deadline expiry to a TimeoutError so callers can tell
// slow agents from unreachable ones.
func (c *Client) wrapCallError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{URL: c.cfg.AgentURL, Err: err}
	}
	return err
}

// nonRetryable holds the protocol rejections that no amount of retrying can
// fix. Connection failures and timeouts stay retryable.
var nonRetryable = []error{
	context.Canceled,
	a2a.ErrTaskNotFound,
	a2a.ErrInvalidRequest,
	a2a.ErrInvalidParams,
	a2a.ErrMethodNotFound,
	a2a.ErrParseError,
	a2a.ErrUnsupportedOperation,
	a2a.ErrPushNotificationNotSupported,
}

// retryable reports whether another attempt could reasonably succeed.
func retryable(err error) bool {
	for _, sentinel := range nonRetryable {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}

// Stream issues one non-blocking call and yields the server-pushed chunks.
// A setup failure, before any chunk arrives, degrades to a unary call whose
// result is synthesized as a single-chunk stream: the request is never
// silently dropped.
func (c *Client) Stream(ctx context.Context, msg *a2a.Message) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		rpc, err := c.connect(ctx)
		if err != nil {
			slog.Warn("Stream setup failed, falling back to unary", "url", c.cfg.AgentURL, "error", err)
			c.fallbackUnary(ctx, msg, yield)
			return
		}

		params := c.buildParams(msg, false)
		received := false
		for event, err := range rpc.SendStreamingMessage(ctx, params) {
			if err != nil {
				if !received {
					slog.Warn("Stream setup failed, falling back to unary", "url", c.cfg.AgentURL, "error", err)
					c.fallbackUnary(ctx, msg, yield)
					return
				}
				yield(nil, &StreamError{Err: err})
				return
			}
			received = true
			if !yield(event, nil) {
				return
			}
		}
	}
}

// fallbackUnary performs a blocking send and presents its terminal result as
// a one-chunk stream.
func (c *Client) fallbackUnary(ctx context.Context, msg *a2a.Message, yield func(a2a.Event, error) bool) {
	result, err := c.Send(ctx, msg)
	if err != nil {
		yield(nil, err)
		return
	}
	event, ok := result.(a2a.Event)
	if !ok {
		yield(nil, fmt.Errorf("unexpected unary result type %T", result))
		return
	}
	yield(event, nil)
}

func (c *Client) buildParams(msg *a2a.Message, blocking bool) *a2a.MessageSendParams {
	cfg := &a2a.MessageSendConfig{
		AcceptedOutputModes: []string{"text/plain", "application/json"},
		Blocking:            &blocking,
	}
	if c.cfg.Push != nil {
		token := c.cfg.Push.Token
		if token == "" {
			token = uuid.NewString()
		}
		cfg.PushConfig = &a2a.PushConfig{
			URL:   c.cfg.Push.URL,
			Token: token,
		}
	}
	return &a2a.MessageSendParams{
		Message: msg,
		Config:  cfg,
	}
}

func backoffDelay(i int) time.Duration {
	if i >= len(backoffSchedule) {
		i = len(backoffSchedule) - 1
	}
	return backoffSchedule[i]
}
