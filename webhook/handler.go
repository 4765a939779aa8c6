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

// Package webhook receives out-of-band task updates pushed by remote agents
// and applies them to the canvas task store.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentcanvas/agentcanvas/observability"
	"github.com/agentcanvas/agentcanvas/task"
)

// payload is the webhook POST body: a task snapshot in A2A shape.
type payload struct {
	ID         string     `json:"id"`
	ContextID  string     `json:"contextId"`
	Kind       string     `json:"kind"`
	DocumentID string     `json:"documentId,omitempty"`
	Status     *status    `json:"status,omitempty"`
	Artifacts  []artifact `json:"artifacts,omitempty"`
}

type status struct {
	State string `json:"state"`

	// Message is either a plain string or a structured A2A message with
	// parts. Decoded leniently in messageText.
	Message json.RawMessage `json:"message,omitempty"`
}

type artifact struct {
	ArtifactID string `json:"artifactId"`
	Parts      []part `json:"parts"`
}

type part struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler serves the webhook endpoint.
type Handler struct {
	store   task.Store
	metrics *observability.Metrics
}

// NewHandler builds the webhook handler on the given store.
func NewHandler(store task.Store, metrics *observability.Metrics) *Handler {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Handler{store: store, metrics: metrics}
}

// Routes mounts the webhook endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhooks/tasks", h.handleDelivery)
	return r
}

// handleDelivery processes one webhook POST. A delivery either announces new
// tasks (task descriptors in artifacts) or advances an existing one.
func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.reject(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
		return
	}

	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.reject(w, http.StatusBadRequest, "invalid JSON body", "malformed")
		return
	}
	if p.ID == "" || p.ContextID == "" {
		h.reject(w, http.StatusBadRequest, "id and contextId are required", "malformed")
		return
	}

	if descriptors := collectDescriptors(p.Artifacts); len(descriptors) > 0 {
		h.handleCreation(w, r, &p, descriptors, token)
		return
	}
	h.handleStatusUpdate(w, r, &p, token)
}

// handleCreation registers announced tasks. Individual bad descriptors are
// skipped so one malformed entry does not sink the batch; redeliveries are
// absorbed by the (contextID, title) natural key.
func (h *Handler) handleCreation(w http.ResponseWriter, r *http.Request, p *payload, descriptors []map[string]any, token string) {
	ctx := r.Context()
	created, skipped := 0, 0

	for _, raw := range descriptors {
		d, err := task.DecodeDescriptor(raw)
		if err != nil {
			slog.Warn("Skipping malformed task descriptor", "contextID", p.ContextID, "error", err)
			skipped++
			continue
		}

		contextID := d.ContextID
		if contextID == "" {
			contextID = p.ContextID
		}

		if existing, err := h.store.FindTaskByTitle(ctx, contextID, d.Title); err == nil {
			slog.Debug("Task already registered, skipping", "taskID", existing.ID, "title", d.Title)
			skipped++
			continue
		}

		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		st := task.Status(d.Status)
		if !st.Valid() {
			st = task.StatusSubmitted
		}

		t := &task.Task{
			ID:           id,
			ContextID:    contextID,
			Title:        d.Title,
			Status:       st,
			Result:       d.Result(),
			WebhookToken: token,
		}
		if err := h.store.CreateTask(ctx, t); err != nil {
			slog.Warn("Failed to create task", "taskID", id, "title", d.Title, "error", err)
			skipped++
			continue
		}
		created++
		h.metrics.TasksCreated.Inc()

		if p.DocumentID != "" {
			h.linkToDocument(ctx, p.DocumentID, id)
		}
	}

	slog.Info("Processed task announcements", "contextID", p.ContextID, "created", created, "skipped", skipped)
	h.metrics.WebhookRequests.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// handleStatusUpdate advances an existing task.
func (h *Handler) handleStatusUpdate(w http.ResponseWriter, r *http.Request, p *payload, token string) {
	ctx := r.Context()

	if p.Status == nil {
		h.reject(w, http.StatusBadRequest, "status is required", "malformed")
		return
	}

	existing, err := h.store.GetTask(ctx, p.ID)
	if errors.Is(err, task.ErrTaskNotFound) {
		h.reject(w, http.StatusNotFound, "unknown task: "+p.ID, "not_found")
		return
	}
	if err != nil {
		h.reject(w, http.StatusInternalServerError, "storage failure", "storage_error")
		return
	}

	if subtle.ConstantTimeCompare([]byte(existing.WebhookToken), []byte(token)) != 1 {
		h.reject(w, http.StatusUnauthorized, "invalid token", "unauthorized")
		return
	}

	st := task.Status(p.Status.State)
	if !st.Valid() {
		h.reject(w, http.StatusBadRequest, "unrecognized task state: "+p.Status.State, "malformed")
		return
	}

	upd := task.Update{Status: &st}
	if msg := messageText(p.Status.Message); msg != "" {
		upd.StatusMessage = &msg
	}
	if result := extractResult(p.Artifacts); result != nil {
		upd.Result = result
	}

	if _, err := h.store.UpdateTask(ctx, p.ID, upd); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			h.reject(w, http.StatusNotFound, "unknown task: "+p.ID, "not_found")
			return
		}
		h.reject(w, http.StatusInternalServerError, "storage failure", "storage_error")
		return
	}

	if p.DocumentID != "" {
		h.linkToDocument(ctx, p.DocumentID, p.ID)
	}

	slog.Info("Task status updated", "taskID", p.ID, "status", st)
	h.metrics.WebhookRequests.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// linkToDocument attaches the task to its canvas document. Linking requires
// an explicit document reference; deliveries without one are left unlinked.
// Link failures are logged, not surfaced: the status update itself succeeded.
func (h *Handler) linkToDocument(ctx context.Context, documentID, taskID string) {
	if err := h.store.AppendTaskIDs(ctx, documentID, taskID); err != nil {
		slog.Warn("Failed to link task to document", "documentID", documentID, "taskID", taskID, "error", err)
	}
}

func (h *Handler) reject(w http.ResponseWriter, code int, message, outcome string) {
	h.metrics.WebhookRequests.WithLabelValues(outcome).Inc()
	slog.Warn("Rejected webhook delivery", "status", code, "reason", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// bearerToken extracts the Bearer credential from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// collectDescriptors pulls task announcement payloads out of the artifacts.
func collectDescriptors(artifacts []artifact) []map[string]any {
	var out []map[string]any
	for _, a := range artifacts {
		for _, p := range a.Parts {
			if p.Kind != "data" || p.Data == nil {
				continue
			}
			if kind, _ := p.Data["type"].(string); kind != "task" {
				continue
			}
			if desc, ok := p.Data["task"].(map[string]any); ok {
				out = append(out, desc)
			}
		}
	}
	return out
}

// extractResult returns the first structured result carried in the
// artifacts, ignoring task announcements.
func extractResult(artifacts []artifact) map[string]any {
	for _, a := range artifacts {
		for _, p := range a.Parts {
			if p.Kind != "data" || p.Data == nil {
				continue
			}
			if kind, _ := p.Data["type"].(string); kind == "task" {
				continue
			}
			return p.Data
		}
	}
	return nil
}

// messageText decodes the lenient status message field: a bare string, or a
// structured message whose text parts are joined.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var structured struct {
		Parts []part `json:"parts"`
	}
	if err := json.Unmarshal(raw, &structured); err != nil {
		return ""
	}
	var texts []string
	for _, p := range structured.Parts {
		if p.Kind == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
