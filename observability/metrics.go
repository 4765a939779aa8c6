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

// Package observability exposes the process metrics surface.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the counters the service reports.
type Metrics struct {
	registry *prometheus.Registry

	// WebhookRequests counts inbound webhook deliveries by outcome:
	// accepted, unauthorized, malformed, not_found.
	WebhookRequests *prometheus.CounterVec

	// TasksCreated counts tasks registered from agent announcements.
	TasksCreated prometheus.Counter

	// StreamsFinished counts bridge streams by finish reason.
	StreamsFinished *prometheus.CounterVec
}

// NewMetrics builds the metric set on a private registry so tests can hold
// independent instances.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		WebhookRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcanvas",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Inbound webhook deliveries by outcome.",
		}, []string{"outcome"}),
		TasksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcanvas",
			Subsystem: "webhook",
			Name:      "tasks_created_total",
			Help:      "Tasks registered from agent announcements.",
		}),
		StreamsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcanvas",
			Subsystem: "bridge",
			Name:      "streams_finished_total",
			Help:      "Bridge response streams by finish reason.",
		}, []string{"reason"}),
	}
}

// Handler serves the metrics endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
