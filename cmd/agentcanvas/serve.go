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
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/agentcanvas/agentcanvas/a2abridge"
	"github.com/agentcanvas/agentcanvas/config"
	"github.com/agentcanvas/agentcanvas/observability"
	"github.com/agentcanvas/agentcanvas/task"
	"github.com/agentcanvas/agentcanvas/webhook"
)

// ServeCmd starts the webhook receiver and metrics server.
type ServeCmd struct {
	Addr string `help:"HTTP bind address (overrides LISTEN_ADDR)." placeholder:"ADDR"`
}

// pushTarget derives the push notification callback from the externally
// reachable base URL, when one is configured.
func pushTarget(cfg *config.Config) *a2abridge.PushNotificationTarget {
	if cfg.WebhookBaseURL == "" {
		return nil
	}
	return &a2abridge.PushNotificationTarget{
		URL: strings.TrimSuffix(cfg.WebhookBaseURL, "/") + "/webhooks/tasks",
	}
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.Addr != "" {
		cfg.ListenAddr = c.Addr
	}

	db, err := sql.Open(cfg.Storage.DriverName(), cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	store, err := task.NewSQLStore(db, cfg.Storage.Dialect)
	if err != nil {
		return fmt.Errorf("failed to create task store: %w", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics()
	handler := webhook.NewHandler(store, metrics)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", metrics.Handler())

	if cfg.Agent.Enabled {
		bridge, err := a2abridge.NewBridge(a2abridge.BridgeConfig{
			Client: a2abridge.ClientConfig{
				AgentURL:   cfg.Agent.URL,
				Timeout:    cfg.Agent.Timeout,
				MaxRetries: cfg.Agent.MaxRetries,
				Push:       pushTarget(cfg),
			},
			MaxHistory: cfg.Agent.MaxHistory,
			OnFinish: func(reason a2abridge.FinishReason) {
				metrics.StreamsFinished.WithLabelValues(string(reason)).Inc()
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create bridge: %w", err)
		}
		r.Post("/chat", chatHandler(bridge))
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting server",
		"addr", cfg.ListenAddr,
		"storage", cfg.Storage.Dialect,
		"agentEnabled", cfg.Agent.Enabled)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
