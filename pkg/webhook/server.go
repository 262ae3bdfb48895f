// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"google.golang.org/api/option"

	"github.com/ghmirror/ghmirror/pkg/domain"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

// Store is the narrow persistence contract the gateway needs.
type Store interface {
	InsertRawEventIfAbsent(ctx context.Context, ev *domain.RawEvent) (bool, error)
}

// Server is the Webhook Gateway's HTTP server.
type Server struct {
	store         Store
	messenger     Messenger
	webhookSecret string
	projectID     string
}

// ClientOptions encapsulate client config options as well as dependency
// overrides, following the WebhookClientOptions/RetryClientOptions pattern
// used throughout this module.
type ClientOptions struct {
	MessengerClientOpts []option.ClientOption
	StoreOverride       Store     // used for unit testing
	MessengerOverride   Messenger // used for unit testing
}

// NewServer creates a new HTTP server for the Webhook Gateway.
func NewServer(ctx context.Context, cfg *Config, co *ClientOptions) (*Server, error) {
	store := co.StoreOverride
	if store == nil {
		db, err := gormstore.New(ctx, gormstore.Config{
			Backend: gormstore.Backend(cfg.DatabaseBackend),
			DSN:     cfg.DatabaseDSN,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open document store: %w", err)
		}
		store = db
	}

	messenger := co.MessengerOverride
	if messenger == nil {
		m, err := NewPubSubMessenger(ctx, cfg.ProjectID, cfg.DispatchTopicID, co.MessengerClientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create dispatch messenger: %w", err)
		}
		messenger = m
	}

	return &Server{
		store:         store,
		messenger:     messenger,
		webhookSecret: cfg.GitHubWebhookSecret,
		projectID:     cfg.ProjectID,
	}, nil
}

// Routes creates the ServeMux of routes this server supports.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/webhook", s.handleWebhook())
	mux.Handle("/version", s.handleVersion())

	return logging.HTTPInterceptor(logger, s.projectID)(mux)
}

func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q}\n`, version.HumanVersion)
	})
}

// Shutdown handles graceful shutdown of the gateway's external connections.
func (s *Server) Shutdown() error {
	if err := s.messenger.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down messenger: %w", err)
	}
	return nil
}
