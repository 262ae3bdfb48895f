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

package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

// Server is the admin surface's HTTP server.
type Server struct {
	store      Store
	dispatcher Dispatcher
	listLimit  int
	projectID  string
}

// ClientOptions encapsulate client config options as well as dependency
// overrides, following the WebhookClientOptions/RetryClientOptions pattern
// used throughout this module.
type ClientOptions struct {
	StoreOverride      Store      // used for unit testing
	DispatcherOverride Dispatcher // used for unit testing
}

// NewServer creates a new HTTP server for the admin surface.
func NewServer(ctx context.Context, cfg *Config, dispatcher Dispatcher, co *ClientOptions) (*Server, error) {
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

	disp := co.DispatcherOverride
	if disp == nil {
		disp = dispatcher
	}

	return &Server{
		store:      store,
		dispatcher: disp,
		listLimit:  cfg.ListLimit,
		projectID:  cfg.ProjectID,
	}, nil
}

// Routes creates the ServeMux of routes this server supports (§7: "listing
// failed raw events, listing dead letters, replay-one, retry-all-failed,
// reconcile-repo").
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/version", s.handleVersion())
	mux.Handle("/admin/failed", s.handleListFailed())
	mux.Handle("/admin/dead-letters", s.handleListDeadLetters())
	mux.Handle("/admin/replay", s.handleReplay())
	mux.Handle("/admin/retry-all-failed", s.handleRetryAllFailed())
	mux.Handle("/admin/reconcile-repo", s.handleReconcileRepo())

	return logging.HTTPInterceptor(logger, s.projectID)(mux)
}

func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q}\n`, version.HumanVersion)
	})
}
