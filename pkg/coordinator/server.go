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

package coordinator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

// Server is the coordinator's HTTP surface: one route per §4.6 operation.
type Server struct {
	coordinator *Coordinator
}

// ClientOptions encapsulate dependency overrides, following the
// admin.ClientOptions / WebhookClientOptions pattern used throughout this
// module.
type ClientOptions struct {
	StoreOverride Store // used for unit testing
}

// NewServer creates a new HTTP server fronting a Coordinator.
func NewServer(ctx context.Context, cfg *Config, github GitHubWriter, tokens TokenResolver, co *ClientOptions) (*Server, error) {
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

	return &Server{coordinator: New(store, github, tokens)}, nil
}

// Routes creates the ServeMux of routes this server supports, one per
// mutating operation in §4.6.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/version", s.handleVersion())
	mux.Handle("/issues", s.handleCreateIssue())
	mux.Handle("/issues/comments", s.handleCreateComment())
	mux.Handle("/issues/state", s.handleUpdateIssueState())
	mux.Handle("/issues/labels", s.handleUpdateLabels())
	mux.Handle("/issues/assignees", s.handleUpdateAssignees())
	mux.Handle("/pulls/merge", s.handleMergePullRequest())
	mux.Handle("/pulls/update-branch", s.handleUpdatePullRequestBranch())
	mux.Handle("/pulls/reviews", s.handleSubmitPrReview())

	return logging.HTTPInterceptor(logger, "")(mux)
}

func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q}\n`, version.HumanVersion)
	})
}
