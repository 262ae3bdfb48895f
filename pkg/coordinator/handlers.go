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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// writeErr maps a coordinator error to a status code: a duplicate
// correlation id is a client error (the id was already used), anything
// else is a server-side failure.
func writeErr(w http.ResponseWriter, err error) {
	var dup *DuplicateOperationError
	if errors.As(err, &dup) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// handleCreateIssue supports the createIssue operation (§4.6).
func (s *Server) handleCreateIssue() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string `json:"repositoryId"`
			ActorUserID   int64  `json:"actorUserId"`
			CorrelationID string `json:"correlationId"`
			Title         string `json:"title"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		iss, err := s.coordinator.CreateIssue(ctx, req.RepositoryID, req.ActorUserID, req.CorrelationID, req.Title)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "create issue failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, iss)
	})
}

// handleCreateComment supports the createComment operation (§4.6).
func (s *Server) handleCreateComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string `json:"repositoryId"`
			ActorUserID   int64  `json:"actorUserId"`
			CorrelationID string `json:"correlationId"`
			Number        int    `json:"number"`
			Body          string `json:"body"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		comment, err := s.coordinator.CreateComment(ctx, req.RepositoryID, req.ActorUserID, req.CorrelationID, req.Number, req.Body)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "create comment failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, comment)
	})
}

// handleUpdateIssueState supports the updateIssueState operation (§4.6).
func (s *Server) handleUpdateIssueState() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string `json:"repositoryId"`
			CorrelationID string `json:"correlationId"`
			Number        int    `json:"number"`
			State         string `json:"state"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if err := s.coordinator.UpdateIssueState(ctx, req.RepositoryID, req.CorrelationID, req.Number, domain.IssueState(req.State)); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "update issue state failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "accepted"})
	})
}

// handleUpdateLabels supports the updateLabels operation (§4.6).
func (s *Server) handleUpdateLabels() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string   `json:"repositoryId"`
			CorrelationID string   `json:"correlationId"`
			Number        int      `json:"number"`
			Add           []string `json:"add"`
			Remove        []string `json:"remove"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if err := s.coordinator.UpdateLabels(ctx, req.RepositoryID, req.CorrelationID, req.Number, req.Add, req.Remove); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "update labels failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "accepted"})
	})
}

// handleUpdateAssignees supports the updateAssignees operation (§4.6).
func (s *Server) handleUpdateAssignees() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string   `json:"repositoryId"`
			CorrelationID string   `json:"correlationId"`
			Number        int      `json:"number"`
			Add           []string `json:"add"`
			Remove        []string `json:"remove"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if err := s.coordinator.UpdateAssignees(ctx, req.RepositoryID, req.CorrelationID, req.Number, req.Add, req.Remove); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "update assignees failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "accepted"})
	})
}

// handleMergePullRequest supports the mergePullRequest operation (§4.6).
func (s *Server) handleMergePullRequest() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string `json:"repositoryId"`
			CorrelationID string `json:"correlationId"`
			Number        int    `json:"number"`
			Method        string `json:"method"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if err := s.coordinator.MergePullRequest(ctx, req.RepositoryID, req.CorrelationID, req.Number, req.Method); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "merge pull request failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "accepted"})
	})
}

// handleUpdatePullRequestBranch supports the updatePullRequestBranch
// operation (§4.6).
func (s *Server) handleUpdatePullRequestBranch() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID    string `json:"repositoryId"`
			CorrelationID   string `json:"correlationId"`
			Number          int    `json:"number"`
			ExpectedHeadSha string `json:"expectedHeadSha"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if err := s.coordinator.UpdatePullRequestBranch(ctx, req.RepositoryID, req.CorrelationID, req.Number, req.ExpectedHeadSha); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "update pull request branch failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "accepted"})
	})
}

// handleSubmitPrReview supports the submitPrReview operation (§4.6).
func (s *Server) handleSubmitPrReview() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			RepositoryID  string `json:"repositoryId"`
			ActorUserID   int64  `json:"actorUserId"`
			CorrelationID string `json:"correlationId"`
			Number        int    `json:"number"`
			Event         string `json:"event"`
			Body          string `json:"body"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		review, err := s.coordinator.SubmitPrReview(ctx, req.RepositoryID, req.ActorUserID, req.CorrelationID, req.Number, req.Event, req.Body)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "submit pr review failed", "correlation_id", req.CorrelationID, "error", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, review)
	})
}
