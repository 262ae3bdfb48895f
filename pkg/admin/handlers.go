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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// handleListFailed supports "list failed raw events" (§7).
func (s *Server) handleListFailed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rows, err := s.store.ListFailed(ctx, s.listLimit)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to list failed raw events", "error", err)
			http.Error(w, "failed to list failed raw events", http.StatusInternalServerError)
			return
		}
		writeJSON(w, rows)
	})
}

// handleListDeadLetters supports "list dead letters" (§7).
func (s *Server) handleListDeadLetters() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rows, err := s.store.ListDeadLetters(ctx, s.listLimit)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to list dead letters", "error", err)
			http.Error(w, "failed to list dead letters", http.StatusInternalServerError)
			return
		}
		writeJSON(w, rows)
	})
}

// handleReplay supports "replay-one" (§7): it resets a terminal raw event
// back to pending and re-attempts dispatch immediately, rather than
// waiting on the 30s retry sweep.
func (s *Server) handleReplay() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx := r.Context()
		deliveryID := r.URL.Query().Get("delivery_id")
		if deliveryID == "" {
			http.Error(w, "delivery_id is required", http.StatusBadRequest)
			return
		}

		if err := s.store.ResetForReplay(ctx, deliveryID); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to reset raw event for replay", "delivery_id", deliveryID, "error", err)
			http.Error(w, "failed to reset raw event for replay", http.StatusInternalServerError)
			return
		}
		if err := s.dispatcher.ProcessDelivery(ctx, deliveryID); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "replay dispatch attempt failed, scheduled for retry", "delivery_id", deliveryID, "error", err)
		}
		writeJSON(w, map[string]string{"status": "replayed", "delivery_id": deliveryID})
	})
}

// handleRetryAllFailed supports "retry-all-failed" (§7): it resets every
// currently failed or retry-state raw event back to pending and
// re-attempts dispatch for each.
func (s *Server) handleRetryAllFailed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		rows, err := s.store.ListFailed(ctx, s.listLimit)
		if err != nil {
			logger.ErrorContext(ctx, "failed to list failed raw events", "error", err)
			http.Error(w, "failed to list failed raw events", http.StatusInternalServerError)
			return
		}

		retried := 0
		for _, ev := range rows {
			if err := s.store.ResetForReplay(ctx, ev.DeliveryID); err != nil {
				logger.ErrorContext(ctx, "failed to reset raw event for replay", "delivery_id", ev.DeliveryID, "error", err)
				continue
			}
			if err := s.dispatcher.ProcessDelivery(ctx, ev.DeliveryID); err != nil {
				logger.WarnContext(ctx, "retry-all-failed dispatch attempt failed, scheduled for retry", "delivery_id", ev.DeliveryID, "error", err)
			}
			retried++
		}
		writeJSON(w, map[string]int{"retried": retried})
	})
}

// handleReconcileRepo supports "reconcile-repo" (§7): it enqueues a
// reconcile SyncJob for an already-known repository, the same job shape
// the dispatcher's auto-discovery path creates (§4.3).
func (s *Server) handleReconcileRepo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx := r.Context()
		fullName := r.URL.Query().Get("full_name")
		if fullName == "" {
			http.Error(w, "full_name is required", http.StatusBadRequest)
			return
		}

		repo, err := s.store.GetRepositoryByFullName(ctx, fullName)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to look up repository", "full_name", fullName, "error", err)
			http.Error(w, fmt.Sprintf("repository %q not found", fullName), http.StatusNotFound)
			return
		}

		repositoryID := repo.ID.String()
		job := &domain.SyncJob{
			JobType:       domain.SyncJobTypeReconcile,
			ScopeType:     "repository",
			TriggerReason: "admin_reconcile",
			LockKey:       fmt.Sprintf("reconcile:%s", fullName),
			RepositoryID:  &repositoryID,
		}
		if repo.InstallationID != 0 {
			job.InstallationID = &repo.InstallationID
		}

		created, existing, err := s.store.CreateSyncJobIfAbsent(ctx, job)
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to enqueue reconcile job", "full_name", fullName, "error", err)
			http.Error(w, "failed to enqueue reconcile job", http.StatusInternalServerError)
			return
		}
		if !created {
			writeJSON(w, existing)
			return
		}
		writeJSON(w, job)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
