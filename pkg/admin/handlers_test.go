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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

type fakeStore struct {
	failed      []*domain.RawEvent
	deadLetters []*domain.DeadLetter
	repos       map[string]*domain.Repository
	syncJobs    []*domain.SyncJob

	replayed []string
}

func (f *fakeStore) ListFailed(ctx context.Context, limit int) ([]*domain.RawEvent, error) {
	return f.failed, nil
}

func (f *fakeStore) ListDeadLetters(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	return f.deadLetters, nil
}

func (f *fakeStore) ResetForReplay(ctx context.Context, deliveryID string) error {
	f.replayed = append(f.replayed, deliveryID)
	return nil
}

func (f *fakeStore) GetRepositoryByFullName(ctx context.Context, fullName string) (*domain.Repository, error) {
	repo, ok := f.repos[fullName]
	if !ok {
		return nil, errors.New("not found")
	}
	return repo, nil
}

func (f *fakeStore) CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (bool, *domain.SyncJob, error) {
	f.syncJobs = append(f.syncJobs, job)
	return true, job, nil
}

type fakeDispatcher struct {
	processed []string
	err       error
}

func (f *fakeDispatcher) ProcessDelivery(ctx context.Context, deliveryID string) error {
	f.processed = append(f.processed, deliveryID)
	return f.err
}

func newTestServer(store *fakeStore, dispatcher *fakeDispatcher) *Server {
	return &Server{store: store, dispatcher: dispatcher, listLimit: 100, projectID: "test-project"}
}

func TestHandleListFailed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failed: []*domain.RawEvent{{DeliveryID: "d1"}}}
	s := newTestServer(store, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/admin/failed", nil)
	rec := httptest.NewRecorder()
	s.handleListFailed().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleReplay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		deliveryID     string
		method         string
		wantStatusCode int
	}{
		{name: "missing delivery id", deliveryID: "", method: http.MethodPost, wantStatusCode: http.StatusBadRequest},
		{name: "wrong method", deliveryID: "d1", method: http.MethodGet, wantStatusCode: http.StatusMethodNotAllowed},
		{name: "valid replay", deliveryID: "d1", method: http.MethodPost, wantStatusCode: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{}
			dispatcher := &fakeDispatcher{}
			s := newTestServer(store, dispatcher)

			req := httptest.NewRequest(tc.method, "/admin/replay?delivery_id="+tc.deliveryID, nil)
			rec := httptest.NewRecorder()
			s.handleReplay().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatusCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatusCode)
			}
			if tc.wantStatusCode == http.StatusOK {
				if len(store.replayed) != 1 || store.replayed[0] != tc.deliveryID {
					t.Errorf("replayed = %v, want [%s]", store.replayed, tc.deliveryID)
				}
				if len(dispatcher.processed) != 1 || dispatcher.processed[0] != tc.deliveryID {
					t.Errorf("processed = %v, want [%s]", dispatcher.processed, tc.deliveryID)
				}
			}
		})
	}
}

func TestHandleRetryAllFailed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failed: []*domain.RawEvent{{DeliveryID: "d1"}, {DeliveryID: "d2"}}}
	dispatcher := &fakeDispatcher{}
	s := newTestServer(store, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/admin/retry-all-failed", nil)
	rec := httptest.NewRecorder()
	s.handleRetryAllFailed().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.replayed) != 2 {
		t.Errorf("replayed = %v, want 2 entries", store.replayed)
	}
	if len(dispatcher.processed) != 2 {
		t.Errorf("processed = %v, want 2 entries", dispatcher.processed)
	}
}

func TestHandleReconcileRepo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		fullName       string
		repos          map[string]*domain.Repository
		wantStatusCode int
	}{
		{
			name:           "unknown repository",
			fullName:       "acme/widgets",
			repos:          map[string]*domain.Repository{},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:     "known repository",
			fullName: "acme/widgets",
			repos: map[string]*domain.Repository{
				"acme/widgets": {InstallationID: 9},
			},
			wantStatusCode: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{repos: tc.repos}
			s := newTestServer(store, &fakeDispatcher{})

			req := httptest.NewRequest(http.MethodPost, "/admin/reconcile-repo?full_name="+tc.fullName, nil)
			rec := httptest.NewRecorder()
			s.handleReconcileRepo().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatusCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatusCode)
			}
			if tc.wantStatusCode == http.StatusOK {
				if len(store.syncJobs) != 1 {
					t.Fatalf("got %d sync jobs, want 1", len(store.syncJobs))
				}
				if store.syncJobs[0].JobType != domain.SyncJobTypeReconcile {
					t.Errorf("JobType = %q, want reconcile", store.syncJobs[0].JobType)
				}
			}
		})
	}
}
