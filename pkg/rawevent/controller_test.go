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

package rawevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// fakeStore is an in-memory Store implementation for table-driven tests.
type fakeStore struct {
	events      map[string]*domain.RawEvent
	deadLetters []*domain.DeadLetter
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[string]*domain.RawEvent)}
}

func (f *fakeStore) InsertRawEventIfAbsent(ctx context.Context, ev *domain.RawEvent) (bool, error) {
	if _, ok := f.events[ev.DeliveryID]; ok {
		return false, nil
	}
	cp := *ev
	cp.ProcessState = domain.ProcessStatePending
	f.events[ev.DeliveryID] = &cp
	return true, nil
}

func (f *fakeStore) GetRawEvent(ctx context.Context, deliveryID string) (*domain.RawEvent, error) {
	ev, ok := f.events[deliveryID]
	if !ok {
		return nil, errors.New("not found")
	}
	return ev, nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, deliveryID string) error {
	f.events[deliveryID].ProcessState = domain.ProcessStateProcessed
	return nil
}

func (f *fakeStore) MarkRetry(ctx context.Context, deliveryID string, attempts int, lastErr string, nextRetryAt time.Time) error {
	ev := f.events[deliveryID]
	ev.ProcessState = domain.ProcessStateRetry
	ev.ProcessAttempts = attempts
	ev.ProcessError = lastErr
	ev.NextRetryAt = &nextRetryAt
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, deliveryID string, attempts int, lastErr string) error {
	ev := f.events[deliveryID]
	ev.ProcessState = domain.ProcessStateFailed
	ev.ProcessAttempts = attempts
	ev.ProcessError = lastErr
	return nil
}

func (f *fakeStore) ListRetryReady(ctx context.Context, now time.Time, limit int) ([]*domain.RawEvent, error) {
	var out []*domain.RawEvent
	for _, ev := range f.events {
		if ev.ProcessState == domain.ProcessStateRetry && ev.NextRetryAt != nil && !ev.NextRetryAt.After(now) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStaleFailed(ctx context.Context, olderThan time.Time, limit int) ([]*domain.RawEvent, error) {
	var out []*domain.RawEvent
	for _, ev := range f.events {
		if ev.ProcessState == domain.ProcessStateFailed {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) PromoteToDeadLetter(ctx context.Context, ev *domain.RawEvent, reason string) error {
	f.deadLetters = append(f.deadLetters, &domain.DeadLetter{DeliveryID: ev.DeliveryID, Reason: reason})
	delete(f.events, ev.DeliveryID)
	return nil
}

func testConfig() *Config {
	return &Config{
		MaxAttempts:             3,
		BackoffBaseMs:           1000,
		BackoffMaxMs:            60000,
		DeadLetterAgeMs:         86400000,
		RetrySweepInterval:      30 * time.Second,
		DeadLetterSweepInterval: 60 * time.Second,
		SweepBatchSize:          100,
	}
}

func TestController_Ingest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		dispatchErr  error
		wantInserted bool
		wantState    domain.ProcessState
	}{
		{
			name:         "dispatch succeeds",
			wantInserted: true,
			wantState:    domain.ProcessStateProcessed,
		},
		{
			name:         "dispatch fails, scheduled for retry",
			dispatchErr:  errors.New("boom"),
			wantInserted: true,
			wantState:    domain.ProcessStateRetry,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			ctrl := New(store, testConfig(), func(ctx context.Context, ev *domain.RawEvent) error {
				return tc.dispatchErr
			})

			ev := &domain.RawEvent{DeliveryID: "d1", EventName: "push"}
			inserted, err := ctrl.Ingest(context.Background(), ev)
			if err != nil {
				t.Fatalf("Ingest() unexpected error: %v", err)
			}
			if inserted != tc.wantInserted {
				t.Errorf("Ingest() inserted = %v, want %v", inserted, tc.wantInserted)
			}
			if got := store.events["d1"].ProcessState; got != tc.wantState {
				t.Errorf("ProcessState = %v, want %v", got, tc.wantState)
			}
		})
	}
}

func TestController_Ingest_Duplicate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	calls := 0
	ctrl := New(store, testConfig(), func(ctx context.Context, ev *domain.RawEvent) error {
		calls++
		return nil
	})

	ctx := context.Background()
	ev := &domain.RawEvent{DeliveryID: "dup", EventName: "push"}

	first, err := ctrl.Ingest(ctx, ev)
	if err != nil || !first {
		t.Fatalf("first Ingest() = (%v, %v), want (true, nil)", first, err)
	}
	second, err := ctrl.Ingest(ctx, ev)
	if err != nil {
		t.Fatalf("second Ingest() unexpected error: %v", err)
	}
	if second {
		t.Errorf("second Ingest() inserted = true, want false (idempotent no-op)")
	}
	if calls != 1 {
		t.Errorf("dispatch called %d times, want 1", calls)
	}
}

func TestController_RetryExhaustion(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cfg := testConfig()
	cfg.MaxAttempts = 2

	ctrl := New(store, cfg, func(ctx context.Context, ev *domain.RawEvent) error {
		return errors.New("persistent failure")
	})
	ctrl.now = func() time.Time { return time.Unix(1000, 0) }

	ctx := context.Background()
	ev := &domain.RawEvent{DeliveryID: "d2", EventName: "push"}
	if _, err := ctrl.Ingest(ctx, ev); err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	if store.events["d2"].ProcessState != domain.ProcessStateRetry {
		t.Fatalf("after first failure, state = %v, want retry", store.events["d2"].ProcessState)
	}

	// Move the clock past the scheduled nextRetryAt so the sweep picks it up.
	ctrl.now = func() time.Time { return time.Unix(1000, 0).Add(time.Hour) }
	if err := ctrl.RunRetrySweep(ctx); err != nil {
		t.Fatalf("RunRetrySweep() unexpected error: %v", err)
	}
	if diff := cmp.Diff(domain.ProcessStateFailed, store.events["d2"].ProcessState); diff != "" {
		t.Errorf("ProcessState mismatch (-want +got):\n%s", diff)
	}
}

func TestController_DeadLetterSweep(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.events["d3"] = &domain.RawEvent{DeliveryID: "d3", ProcessState: domain.ProcessStateFailed, ProcessError: "boom"}

	ctrl := New(store, testConfig(), func(ctx context.Context, ev *domain.RawEvent) error { return nil })
	if err := ctrl.RunDeadLetterSweep(context.Background()); err != nil {
		t.Fatalf("RunDeadLetterSweep() unexpected error: %v", err)
	}

	if _, ok := store.events["d3"]; ok {
		t.Errorf("raw event d3 still present after dead letter promotion")
	}
	if diff := cmp.Diff(1, len(store.deadLetters)); diff != "" {
		t.Errorf("dead letter count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("boom", store.deadLetters[0].Reason, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("dead letter reason mismatch (-want +got):\n%s", diff)
	}
}
