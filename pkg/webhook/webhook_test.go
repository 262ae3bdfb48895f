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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

const testSecret = "test-github-webhook-secret"

type fakeStore struct {
	inserted map[string]bool
	failErr  error
}

func (f *fakeStore) InsertRawEventIfAbsent(ctx context.Context, ev *domain.RawEvent) (bool, error) {
	if f.failErr != nil {
		return false, f.failErr
	}
	if f.inserted == nil {
		f.inserted = make(map[string]bool)
	}
	if f.inserted[ev.DeliveryID] {
		return false, nil
	}
	f.inserted[ev.DeliveryID] = true
	return true, nil
}

type fakeMessenger struct {
	sent [][]byte
}

func (f *fakeMessenger) Send(ctx context.Context, payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeMessenger) Shutdown() error { return nil }

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"action":"opened"}`)

	cases := []struct {
		name           string
		body           string
		signature      string
		storeErr       error
		wantStatusCode int
	}{
		{
			name:           "valid signature",
			body:           string(payload),
			signature:      sign(testSecret, payload),
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid signature",
			body:           string(payload),
			signature:      "sha256=deadbeef",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "empty payload",
			body:           "",
			signature:      sign(testSecret, []byte("")),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "store failure",
			body:           string(payload),
			signature:      sign(testSecret, payload),
			storeErr:       errBoom,
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{failErr: tc.storeErr}
			messenger := &fakeMessenger{}
			s := &Server{store: store, messenger: messenger, webhookSecret: testSecret}

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tc.body))
			req.Header.Set(DeliveryIDHeader, "delivery-1")
			req.Header.Set(EventTypeHeader, "pull_request")
			req.Header.Set(SHA256SignatureHeader, tc.signature)

			rec := httptest.NewRecorder()
			s.handleWebhook().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatusCode {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tc.wantStatusCode, rec.Body.String())
			}
		})
	}
}

func TestHandleWebhook_SchedulesDispatcherOnce(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"action":"opened"}`)
	store := &fakeStore{}
	messenger := &fakeMessenger{}
	s := &Server{store: store, messenger: messenger, webhookSecret: testSecret}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(payload)))
		req.Header.Set(DeliveryIDHeader, "delivery-dup")
		req.Header.Set(EventTypeHeader, "pull_request")
		req.Header.Set(SHA256SignatureHeader, sign(testSecret, payload))

		rec := httptest.NewRecorder()
		s.handleWebhook().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200", i, rec.Code)
		}
	}

	if len(messenger.sent) != 1 {
		t.Errorf("messenger.sent = %d messages, want 1 (duplicate delivery must not reschedule)", len(messenger.sent))
	}
}

var errBoom = &storeError{"boom"}

type storeError struct{ msg string }

func (e *storeError) Error() string { return e.msg }
