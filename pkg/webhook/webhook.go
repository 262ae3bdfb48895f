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

// Package webhook is the Webhook Gateway (§4.1): the HTTP entrypoint that
// validates an inbound GitHub delivery's signature, durably records it as a
// RawEvent, and schedules the Event Dispatcher with zero added delay.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

const (
	// SHA256SignatureHeader is the GitHub header carrying the HMAC-SHA256
	// hexdigest of the request body.
	SHA256SignatureHeader = "X-Hub-Signature-256"
	// EventTypeHeader is the GitHub header carrying the event name.
	EventTypeHeader = "X-Github-Event"
	// DeliveryIDHeader is the GitHub header carrying the unique delivery id.
	DeliveryIDHeader = "X-Github-Delivery"

	maxPayloadBytes = 25 * 1000 * 1000

	successMessage      = "Ok"
	errReadingPayload   = "Failed to read webhook payload."
	errNoPayload        = "No payload received."
	errInvalidSignature = "Failed to validate webhook signature."
	errWritingToBackend = "Failed to write to backend."
)

// handleWebhook implements the status code contract in §4.1/§6: 200 on
// success, 400 for a missing payload, 401 for a bad signature, 500 for a
// storage failure.
func (s *Server) handleWebhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		deliveryID := r.Header.Get(DeliveryIDHeader)
		eventName := r.Header.Get(EventTypeHeader)
		signature := r.Header.Get(SHA256SignatureHeader)

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			logger.ErrorContext(ctx, "failed to read webhook request body", "error", err)
			http.Error(w, errReadingPayload, http.StatusInternalServerError)
			return
		}

		if len(payload) == 0 {
			logger.ErrorContext(ctx, "no payload received")
			http.Error(w, errNoPayload, http.StatusBadRequest)
			return
		}

		if !isValidSignature(s.webhookSecret, signature, payload) {
			logger.ErrorContext(ctx, "failed to validate webhook signature", "delivery_id", deliveryID)

			ev := &domain.RawEvent{
				DeliveryID:     deliveryID,
				EventName:      eventName,
				SignatureValid: false,
				PayloadJSON:    string(payload),
				ReceivedAt:     time.Now().UTC(),
				ProcessState:   domain.ProcessStateFailed,
				ProcessError:   errInvalidSignature,
			}
			if _, err := s.store.InsertRawEventIfAbsent(ctx, ev); err != nil {
				logger.ErrorContext(ctx, "failed to write raw event for invalid signature", "delivery_id", deliveryID, "error", err)
			}

			http.Error(w, errInvalidSignature, http.StatusUnauthorized)
			return
		}

		ev := &domain.RawEvent{
			DeliveryID:     deliveryID,
			EventName:      eventName,
			SignatureValid: true,
			PayloadJSON:    string(payload),
			ReceivedAt:     time.Now().UTC(),
		}

		inserted, err := s.store.InsertRawEventIfAbsent(ctx, ev)
		if err != nil {
			logger.ErrorContext(ctx, "failed to write raw event", "delivery_id", deliveryID, "error", err)
			http.Error(w, errWritingToBackend, http.StatusInternalServerError)
			return
		}

		if inserted {
			if err := s.messenger.Send(ctx, []byte(deliveryID)); err != nil {
				// The raw event is already durable; a scheduling failure just
				// means the 30s retry sweep picks it up instead of the
				// dispatcher's push subscription (§4.2).
				logger.WarnContext(ctx, "failed to schedule dispatcher", "delivery_id", deliveryID, "error", err)
			}
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, successMessage)
	})
}

// isValidSignature validates the request signature against an HMAC-SHA256
// digest of payload computed with secret, using a constant-time compare.
func isValidSignature(secret, signature string, payload []byte) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(signature), []byte(want)) == 1
}
