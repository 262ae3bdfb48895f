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
	"time"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Store is the narrow persistence contract the retry controller needs,
// satisfied by pkg/store/gormstore.Store.
type Store interface {
	InsertRawEventIfAbsent(ctx context.Context, ev *domain.RawEvent) (bool, error)
	GetRawEvent(ctx context.Context, deliveryID string) (*domain.RawEvent, error)
	MarkProcessed(ctx context.Context, deliveryID string) error
	MarkRetry(ctx context.Context, deliveryID string, attempts int, lastErr string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, deliveryID string, attempts int, lastErr string) error
	ListRetryReady(ctx context.Context, now time.Time, limit int) ([]*domain.RawEvent, error)
	ListStaleFailed(ctx context.Context, olderThan time.Time, limit int) ([]*domain.RawEvent, error)
	PromoteToDeadLetter(ctx context.Context, ev *domain.RawEvent, reason string) error
}

// DispatchFunc hands a RawEvent to the Event Dispatcher & Domain Writer
// (§4.3). Returning an error marks the event for retry or, past the
// attempt budget, failure.
type DispatchFunc func(ctx context.Context, ev *domain.RawEvent) error
