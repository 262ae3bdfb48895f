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
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Controller is the Raw Event Store and Retry Controller from §4.2: it
// durably records every webhook delivery, attempts immediate dispatch, and
// drives the backoff-based retry sweep for attempts that fail.
type Controller struct {
	store    Store
	cfg      *Config
	dispatch DispatchFunc

	// now is overridable for deterministic tests.
	now func() time.Time
}

// New builds a Controller over store, retrying failed dispatches via
// dispatch according to cfg.
func New(store Store, cfg *Config, dispatch DispatchFunc) *Controller {
	return &Controller{store: store, cfg: cfg, dispatch: dispatch, now: time.Now}
}

// Ingest persists ev (a no-op if its delivery id was already seen,
// invariant 1 in §3) and attempts dispatch immediately with zero added
// delay, the scheduling contract in §4.1.
func (c *Controller) Ingest(ctx context.Context, ev *domain.RawEvent) (inserted bool, err error) {
	inserted, err = c.store.InsertRawEventIfAbsent(ctx, ev)
	if err != nil {
		return false, fmt.Errorf("failed to insert raw event: %w", err)
	}
	if !inserted {
		return false, nil
	}

	if err := c.attempt(ctx, ev); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "initial dispatch attempt failed, scheduled for retry",
			"delivery_id", ev.DeliveryID, "error", err)
	}
	return true, nil
}

// attempt calls the dispatcher once and records the resulting state
// transition: processed on success, retry while attempts remain, failed
// once the budget (§4.2) is exhausted.
func (c *Controller) attempt(ctx context.Context, ev *domain.RawEvent) error {
	dispatchErr := c.dispatch(ctx, ev)
	if dispatchErr == nil {
		if err := c.store.MarkProcessed(ctx, ev.DeliveryID); err != nil {
			return fmt.Errorf("failed to mark raw event processed: %w", err)
		}
		return nil
	}

	attempts := ev.ProcessAttempts + 1
	if attempts >= c.cfg.MaxAttempts {
		if err := c.store.MarkFailed(ctx, ev.DeliveryID, attempts, dispatchErr.Error()); err != nil {
			return fmt.Errorf("failed to mark raw event failed: %w", err)
		}
		return dispatchErr
	}

	delay, err := nextBackoff(attempts, c.cfg)
	if err != nil {
		return fmt.Errorf("failed to compute backoff: %w", err)
	}
	if err := c.store.MarkRetry(ctx, ev.DeliveryID, attempts, dispatchErr.Error(), c.now().Add(delay)); err != nil {
		return fmt.Errorf("failed to mark raw event retry: %w", err)
	}
	return dispatchErr
}

// ProcessDelivery re-attempts dispatch for an already-stored delivery,
// used by a dispatcher process that consumes the pub/sub scheduling
// message rather than processing inline within Ingest (§4.1, §4.3).
func (c *Controller) ProcessDelivery(ctx context.Context, deliveryID string) error {
	ev, err := c.store.GetRawEvent(ctx, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to get raw event %q: %w", deliveryID, err)
	}
	return c.attempt(ctx, ev)
}

// RunRetrySweep retries every event whose backoff has elapsed, the 30s
// sweep described in §4.2.
func (c *Controller) RunRetrySweep(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	events, err := c.store.ListRetryReady(ctx, c.now(), c.cfg.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list retry-ready raw events: %w", err)
	}
	for _, ev := range events {
		if err := c.attempt(ctx, ev); err != nil {
			logger.WarnContext(ctx, "retry sweep attempt failed", "delivery_id", ev.DeliveryID, "error", err)
		}
	}
	return nil
}

// RunDeadLetterSweep promotes events that have sat in "failed" past the
// dead-letter age threshold, the 60s sweep described in §4.2.
func (c *Controller) RunDeadLetterSweep(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	cutoff := c.now().Add(-time.Duration(c.cfg.DeadLetterAgeMs) * time.Millisecond)
	events, err := c.store.ListStaleFailed(ctx, cutoff, c.cfg.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale failed raw events: %w", err)
	}
	for _, ev := range events {
		if err := c.store.PromoteToDeadLetter(ctx, ev, ev.ProcessError); err != nil {
			logger.ErrorContext(ctx, "failed to promote raw event to dead letter", "delivery_id", ev.DeliveryID, "error", err)
		}
	}
	return nil
}

// nextBackoff computes the delay before the given attempt number using an
// exponential backoff with jitter, capped at cfg.BackoffMaxMs.
func nextBackoff(attempt int, cfg *Config) (time.Duration, error) {
	b, err := retry.NewExponential(time.Duration(cfg.BackoffBaseMs) * time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("failed to build backoff: %w", err)
	}
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(time.Duration(cfg.BackoffMaxMs)*time.Millisecond, b)
	b = retry.WithMaxRetries(uint64(cfg.MaxAttempts), b)

	var d time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			return time.Duration(cfg.BackoffMaxMs) * time.Millisecond, nil
		}
		d = next
	}
	return d, nil
}
