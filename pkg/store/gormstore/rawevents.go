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

package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// InsertRawEventIfAbsent persists a RawEvent unless its deliveryId already
// exists, satisfying invariant 1 (§3): duplicate deliveries are a no-op.
func (s *Store) InsertRawEventIfAbsent(ctx context.Context, ev *domain.RawEvent) (bool, error) {
	var existing domain.RawEvent
	err := s.db.WithContext(ctx).Where("delivery_id = ?", ev.DeliveryID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to check for existing delivery: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		// A unique-constraint race lost to a concurrent insert of the same
		// delivery id is itself an idempotent no-op, not an error.
		var existing2 domain.RawEvent
		if lookupErr := s.db.WithContext(ctx).Where("delivery_id = ?", ev.DeliveryID).First(&existing2).Error; lookupErr == nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert raw event: %w", err)
	}
	return true, nil
}

// GetRawEvent looks up a RawEvent by delivery id.
func (s *Store) GetRawEvent(ctx context.Context, deliveryID string) (*domain.RawEvent, error) {
	var ev domain.RawEvent
	if err := s.db.WithContext(ctx).Where("delivery_id = ?", deliveryID).First(&ev).Error; err != nil {
		return nil, fmt.Errorf("failed to get raw event: %w", err)
	}
	return &ev, nil
}

// MarkProcessed transitions a RawEvent to its terminal success state. The
// WHERE clause on process_state makes this a conditional update so two
// concurrent attempts on the same delivery converge (§5).
func (s *Store) MarkProcessed(ctx context.Context, deliveryID string) error {
	res := s.db.WithContext(ctx).Model(&domain.RawEvent{}).
		Where("delivery_id = ? AND process_state <> ?", deliveryID, domain.ProcessStateProcessed).
		Update("process_state", domain.ProcessStateProcessed)
	if res.Error != nil {
		return fmt.Errorf("failed to mark raw event processed: %w", res.Error)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (s *Store) MarkRetry(ctx context.Context, deliveryID string, attempts int, lastErr string, nextRetryAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&domain.RawEvent{}).
		Where("delivery_id = ? AND process_state <> ?", deliveryID, domain.ProcessStateProcessed).
		Updates(map[string]any{
			"process_state":    domain.ProcessStateRetry,
			"process_attempts": attempts,
			"process_error":    lastErr,
			"next_retry_at":    nextRetryAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark raw event retry: %w", res.Error)
	}
	return nil
}

// MarkFailed moves a RawEvent past its retry budget into the terminal
// failed state, pending dead-letter promotion.
func (s *Store) MarkFailed(ctx context.Context, deliveryID string, attempts int, lastErr string) error {
	res := s.db.WithContext(ctx).Model(&domain.RawEvent{}).
		Where("delivery_id = ? AND process_state <> ?", deliveryID, domain.ProcessStateProcessed).
		Updates(map[string]any{
			"process_state":    domain.ProcessStateFailed,
			"process_attempts": attempts,
			"process_error":    lastErr,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark raw event failed: %w", res.Error)
	}
	return nil
}

// ListRetryReady returns rows in "retry" whose nextRetryAt has elapsed, for
// the 30s sweep described in §4.2.
func (s *Store) ListRetryReady(ctx context.Context, now time.Time, limit int) ([]*domain.RawEvent, error) {
	var rows []*domain.RawEvent
	if err := s.db.WithContext(ctx).
		Where("process_state = ? AND next_retry_at <= ?", domain.ProcessStateRetry, now).
		Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list retry-ready raw events: %w", err)
	}
	return rows, nil
}

// ListStaleFailed returns "failed" rows older than the dead-letter age
// threshold, for the 60s sweep described in §4.2.
func (s *Store) ListStaleFailed(ctx context.Context, olderThan time.Time, limit int) ([]*domain.RawEvent, error) {
	var rows []*domain.RawEvent
	if err := s.db.WithContext(ctx).
		Where("process_state = ? AND created_at < ?", domain.ProcessStateFailed, olderThan).
		Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale failed raw events: %w", err)
	}
	return rows, nil
}

// ListFailed supports the admin "list failed raw events" surface (§7).
func (s *Store) ListFailed(ctx context.Context, limit int) ([]*domain.RawEvent, error) {
	var rows []*domain.RawEvent
	if err := s.db.WithContext(ctx).
		Where("process_state IN ?", []domain.ProcessState{domain.ProcessStateFailed, domain.ProcessStateRetry}).
		Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list failed raw events: %w", err)
	}
	return rows, nil
}

// PromoteToDeadLetter writes a DeadLetter row for ev and deletes the raw
// row, in one transaction (§4.2 sweep).
func (s *Store) PromoteToDeadLetter(ctx context.Context, ev *domain.RawEvent, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dl := &domain.DeadLetter{
			DeliveryID:  ev.DeliveryID,
			Reason:      reason,
			PayloadJSON: ev.PayloadJSON,
			Source:      domain.DeadLetterSourceWebhook,
		}
		if err := tx.Create(dl).Error; err != nil {
			return fmt.Errorf("failed to write dead letter: %w", err)
		}
		if err := tx.Delete(&domain.RawEvent{}, "delivery_id = ?", ev.DeliveryID).Error; err != nil {
			return fmt.Errorf("failed to delete raw event: %w", err)
		}
		return nil
	})
}

// WriteBootstrapDeadLetter records an individually-failed bootstrap
// sub-item (§7 BootstrapItemFailed) without touching the RawEvent table.
func (s *Store) WriteBootstrapDeadLetter(ctx context.Context, deliveryID, reason, payload string) error {
	dl := &domain.DeadLetter{
		DeliveryID:  deliveryID,
		Reason:      reason,
		PayloadJSON: payload,
		Source:      domain.DeadLetterSourceBootstrap,
	}
	if err := s.db.WithContext(ctx).Create(dl).Error; err != nil {
		return fmt.Errorf("failed to write bootstrap dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters supports the admin "list dead letters" surface (§7).
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	var rows []*domain.DeadLetter
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return rows, nil
}

// ResetForReplay resets a terminal RawEvent back to pending so it can be
// reprocessed by the admin "replay-one" operation (§7).
func (s *Store) ResetForReplay(ctx context.Context, deliveryID string) error {
	res := s.db.WithContext(ctx).Model(&domain.RawEvent{}).
		Where("delivery_id = ?", deliveryID).
		Updates(map[string]any{
			"process_state":    domain.ProcessStatePending,
			"process_attempts": 0,
			"process_error":    "",
			"next_retry_at":    nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset raw event for replay: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no raw event found for delivery id %q", deliveryID)
	}
	return nil
}
