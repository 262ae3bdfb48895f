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

// CreateSyncJobIfAbsent inserts job unless a row with the same lock key
// already exists, satisfying the bootstrap dedup requirement in §4.4 ("a
// repo with a sync job already pending or running is not enqueued twice").
// It returns the existing row when one was found.
func (s *Store) CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (created bool, existing *domain.SyncJob, err error) {
	var row domain.SyncJob
	lookupErr := s.db.WithContext(ctx).Where("lock_key = ?", job.LockKey).First(&row).Error
	if lookupErr == nil {
		return false, &row, nil
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return false, nil, fmt.Errorf("failed to check for existing sync job: %w", lookupErr)
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		var raced domain.SyncJob
		if lookupErr2 := s.db.WithContext(ctx).Where("lock_key = ?", job.LockKey).First(&raced).Error; lookupErr2 == nil {
			return false, &raced, nil
		}
		return false, nil, fmt.Errorf("failed to insert sync job: %w", err)
	}
	return true, job, nil
}

// GetSyncJob loads a job by its system id.
func (s *Store) GetSyncJob(ctx context.Context, id string) (*domain.SyncJob, error) {
	var job domain.SyncJob
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	return &job, nil
}

// UpdateSyncJob persists the full row, including the step journal
// (CompletedSteps) the step runner maintains for crash recovery (§6).
func (s *Store) UpdateSyncJob(ctx context.Context, job *domain.SyncJob) error {
	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}
	return nil
}

// TransitionPendingToRunning atomically claims a pending job, folding the
// MAX_PER_INSTALLATION cap (§4.4) into the same UPDATE statement as the
// claim so two concurrent drains can never push the running count past
// maxRunning.
func (s *Store) TransitionPendingToRunning(ctx context.Context, jobID string, installationID int64, maxRunning int) (bool, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE sync_jobs SET state = ? `+
			`WHERE id = ? AND state = ? `+
			`AND (SELECT COUNT(*) FROM sync_jobs WHERE installation_id = ? AND state = ?) < ?`,
		domain.SyncJobStateRunning,
		jobID, domain.SyncJobStatePending,
		installationID, domain.SyncJobStateRunning, maxRunning,
	)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition sync job to running: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListPendingForInstallation returns candidate jobs ordered by
// prioritySortKey then createdAt, the drain order required by §4.4.
func (s *Store) ListPendingForInstallation(ctx context.Context, installationID int64, limit int) ([]*domain.SyncJob, error) {
	var rows []*domain.SyncJob
	if err := s.db.WithContext(ctx).
		Where("installation_id = ? AND state = ?", installationID, domain.SyncJobStatePending).
		Order("priority_sort_key ASC, created_at ASC").
		Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending sync jobs: %w", err)
	}
	return rows, nil
}

// ListDistinctPendingInstallationIDs returns the installation ids with at
// least one pending sync job, for the scheduler's drain-all sweep.
func (s *Store) ListDistinctPendingInstallationIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&domain.SyncJob{}).
		Where("state = ? AND installation_id IS NOT NULL", domain.SyncJobStatePending).
		Distinct("installation_id").Pluck("installation_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list installations with pending sync jobs: %w", err)
	}
	return ids, nil
}

// ListRetryReadySyncJobs returns jobs in "retry" whose nextRunAt has
// elapsed, mirroring the raw event retry sweep for step-level backoff.
func (s *Store) ListRetryReadySyncJobs(ctx context.Context, now time.Time, limit int) ([]*domain.SyncJob, error) {
	var rows []*domain.SyncJob
	if err := s.db.WithContext(ctx).
		Where("state = ? AND next_run_at <= ?", domain.SyncJobStateRetry, now).
		Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list retry-ready sync jobs: %w", err)
	}
	return rows, nil
}
