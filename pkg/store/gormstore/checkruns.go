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

	"gorm.io/gorm"

	"github.com/ghmirror/ghmirror/pkg/domain"
	"github.com/ghmirror/ghmirror/pkg/store/watcher"
)

// UpsertCheckRun creates or updates a CheckRun keyed by (repositoryId,
// githubCheckRunId). Returns the previous conclusion so the dispatcher can
// tell whether this write is the one that completed the run (§9: only
// "completed" transitions with a conclusion generate activity).
func (s *Store) UpsertCheckRun(ctx context.Context, cr *domain.CheckRun) (prevConclusion string, err error) {
	var existing domain.CheckRun
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND github_check_run_id = ?", cr.RepositoryID, cr.GithubCheckRunID).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(cr).Error; err != nil {
			return "", fmt.Errorf("failed to create check run: %w", err)
		}
		s.publish(watcher.EntityCheckRun, watcher.OperationCreate, cr)
		return "", nil
	case lookupErr != nil:
		return "", fmt.Errorf("failed to look up check run: %w", lookupErr)
	}

	if !cr.GithubUpdatedAt.After(existing.GithubUpdatedAt) {
		return existing.Conclusion, nil
	}

	prev := existing.Conclusion
	cr.Base = existing.Base
	if err := s.db.WithContext(ctx).Save(cr).Error; err != nil {
		return "", fmt.Errorf("failed to update check run: %w", err)
	}
	s.publish(watcher.EntityCheckRun, watcher.OperationUpdate, cr)
	return prev, nil
}

// UpsertWorkflowRun creates or updates a WorkflowRun keyed by githubRunId.
func (s *Store) UpsertWorkflowRun(ctx context.Context, wr *domain.WorkflowRun) error {
	var existing domain.WorkflowRun
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND github_run_id = ?", wr.RepositoryID, wr.GithubRunID).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(wr).Error; err != nil {
			return fmt.Errorf("failed to create workflow run: %w", err)
		}
		s.publish(watcher.EntityWorkflowRun, watcher.OperationCreate, wr)
		return nil
	case lookupErr != nil:
		return fmt.Errorf("failed to look up workflow run: %w", lookupErr)
	}

	if !wr.GithubUpdatedAt.After(existing.GithubUpdatedAt) {
		return nil
	}
	wr.Base = existing.Base
	if err := s.db.WithContext(ctx).Save(wr).Error; err != nil {
		return fmt.Errorf("failed to update workflow run: %w", err)
	}
	s.publish(watcher.EntityWorkflowRun, watcher.OperationUpdate, wr)
	return nil
}

// UpsertWorkflowJob creates or updates a WorkflowJob keyed by githubJobId.
func (s *Store) UpsertWorkflowJob(ctx context.Context, wj *domain.WorkflowJob) error {
	var existing domain.WorkflowJob
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND github_job_id = ?", wj.RepositoryID, wj.GithubJobID).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(wj).Error; err != nil {
			return fmt.Errorf("failed to create workflow job: %w", err)
		}
		return nil
	case lookupErr != nil:
		return fmt.Errorf("failed to look up workflow job: %w", lookupErr)
	}

	wj.Base = existing.Base
	if err := s.db.WithContext(ctx).Save(wj).Error; err != nil {
		return fmt.Errorf("failed to update workflow job: %w", err)
	}
	return nil
}
