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

// UpsertIssue creates or updates an Issue keyed by (repositoryId, number),
// subject to the same out-of-order guard as pull requests (invariant 3).
func (s *Store) UpsertIssue(ctx context.Context, iss *domain.Issue) (changed bool, err error) {
	var existing domain.Issue
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND number = ?", iss.RepositoryID, iss.Number).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(iss).Error; err != nil {
			return false, fmt.Errorf("failed to create issue: %w", err)
		}
		s.publish(watcher.EntityIssue, watcher.OperationCreate, iss)
		return true, nil
	case lookupErr != nil:
		return false, fmt.Errorf("failed to look up issue: %w", lookupErr)
	}

	if !iss.GithubUpdatedAt.After(existing.GithubUpdatedAt) {
		return false, nil
	}

	iss.Base = existing.Base
	iss.OptimisticFields = existing.OptimisticFields
	if err := s.db.WithContext(ctx).Save(iss).Error; err != nil {
		return false, fmt.Errorf("failed to update issue: %w", err)
	}
	s.publish(watcher.EntityIssue, watcher.OperationUpdate, iss)
	return true, nil
}

// GetIssue looks up an Issue by (repositoryId, number).
func (s *Store) GetIssue(ctx context.Context, repositoryID string, number int) (*domain.Issue, error) {
	var row domain.Issue
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND number = ?", repositoryID, number).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	return &row, nil
}

// UpsertIssueComment creates or updates a comment keyed by (repositoryId,
// issueNumber, githubCommentId). The same table backs PR conversation
// comments, since GitHub's issue_comment webhook fires for both (§4.3).
func (s *Store) UpsertIssueComment(ctx context.Context, c *domain.IssueComment) (changed bool, err error) {
	var existing domain.IssueComment
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND issue_number = ? AND github_comment_id = ?", c.RepositoryID, c.IssueNumber, c.GithubCommentID).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
			return false, fmt.Errorf("failed to create issue comment: %w", err)
		}
		s.publish(watcher.EntityIssueComment, watcher.OperationCreate, c)
		return true, nil
	case lookupErr != nil:
		return false, fmt.Errorf("failed to look up issue comment: %w", lookupErr)
	}

	c.Base = existing.Base
	c.OptimisticFields = existing.OptimisticFields
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return false, fmt.Errorf("failed to update issue comment: %w", err)
	}
	s.publish(watcher.EntityIssueComment, watcher.OperationUpdate, c)
	return true, nil
}

// GetIssueCommentByCorrelationID finds an optimistically-created comment
// still awaiting webhook confirmation, used by the coordinator's
// reconciliation pass (§4.6).
func (s *Store) GetIssueCommentByCorrelationID(ctx context.Context, correlationID string) (*domain.IssueComment, error) {
	var row domain.IssueComment
	if err := s.db.WithContext(ctx).
		Where("optimistic_correlation_id = ?", correlationID).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get issue comment by correlation id: %w", err)
	}
	return &row, nil
}

// DeleteIssueComment removes a comment on an issue_comment "deleted" action.
func (s *Store) DeleteIssueComment(ctx context.Context, repositoryID string, issueNumber int, githubCommentID int64) error {
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND issue_number = ? AND github_comment_id = ?", repositoryID, issueNumber, githubCommentID).
		Delete(&domain.IssueComment{}).Error; err != nil {
		return fmt.Errorf("failed to delete issue comment: %w", err)
	}
	return nil
}
