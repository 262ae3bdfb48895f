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

// UpsertPullRequest creates or updates a PullRequest keyed by
// (repositoryId, number), guarding against out-of-order delivery (invariant
// 3, §3): an incoming row whose GithubUpdatedAt is not newer than the
// stored one is discarded. Reports whether a write actually happened.
func (s *Store) UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (changed bool, err error) {
	var existing domain.PullRequest
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND number = ?", pr.RepositoryID, pr.Number).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(pr).Error; err != nil {
			return false, fmt.Errorf("failed to create pull request: %w", err)
		}
		s.publish(watcher.EntityPullRequest, watcher.OperationCreate, pr)
		return true, nil
	case lookupErr != nil:
		return false, fmt.Errorf("failed to look up pull request: %w", lookupErr)
	}

	if !pr.GithubUpdatedAt.After(existing.GithubUpdatedAt) {
		return false, nil
	}

	pr.Base = existing.Base
	pr.OptimisticFields = existing.OptimisticFields
	if err := s.db.WithContext(ctx).Save(pr).Error; err != nil {
		return false, fmt.Errorf("failed to update pull request: %w", err)
	}
	s.publish(watcher.EntityPullRequest, watcher.OperationUpdate, pr)
	return true, nil
}

// GetPullRequest looks up a PullRequest by (repositoryId, number).
func (s *Store) GetPullRequest(ctx context.Context, repositoryID string, number int) (*domain.PullRequest, error) {
	var row domain.PullRequest
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND number = ?", repositoryID, number).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	return &row, nil
}

// UpsertPullRequestReview creates or updates a review keyed by
// (repositoryId, pullRequestNumber, githubReviewId).
func (s *Store) UpsertPullRequestReview(ctx context.Context, r *domain.PullRequestReview) (changed bool, err error) {
	var existing domain.PullRequestReview
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND pull_request_number = ? AND github_review_id = ?",
			r.RepositoryID, r.PullRequestNumber, r.GithubReviewID).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
			return false, fmt.Errorf("failed to create pull request review: %w", err)
		}
		s.publish(watcher.EntityReview, watcher.OperationCreate, r)
		return true, nil
	case lookupErr != nil:
		return false, fmt.Errorf("failed to look up pull request review: %w", lookupErr)
	}

	r.Base = existing.Base
	r.OptimisticFields = existing.OptimisticFields
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return false, fmt.Errorf("failed to update pull request review: %w", err)
	}
	s.publish(watcher.EntityReview, watcher.OperationUpdate, r)
	return true, nil
}

// ListOpenPullRequests returns every open pull request for a repository,
// the input to the bootstrap workflow's check-run analysis step (§4.4 step
// 6: "read open PRs from the store, compute the unique set of head SHAs").
func (s *Store) ListOpenPullRequests(ctx context.Context, repositoryID string) ([]*domain.PullRequest, error) {
	var rows []*domain.PullRequest
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND state = ?", repositoryID, domain.PullRequestStateOpen).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list open pull requests: %w", err)
	}
	return rows, nil
}

// UpsertPullRequestReviewComment creates or updates an inline review
// comment keyed by (repositoryId, githubReviewCommentId).
func (s *Store) UpsertPullRequestReviewComment(ctx context.Context, c *domain.PullRequestReviewComment) error {
	var existing domain.PullRequestReviewComment
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND github_review_comment_id = ?", c.RepositoryID, c.GithubReviewCommentID).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
			return fmt.Errorf("failed to create review comment: %w", err)
		}
		return nil
	case lookupErr != nil:
		return fmt.Errorf("failed to look up review comment: %w", lookupErr)
	}

	c.Base = existing.Base
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("failed to update review comment: %w", err)
	}
	return nil
}

// DeletePullRequestReviewComment removes a review comment on a
// pull_request_review_comment "deleted" action.
func (s *Store) DeletePullRequestReviewComment(ctx context.Context, repositoryID string, githubReviewCommentID int64) error {
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND github_review_comment_id = ?", repositoryID, githubReviewCommentID).
		Delete(&domain.PullRequestReviewComment{}).Error; err != nil {
		return fmt.Errorf("failed to delete review comment: %w", err)
	}
	return nil
}

// UpsertPullRequestFile creates or updates a file entry keyed by
// (repositoryId, pullRequestNumber, filename); identity tracked via
// HeadSha, not a timestamp (§4.3).
func (s *Store) UpsertPullRequestFile(ctx context.Context, f *domain.PullRequestFile) error {
	var existing domain.PullRequestFile
	lookupErr := s.db.WithContext(ctx).
		Where("repository_id = ? AND pull_request_number = ? AND filename = ?", f.RepositoryID, f.PullRequestNumber, f.Filename).
		First(&existing).Error

	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
			return fmt.Errorf("failed to create pull request file: %w", err)
		}
		return nil
	case lookupErr != nil:
		return fmt.Errorf("failed to look up pull request file: %w", lookupErr)
	}

	if existing.HeadSha == f.HeadSha {
		return nil
	}
	f.Base = existing.Base
	if err := s.db.WithContext(ctx).Save(f).Error; err != nil {
		return fmt.Errorf("failed to update pull request file: %w", err)
	}
	return nil
}

// ListPullRequestFiles returns every tracked file for a pull request.
func (s *Store) ListPullRequestFiles(ctx context.Context, repositoryID string, number int) ([]*domain.PullRequestFile, error) {
	var rows []*domain.PullRequestFile
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND pull_request_number = ?", repositoryID, number).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pull request files: %w", err)
	}
	return rows, nil
}
