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
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// AppendActivity inserts an append-only activity row (invariant 7, §3);
// activity feed rows are never updated or deleted.
func (s *Store) AppendActivity(ctx context.Context, a *domain.ActivityFeed) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// GetRepoOverview returns the current counters row for a repository,
// creating a zeroed one if it doesn't exist yet.
func (s *Store) GetRepoOverview(ctx context.Context, repositoryID string) (*domain.RepoOverview, error) {
	var row domain.RepoOverview
	err := s.db.WithContext(ctx).Where("repository_id = ?", repositoryID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	row = domain.RepoOverview{RepositoryID: repositoryID}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create repo overview: %w", err)
	}
	return &row, nil
}

// IncrementOpenPRCount adjusts the open pull request counter in place, the
// indexed-counter-update strategy that keeps overview reads O(log n)
// instead of a COUNT(*) table scan (§4.5, §9).
func (s *Store) IncrementOpenPRCount(ctx context.Context, repositoryID string, delta int) error {
	return s.adjustOverviewCounter(ctx, repositoryID, "open_pr_count", delta)
}

// IncrementOpenIssueCount adjusts the open issue counter in place.
func (s *Store) IncrementOpenIssueCount(ctx context.Context, repositoryID string, delta int) error {
	return s.adjustOverviewCounter(ctx, repositoryID, "open_issue_count", delta)
}

// IncrementFailingCheckCount adjusts the failing-check counter in place.
func (s *Store) IncrementFailingCheckCount(ctx context.Context, repositoryID string, delta int) error {
	return s.adjustOverviewCounter(ctx, repositoryID, "failing_check_count", delta)
}

// SetLastPushAt records the most recent push timestamp for a repository.
func (s *Store) SetLastPushAt(ctx context.Context, repositoryID string, ms int64) error {
	if err := s.ensureOverviewRow(ctx, repositoryID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Exec(`UPDATE repo_overviews SET last_push_at_ms = ? WHERE repository_id = ?`, ms, repositoryID).
		Error; err != nil {
		return fmt.Errorf("failed to set last push timestamp: %w", err)
	}
	return nil
}

func (s *Store) adjustOverviewCounter(ctx context.Context, repositoryID, column string, delta int) error {
	if err := s.ensureOverviewRow(ctx, repositoryID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Exec(fmt.Sprintf(`UPDATE repo_overviews SET %s = %s + ? WHERE repository_id = ?`, column, column), delta, repositoryID).
		Error; err != nil {
		return fmt.Errorf("failed to adjust %s: %w", column, err)
	}
	return nil
}

func (s *Store) ensureOverviewRow(ctx context.Context, repositoryID string) error {
	row := domain.RepoOverview{RepositoryID: repositoryID}
	if err := s.db.WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("failed to ensure overview row: %w", err)
	}
	return nil
}

// activityCursor is a keyset pagination cursor over (createdAtMs, id),
// ordered newest first.
type activityCursor struct {
	createdAtMs int64
	id          string
}

func encodeCursor(createdAtMs int64, id string) string {
	raw := fmt.Sprintf("%d:%s", createdAtMs, id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (*activityCursor, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return &activityCursor{createdAtMs: ms, id: parts[1]}, nil
}

// ListActivity returns a page of activity feed rows newest-first, using an
// opaque keyset cursor rather than OFFSET so pagination stays cheap as the
// feed grows (§4.5).
func (s *Store) ListActivity(ctx context.Context, repositoryID, cursor string, pageSize int) (rows []*domain.ActivityFeed, nextCursor string, err error) {
	dec, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	q := s.db.WithContext(ctx).Where("repository_id = ?", repositoryID)
	if dec != nil {
		q = q.Where("(created_at_ms < ?) OR (created_at_ms = ? AND id < ?)", dec.createdAtMs, dec.createdAtMs, dec.id)
	}

	var page []*domain.ActivityFeed
	if err := q.Order("created_at_ms DESC, id DESC").Limit(pageSize + 1).Find(&page).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list activity: %w", err)
	}

	if len(page) > pageSize {
		last := page[pageSize-1]
		nextCursor = encodeCursor(last.CreatedAtMs, last.ID.String())
		page = page[:pageSize]
	}
	return page, nextCursor, nil
}

// ListPullRequests returns a page of pull requests for a repository,
// optionally filtered by state, ordered newest-first by number.
func (s *Store) ListPullRequests(ctx context.Context, repositoryID string, state *domain.PullRequestState, cursor string, pageSize int) (rows []*domain.PullRequest, nextCursor string, err error) {
	q := s.db.WithContext(ctx).Where("repository_id = ?", repositoryID)
	if state != nil {
		q = q.Where("state = ?", *state)
	}
	if cursor != "" {
		lastNumber, convErr := strconv.Atoi(cursor)
		if convErr != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", convErr)
		}
		q = q.Where("number < ?", lastNumber)
	}

	var page []*domain.PullRequest
	if err := q.Order("number DESC").Limit(pageSize + 1).Find(&page).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list pull requests: %w", err)
	}
	if len(page) > pageSize {
		nextCursor = strconv.Itoa(page[pageSize-1].Number)
		page = page[:pageSize]
	}
	return page, nextCursor, nil
}

// ListIssues returns a page of issues for a repository, optionally
// filtered by state, ordered newest-first by number.
func (s *Store) ListIssues(ctx context.Context, repositoryID string, state *domain.IssueState, cursor string, pageSize int) (rows []*domain.Issue, nextCursor string, err error) {
	q := s.db.WithContext(ctx).Where("repository_id = ? AND is_pull_request = ?", repositoryID, false)
	if state != nil {
		q = q.Where("state = ?", *state)
	}
	if cursor != "" {
		lastNumber, convErr := strconv.Atoi(cursor)
		if convErr != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", convErr)
		}
		q = q.Where("number < ?", lastNumber)
	}

	var page []*domain.Issue
	if err := q.Order("number DESC").Limit(pageSize + 1).Find(&page).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list issues: %w", err)
	}
	if len(page) > pageSize {
		nextCursor = strconv.Itoa(page[pageSize-1].Number)
		page = page[:pageSize]
	}
	return page, nextCursor, nil
}
