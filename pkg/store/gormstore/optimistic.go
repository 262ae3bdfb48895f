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
	"fmt"
	"time"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// optimisticTables lists every table carrying OptimisticFields, in the
// order CorrelationExists and the confirm/fail sweeps probe them. A
// correlation id is coordinator-global (§4.6): two operations of different
// types must not reuse one, so duplicate detection checks all of them.
var optimisticTables = []any{
	&domain.Issue{},
	&domain.IssueComment{},
	&domain.PullRequest{},
	&domain.PullRequestReview{},
}

// CorrelationExists reports whether correlationId has already been used by
// any optimistic write, the dedup check behind DuplicateOperationError
// (§4.6).
func (s *Store) CorrelationExists(ctx context.Context, correlationID string) (bool, error) {
	for _, model := range optimisticTables {
		var count int64
		if err := s.db.WithContext(ctx).Model(model).
			Where("optimistic_correlation_id = ?", correlationID).
			Count(&count).Error; err != nil {
			return false, fmt.Errorf("failed to check correlation id: %w", err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// InsertOptimisticIssue inserts an issue row ahead of webhook confirmation,
// for the createIssue operation (§4.6).
func (s *Store) InsertOptimisticIssue(ctx context.Context, iss *domain.Issue) error {
	if err := s.db.WithContext(ctx).Create(iss).Error; err != nil {
		return fmt.Errorf("failed to insert optimistic issue: %w", err)
	}
	return nil
}

// InsertOptimisticIssueComment inserts a comment row ahead of webhook
// confirmation, for the createComment operation (§4.6).
func (s *Store) InsertOptimisticIssueComment(ctx context.Context, c *domain.IssueComment) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to insert optimistic issue comment: %w", err)
	}
	return nil
}

// InsertOptimisticPullRequestReview inserts a review row ahead of webhook
// confirmation, for the submitPrReview operation (§4.6).
func (s *Store) InsertOptimisticPullRequestReview(ctx context.Context, r *domain.PullRequestReview) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to insert optimistic pull request review: %w", err)
	}
	return nil
}

// SetIssueGithubNumber backfills the GitHub-assigned issue number and id
// onto a stub row created by InsertOptimisticIssue, once CreateIssue's
// response reports them. Without this, the row stays keyed on number 0 and
// the webhook's later issues event for the real number never matches it in
// UpsertIssue, producing a duplicate row instead of a confirmation.
func (s *Store) SetIssueGithubNumber(ctx context.Context, correlationID string, githubIssueID int64, number int) error {
	res := s.db.WithContext(ctx).Model(&domain.Issue{}).
		Where("optimistic_correlation_id = ?", correlationID).
		Updates(map[string]any{
			"github_issue_id": githubIssueID,
			"number":          number,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to backfill issue github number: %w", res.Error)
	}
	return nil
}

// SetIssueOptimisticOp stamps an in-flight optimistic mutation onto an
// existing issue row, for updateIssueState / updateLabels / updateAssignees
// (§4.6). It overwrites any previous pending op's bookkeeping on that row;
// only the most recent in-flight mutation per row is tracked.
func (s *Store) SetIssueOptimisticOp(ctx context.Context, repositoryID string, number int, correlationID, opType, payloadJSON string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&domain.Issue{}).
		Where("repository_id = ? AND number = ?", repositoryID, number).
		Updates(map[string]any{
			"optimistic_correlation_id": correlationID,
			"optimistic_operation_type": opType,
			"optimistic_state":          domain.OptimisticStatePending,
			"optimistic_payload_json":   payloadJSON,
			"optimistic_updated_at":     &now,
			"optimistic_error_message":  "",
			"optimistic_error_status":   0,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set issue optimistic op: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no issue found for repository %q number %d", repositoryID, number)
	}
	return nil
}

// SetPullRequestOptimisticOp stamps an in-flight optimistic mutation onto
// an existing pull request row, for mergePullRequest /
// updatePullRequestBranch (§4.6).
func (s *Store) SetPullRequestOptimisticOp(ctx context.Context, repositoryID string, number int, correlationID, opType, payloadJSON string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&domain.PullRequest{}).
		Where("repository_id = ? AND number = ?", repositoryID, number).
		Updates(map[string]any{
			"optimistic_correlation_id": correlationID,
			"optimistic_operation_type": opType,
			"optimistic_state":          domain.OptimisticStatePending,
			"optimistic_payload_json":   payloadJSON,
			"optimistic_updated_at":     &now,
			"optimistic_error_message":  "",
			"optimistic_error_status":   0,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set pull request optimistic op: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no pull request found for repository %q number %d", repositoryID, number)
	}
	return nil
}

// AcceptOptimistic moves a pending correlation id to "accepted" once the
// GitHub API call that started it returns success (§4.6). It is a no-op on
// whichever table doesn't hold the id.
func (s *Store) AcceptOptimistic(ctx context.Context, correlationID string) error {
	return s.transitionOptimistic(ctx, correlationID, map[string]any{
		"optimistic_state": domain.OptimisticStateAccepted,
	}, domain.OptimisticStatePending)
}

// ConfirmOptimistic moves pending or accepted to "confirmed" once the
// matching webhook delivery arrives, the terminal, monotonic transition
// required by invariant 6 (§3).
func (s *Store) ConfirmOptimistic(ctx context.Context, correlationID string) error {
	for _, model := range optimisticTables {
		res := s.db.WithContext(ctx).Model(model).
			Where("optimistic_correlation_id = ? AND optimistic_state IN ?", correlationID,
				[]domain.OptimisticState{domain.OptimisticStatePending, domain.OptimisticStateAccepted}).
			Update("optimistic_state", domain.OptimisticStateConfirmed)
		if res.Error != nil {
			return fmt.Errorf("failed to confirm optimistic write: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return nil
}

// FailOptimistic records that the GitHub API call behind correlationId
// failed, without rolling back the speculative row (§4.6: failed rows are
// surfaced, not reverted).
func (s *Store) FailOptimistic(ctx context.Context, correlationID, errMessage string, errStatus int) error {
	return s.transitionOptimistic(ctx, correlationID, map[string]any{
		"optimistic_state":         domain.OptimisticStateFailed,
		"optimistic_error_message": errMessage,
		"optimistic_error_status":  errStatus,
	}, "")
}

func (s *Store) transitionOptimistic(ctx context.Context, correlationID string, updates map[string]any, requireState domain.OptimisticState) error {
	for _, model := range optimisticTables {
		q := s.db.WithContext(ctx).Model(model).Where("optimistic_correlation_id = ?", correlationID)
		if requireState != "" {
			q = q.Where("optimistic_state = ?", requireState)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to transition optimistic write: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return nil
}
