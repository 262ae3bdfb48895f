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

package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Coordinator implements the eight mutating operations in §4.6.
type Coordinator struct {
	store  Store
	github GitHubWriter
	tokens TokenResolver
	now    func() time.Time
}

// New builds a Coordinator.
func New(store Store, github GitHubWriter, tokens TokenResolver) *Coordinator {
	return &Coordinator{store: store, github: github, tokens: tokens, now: time.Now}
}

func (c *Coordinator) checkDuplicate(ctx context.Context, correlationID string) error {
	exists, err := c.store.CorrelationExists(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("failed to check correlation id: %w", err)
	}
	if exists {
		return &DuplicateOperationError{CorrelationID: correlationID}
	}
	return nil
}

func (c *Coordinator) resolve(ctx context.Context, repositoryID string) (*domain.Repository, string, error) {
	repo, err := c.store.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load repository: %w", err)
	}
	token, err := c.tokens.ResolveToken(ctx, repo)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve token: %w", err)
	}
	return repo, token, nil
}

// recordOutcome applies the accept/fail disposition after the GitHub call
// returns, without rolling back the optimistic row on rejection (§4.6).
func (c *Coordinator) recordOutcome(ctx context.Context, correlationID string, callErr error) error {
	if callErr == nil {
		if err := c.store.AcceptOptimistic(ctx, correlationID); err != nil {
			return fmt.Errorf("failed to accept optimistic write: %w", err)
		}
		return nil
	}
	if err := c.store.FailOptimistic(ctx, correlationID, callErr.Error(), 0); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "failed to record optimistic failure", "correlation_id", correlationID, "error", err)
	}
	return callErr
}

// CreateIssue inserts a stub Issue optimistically, then opens it on GitHub.
func (c *Coordinator) CreateIssue(ctx context.Context, repositoryID string, actorUserID int64, correlationID, title string) (*domain.Issue, error) {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return nil, err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	iss := &domain.Issue{
		RepositoryID: repositoryID,
		Title:        title,
		State:        domain.IssueStateOpen,
		AuthorUserID: &actorUserID,
		OptimisticFields: domain.OptimisticFields{
			OptimisticCorrelationID: correlationID,
			OptimisticOperationType: "create_issue",
			OptimisticState:         domain.OptimisticStatePending,
			OptimisticUpdatedAt:     &now,
		},
	}
	if err := c.store.InsertOptimisticIssue(ctx, iss); err != nil {
		return nil, err
	}

	githubIssueID, number, callErr := c.github.CreateIssue(ctx, token, repo.OwnerLogin, repo.Name, title)
	if callErr == nil {
		iss.GithubIssueID = githubIssueID
		iss.Number = number
		// Number is GitHub-assigned and unknown at insert time; backfill it
		// onto the stub row now so the webhook's later issues event for this
		// number reconciles against this row (UpsertIssue keys on
		// (repositoryId, number)) instead of creating a duplicate.
		if err := c.store.SetIssueGithubNumber(ctx, correlationID, githubIssueID, number); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to backfill issue number", "correlation_id", correlationID, "error", err)
		}
	}
	if err := c.recordOutcome(ctx, correlationID, callErr); err != nil {
		return iss, err
	}
	return iss, nil
}

// CreateComment inserts a stub IssueComment optimistically, then posts it.
func (c *Coordinator) CreateComment(ctx context.Context, repositoryID string, actorUserID int64, correlationID string, number int, body string) (*domain.IssueComment, error) {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return nil, err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	comment := &domain.IssueComment{
		RepositoryID: repositoryID,
		IssueNumber:  number,
		AuthorUserID: actorUserID,
		Body:         body,
		CreatedAt:    now,
		UpdatedAt:    now,
		OptimisticFields: domain.OptimisticFields{
			OptimisticCorrelationID: correlationID,
			OptimisticOperationType: "create_comment",
			OptimisticState:         domain.OptimisticStatePending,
			OptimisticUpdatedAt:     &now,
		},
	}
	if err := c.store.InsertOptimisticIssueComment(ctx, comment); err != nil {
		return nil, err
	}

	githubCommentID, callErr := c.github.CreateIssueComment(ctx, token, repo.OwnerLogin, repo.Name, number, body)
	if callErr == nil {
		comment.GithubCommentID = githubCommentID
	}
	if err := c.recordOutcome(ctx, correlationID, callErr); err != nil {
		return comment, err
	}
	return comment, nil
}

// UpdateIssueState stamps the requested state onto the issue row as a
// pending optimistic operation, then patches GitHub. Issue.state itself is
// not changed here.
func (c *Coordinator) UpdateIssueState(ctx context.Context, repositoryID string, correlationID string, number int, state domain.IssueState) error {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return err
	}
	if err := c.store.SetIssueOptimisticOp(ctx, repositoryID, number, correlationID, "update_issue_state", string(state)); err != nil {
		return err
	}
	callErr := c.github.UpdateIssueState(ctx, token, repo.OwnerLogin, repo.Name, number, string(state))
	return c.recordOutcome(ctx, correlationID, callErr)
}

// MergePullRequest sets state=closed, mergedAt=now optimistically, then
// calls GitHub's merge endpoint.
func (c *Coordinator) MergePullRequest(ctx context.Context, repositoryID string, correlationID string, number int, method string) error {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return err
	}

	pr, err := c.store.GetPullRequest(ctx, repositoryID, number)
	if err != nil {
		return fmt.Errorf("failed to load pull request: %w", err)
	}
	now := c.now()
	pr.State = domain.PullRequestStateClosed
	pr.MergedAt = &now
	pr.OptimisticCorrelationID = correlationID
	pr.OptimisticOperationType = "merge_pull_request"
	pr.OptimisticState = domain.OptimisticStatePending
	pr.OptimisticUpdatedAt = &now
	if _, err := c.store.UpsertPullRequest(ctx, pr); err != nil {
		return fmt.Errorf("failed to apply optimistic merge: %w", err)
	}

	callErr := c.github.MergePullRequest(ctx, token, repo.OwnerLogin, repo.Name, number, method)
	return c.recordOutcome(ctx, correlationID, callErr)
}

// UpdatePullRequestBranch stamps expectedHeadSha onto the pull request row
// as a pending optimistic operation, then updates the branch on GitHub,
// guarded by expectedHeadSha for a compare-and-swap. PullRequest.headSha
// itself is not changed here.
func (c *Coordinator) UpdatePullRequestBranch(ctx context.Context, repositoryID string, correlationID string, number int, expectedHeadSha string) error {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return err
	}
	if err := c.store.SetPullRequestOptimisticOp(ctx, repositoryID, number, correlationID, "update_pull_request_branch", expectedHeadSha); err != nil {
		return err
	}
	callErr := c.github.UpdatePullRequestBranch(ctx, token, repo.OwnerLogin, repo.Name, number, expectedHeadSha)
	return c.recordOutcome(ctx, correlationID, callErr)
}

// SubmitPrReview inserts a review row optimistically, then submits it.
func (c *Coordinator) SubmitPrReview(ctx context.Context, repositoryID string, actorUserID int64, correlationID string, number int, event, body string) (*domain.PullRequestReview, error) {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return nil, err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	review := &domain.PullRequestReview{
		RepositoryID:      repositoryID,
		PullRequestNumber: number,
		AuthorUserID:      actorUserID,
		State:             event,
		Body:              body,
		OptimisticFields: domain.OptimisticFields{
			OptimisticCorrelationID: correlationID,
			OptimisticOperationType: "submit_pr_review",
			OptimisticState:         domain.OptimisticStatePending,
			OptimisticUpdatedAt:     &now,
		},
	}
	if err := c.store.InsertOptimisticPullRequestReview(ctx, review); err != nil {
		return nil, err
	}

	githubReviewID, callErr := c.github.CreatePullRequestReview(ctx, token, repo.OwnerLogin, repo.Name, number, event, body)
	if callErr == nil {
		review.GithubReviewID = githubReviewID
	}
	if err := c.recordOutcome(ctx, correlationID, callErr); err != nil {
		return review, err
	}
	return review, nil
}

// UpdateLabels recomputes the label set from add/remove and stamps it onto
// the issue row as a pending optimistic operation, then sends the full set
// to GitHub. Issue.labelNames itself is not changed here.
func (c *Coordinator) UpdateLabels(ctx context.Context, repositoryID string, correlationID string, number int, add, remove []string) error {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return err
	}

	iss, err := c.store.GetIssue(ctx, repositoryID, number)
	if err != nil {
		return fmt.Errorf("failed to load issue: %w", err)
	}
	labels := applyAddRemove(splitCSV(iss.LabelNames), add, remove)
	if err := c.store.SetIssueOptimisticOp(ctx, repositoryID, number, correlationID, "update_labels", strings.Join(labels, ",")); err != nil {
		return err
	}
	callErr := c.github.UpdateIssueLabels(ctx, token, repo.OwnerLogin, repo.Name, number, labels)
	return c.recordOutcome(ctx, correlationID, callErr)
}

// UpdateAssignees recomputes assigneeUserIds from add/remove logins
// optimistically, then applies the change on GitHub. The add/remove lists
// here are logins; GitHub resolves them to user ids on its side.
func (c *Coordinator) UpdateAssignees(ctx context.Context, repositoryID string, correlationID string, number int, add, remove []string) error {
	if err := c.checkDuplicate(ctx, correlationID); err != nil {
		return err
	}
	repo, token, err := c.resolve(ctx, repositoryID)
	if err != nil {
		return err
	}

	if err := c.store.SetIssueOptimisticOp(ctx, repositoryID, number, correlationID, "update_assignees", strings.Join(add, ",")+"|"+strings.Join(remove, ",")); err != nil {
		return err
	}
	callErr := c.github.UpdateIssueAssignees(ctx, token, repo.OwnerLogin, repo.Name, number, add)
	return c.recordOutcome(ctx, correlationID, callErr)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func applyAddRemove(current, add, remove []string) []string {
	set := map[string]bool{}
	for _, v := range current {
		set[v] = true
	}
	for _, v := range remove {
		delete(set, v)
	}
	for _, v := range add {
		set[v] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
