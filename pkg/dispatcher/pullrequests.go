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

package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/go-github/v61/github"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

func (d *Dispatcher) handlePullRequest(ctx context.Context, e *github.PullRequestEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}

	var authorID *int64
	if _, err := d.upsertActor(ctx, e.GetPullRequest().GetUser()); err != nil {
		return err
	}
	if e.GetPullRequest().GetUser() != nil {
		id := e.GetPullRequest().GetUser().GetID()
		authorID = &id
	}

	state := domain.PullRequestStateOpen
	if e.GetPullRequest().GetState() == "closed" {
		state = domain.PullRequestStateClosed
	}

	pr := &domain.PullRequest{
		RepositoryID:    repo.ID.String(),
		Number:          e.GetNumber(),
		GithubPrID:      e.GetPullRequest().GetID(),
		Title:           e.GetPullRequest().GetTitle(),
		State:           state,
		Draft:           e.GetPullRequest().GetDraft(),
		HeadSha:         e.GetPullRequest().GetHead().GetSHA(),
		HeadRefName:     e.GetPullRequest().GetHead().GetRef(),
		BaseRefName:     e.GetPullRequest().GetBase().GetRef(),
		MergeableState:  e.GetPullRequest().GetMergeableState(),
		AuthorUserID:    authorID,
		GithubUpdatedAt: e.GetPullRequest().GetUpdatedAt().Time,
	}
	if e.GetPullRequest().MergedAt != nil {
		t := e.GetPullRequest().GetMergedAt().Time
		pr.MergedAt = &t
	}
	if e.GetPullRequest().ClosedAt != nil {
		t := e.GetPullRequest().GetClosedAt().Time
		pr.ClosedAt = &t
	}

	changed, err := d.store.UpsertPullRequest(ctx, pr)
	if err != nil {
		return fmt.Errorf("failed to upsert pull request: %w", err)
	}

	if pr.OptimisticState.CanConfirm() && pr.OptimisticCorrelationID != "" {
		if err := d.store.ConfirmOptimistic(ctx, pr.OptimisticCorrelationID); err != nil {
			return fmt.Errorf("failed to reconcile optimistic pull request: %w", err)
		}
	}

	if changed {
		d.projection.OnPullRequestEvent(ctx, repo.ID.String(), pr, e.GetAction())
	}
	return nil
}

func (d *Dispatcher) handlePullRequestReview(ctx context.Context, e *github.PullRequestReviewEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}
	if _, err := d.upsertActor(ctx, e.GetReview().GetUser()); err != nil {
		return err
	}

	r := &domain.PullRequestReview{
		RepositoryID:      repo.ID.String(),
		PullRequestNumber: e.GetPullRequest().GetNumber(),
		GithubReviewID:    e.GetReview().GetID(),
		AuthorUserID:      e.GetReview().GetUser().GetID(),
		State:             e.GetReview().GetState(),
		Body:              e.GetReview().GetBody(),
		CommitSha:         e.GetReview().GetCommitID(),
	}
	if e.GetReview().SubmittedAt != nil {
		t := e.GetReview().GetSubmittedAt().Time
		r.SubmittedAt = &t
	}

	changed, err := d.store.UpsertPullRequestReview(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to upsert pull request review: %w", err)
	}

	if r.OptimisticState.CanConfirm() && r.OptimisticCorrelationID != "" {
		if err := d.store.ConfirmOptimistic(ctx, r.OptimisticCorrelationID); err != nil {
			return fmt.Errorf("failed to reconcile optimistic review: %w", err)
		}
	}

	if changed {
		d.projection.OnReviewEvent(ctx, repo.ID.String(), r)
	}
	return nil
}

func (d *Dispatcher) handlePullRequestReviewComment(ctx context.Context, e *github.PullRequestReviewCommentEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}
	if _, err := d.upsertActor(ctx, e.GetComment().GetUser()); err != nil {
		return err
	}

	if e.GetAction() == "deleted" {
		return d.store.DeletePullRequestReviewComment(ctx, repo.ID.String(), e.GetComment().GetID())
	}

	c := &domain.PullRequestReviewComment{
		RepositoryID:          repo.ID.String(),
		PullRequestNumber:     e.GetPullRequest().GetNumber(),
		GithubReviewCommentID: e.GetComment().GetID(),
		AuthorUserID:          e.GetComment().GetUser().GetID(),
		Body:                  e.GetComment().GetBody(),
		Path:                  e.GetComment().GetPath(),
		Side:                  e.GetComment().GetSide(),
	}
	if e.GetComment().Line != nil {
		line := e.GetComment().GetLine()
		c.Line = &line
	}
	if e.GetComment().InReplyTo != nil {
		id := e.GetComment().GetInReplyTo()
		c.InReplyToGithubReviewCommentID = &id
	}

	if err := d.store.UpsertPullRequestReviewComment(ctx, c); err != nil {
		return fmt.Errorf("failed to upsert pull request review comment: %w", err)
	}
	return nil
}
