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
	"strconv"
	"strings"

	"github.com/google/go-github/v61/github"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

func (d *Dispatcher) handleIssue(ctx context.Context, e *github.IssuesEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}

	var authorID *int64
	if _, err := d.upsertActor(ctx, e.GetIssue().GetUser()); err != nil {
		return err
	}
	if e.GetIssue().GetUser() != nil {
		id := e.GetIssue().GetUser().GetID()
		authorID = &id
	}

	state := domain.IssueStateOpen
	if e.GetIssue().GetState() == "closed" {
		state = domain.IssueStateClosed
	}

	iss := &domain.Issue{
		RepositoryID:    repo.ID.String(),
		Number:          e.GetIssue().GetNumber(),
		GithubIssueID:   e.GetIssue().GetID(),
		State:           state,
		Title:           e.GetIssue().GetTitle(),
		AuthorUserID:    authorID,
		LabelNames:      joinLabels(e.GetIssue().Labels),
		AssigneeUserIDs: joinAssignees(e.GetIssue().Assignees),
		IsPullRequest:   e.GetIssue().IsPullRequest(),
		GithubUpdatedAt: e.GetIssue().GetUpdatedAt().Time,
	}

	changed, err := d.store.UpsertIssue(ctx, iss)
	if err != nil {
		return fmt.Errorf("failed to upsert issue: %w", err)
	}

	if iss.OptimisticState.CanConfirm() && iss.OptimisticCorrelationID != "" {
		if err := d.store.ConfirmOptimistic(ctx, iss.OptimisticCorrelationID); err != nil {
			return fmt.Errorf("failed to reconcile optimistic issue: %w", err)
		}
	}

	if changed {
		d.projection.OnIssueEvent(ctx, repo.ID.String(), iss, e.GetAction())
	}
	return nil
}

func (d *Dispatcher) handleIssueComment(ctx context.Context, e *github.IssueCommentEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}
	if _, err := d.upsertActor(ctx, e.GetComment().GetUser()); err != nil {
		return err
	}

	if e.GetAction() == "deleted" {
		return d.store.DeleteIssueComment(ctx, repo.ID.String(), e.GetIssue().GetNumber(), e.GetComment().GetID())
	}

	c := &domain.IssueComment{
		RepositoryID:    repo.ID.String(),
		IssueNumber:     e.GetIssue().GetNumber(),
		GithubCommentID: e.GetComment().GetID(),
		AuthorUserID:    e.GetComment().GetUser().GetID(),
		Body:            e.GetComment().GetBody(),
		CreatedAt:       e.GetComment().GetCreatedAt().Time,
		UpdatedAt:       e.GetComment().GetUpdatedAt().Time,
	}

	changed, err := d.store.UpsertIssueComment(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to upsert issue comment: %w", err)
	}

	if c.OptimisticState.CanConfirm() && c.OptimisticCorrelationID != "" {
		if err := d.store.ConfirmOptimistic(ctx, c.OptimisticCorrelationID); err != nil {
			return fmt.Errorf("failed to reconcile optimistic issue comment: %w", err)
		}
	}

	if changed {
		d.projection.OnIssueCommentEvent(ctx, repo.ID.String(), c, e.GetAction())
	}
	return nil
}

func joinLabels(labels []*github.Label) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return strings.Join(names, ",")
}

func joinAssignees(users []*github.User) string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, strconv.FormatInt(u.GetID(), 10))
	}
	return strings.Join(ids, ",")
}
