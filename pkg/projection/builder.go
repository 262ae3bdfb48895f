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

package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Builder satisfies dispatcher.ProjectionBuilder. Every method logs and
// swallows its own errors: a projection failure must never fail the raw
// event it was triggered by (§4.3, §4.5).
type Builder struct {
	store Store
	now   func() time.Time
}

// New builds a Builder over store.
func New(store Store) *Builder {
	return &Builder{store: store, now: time.Now}
}

func (b *Builder) warn(ctx context.Context, op string, err error) {
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "projection update failed", "op", op, "error", err)
	}
}

// OnRepositoryEvent ensures an overview row exists for a newly discovered
// repository.
func (b *Builder) OnRepositoryEvent(ctx context.Context, repositoryID string) {
	if _, err := b.store.GetRepoOverview(ctx, repositoryID); err != nil {
		b.warn(ctx, "repository", err)
	}
}

// OnPullRequestEvent recomputes the open PR counter and appends an
// activity row for opened/merged/closed transitions.
func (b *Builder) OnPullRequestEvent(ctx context.Context, repositoryID string, pr *domain.PullRequest, eventAction string) {
	switch eventAction {
	case "opened", "reopened":
		b.warn(ctx, "open_pr_count", b.store.IncrementOpenPRCount(ctx, repositoryID, 1))
		b.appendActivity(ctx, repositoryID, "pr.opened", fmt.Sprintf("Pull request #%d opened: %s", pr.Number, pr.Title), pr.Number)
	case "closed":
		b.warn(ctx, "open_pr_count", b.store.IncrementOpenPRCount(ctx, repositoryID, -1))
		if pr.MergedAt != nil {
			b.appendActivity(ctx, repositoryID, "pr.merged", fmt.Sprintf("Pull request #%d merged: %s", pr.Number, pr.Title), pr.Number)
		} else {
			b.appendActivity(ctx, repositoryID, "pr.closed", fmt.Sprintf("Pull request #%d closed: %s", pr.Number, pr.Title), pr.Number)
		}
	}
}

// OnIssueEvent recomputes the open issue counter and appends an activity
// row for opened/closed transitions. Pull request rows arriving through
// the issues payload shape are ignored; they are projected via
// OnPullRequestEvent instead.
func (b *Builder) OnIssueEvent(ctx context.Context, repositoryID string, iss *domain.Issue, eventAction string) {
	if iss.IsPullRequest {
		return
	}
	switch eventAction {
	case "opened", "reopened":
		b.warn(ctx, "open_issue_count", b.store.IncrementOpenIssueCount(ctx, repositoryID, 1))
		b.appendActivity(ctx, repositoryID, "issue.opened", fmt.Sprintf("Issue #%d opened: %s", iss.Number, iss.Title), iss.Number)
	case "closed":
		b.warn(ctx, "open_issue_count", b.store.IncrementOpenIssueCount(ctx, repositoryID, -1))
		b.appendActivity(ctx, repositoryID, "issue.closed", fmt.Sprintf("Issue #%d closed: %s", iss.Number, iss.Title), iss.Number)
	}
}

// OnIssueCommentEvent appends an activity row for a new comment on either
// an issue or a pull request's conversation tab.
func (b *Builder) OnIssueCommentEvent(ctx context.Context, repositoryID string, ic *domain.IssueComment, eventAction string) {
	if eventAction != "created" {
		return
	}
	b.appendActivity(ctx, repositoryID, "issue_comment.created", fmt.Sprintf("New comment on #%d", ic.IssueNumber), ic.IssueNumber)
}

// OnReviewEvent appends an activity row tagged with the review's state
// (approved, changes_requested, commented).
func (b *Builder) OnReviewEvent(ctx context.Context, repositoryID string, r *domain.PullRequestReview) {
	b.appendActivity(ctx, repositoryID, fmt.Sprintf("pr_review.%s", r.State),
		fmt.Sprintf("Review %s on #%d", r.State, r.PullRequestNumber), r.PullRequestNumber)
}

// OnCheckRunEvent recomputes the failing-check counter and appends an
// activity row, but only for completed runs (§4.5: "only for completed").
func (b *Builder) OnCheckRunEvent(ctx context.Context, repositoryID string, cr *domain.CheckRun, prevConclusion string) {
	if cr.Status != "completed" {
		return
	}
	wasFailing := prevConclusion == "failure" || prevConclusion == "timed_out"
	isFailing := cr.Conclusion == "failure" || cr.Conclusion == "timed_out"
	switch {
	case isFailing && !wasFailing:
		b.warn(ctx, "failing_check_count", b.store.IncrementFailingCheckCount(ctx, repositoryID, 1))
	case !isFailing && wasFailing:
		b.warn(ctx, "failing_check_count", b.store.IncrementFailingCheckCount(ctx, repositoryID, -1))
	}
	b.appendActivity(ctx, repositoryID, fmt.Sprintf("check_run.%s", cr.Conclusion), fmt.Sprintf("Check %s: %s", cr.Name, cr.Conclusion), 0)
}

// OnPushEvent records the last push timestamp and appends a push summary
// activity row.
func (b *Builder) OnPushEvent(ctx context.Context, repositoryID, branch string, commitCount int, pushedAtMs int64) {
	b.warn(ctx, "last_push_at", b.store.SetLastPushAt(ctx, repositoryID, pushedAtMs))
	b.appendActivity(ctx, repositoryID, "push", fmt.Sprintf("Pushed %d commits to %s", commitCount, branch), 0)
}

func (b *Builder) appendActivity(ctx context.Context, repositoryID, activityType, title string, entityNumber int) {
	a := &domain.ActivityFeed{
		RepositoryID: repositoryID,
		CreatedAtMs:  b.now().UnixMilli(),
		ActivityType: activityType,
		Title:        title,
	}
	if entityNumber != 0 {
		a.EntityNumber = &entityNumber
	}
	b.warn(ctx, "append_activity", b.store.AppendActivity(ctx, a))
}
