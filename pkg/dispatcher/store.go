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

// Package dispatcher is the Event Dispatcher & Domain Writer (§4.3): it
// decodes a stored RawEvent's payload and applies it to the mirrored
// domain entities, performing user upserts, out-of-order protection,
// auto-discovery of unknown repositories, and optimistic-write
// reconciliation.
package dispatcher

import (
	"context"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Store is the persistence contract the dispatcher needs. It is satisfied
// by pkg/store/gormstore.Store.
type Store interface {
	GetRepositoryByGithubID(ctx context.Context, githubRepoID int64) (*domain.Repository, error)
	GetOrCreateStubRepository(ctx context.Context, githubRepoID, installationID int64, fullName, ownerLogin, name string) (*domain.Repository, bool, error)
	UpsertRepositoryMetadata(ctx context.Context, repo *domain.Repository) error

	UpsertUser(ctx context.Context, githubUserID int64, login, avatarURL string, typ domain.UserType) (*domain.User, error)

	UpsertInstallation(ctx context.Context, in *domain.Installation) (*domain.Installation, error)

	UpsertBranch(ctx context.Context, b *domain.Branch) error
	DeleteBranch(ctx context.Context, repositoryID, name string) error
	UpsertCommit(ctx context.Context, c *domain.Commit) error

	UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (bool, error)
	GetPullRequest(ctx context.Context, repositoryID string, number int) (*domain.PullRequest, error)
	UpsertPullRequestReview(ctx context.Context, r *domain.PullRequestReview) (bool, error)
	UpsertPullRequestReviewComment(ctx context.Context, c *domain.PullRequestReviewComment) error
	DeletePullRequestReviewComment(ctx context.Context, repositoryID string, githubReviewCommentID int64) error

	UpsertIssue(ctx context.Context, iss *domain.Issue) (bool, error)
	GetIssue(ctx context.Context, repositoryID string, number int) (*domain.Issue, error)
	UpsertIssueComment(ctx context.Context, c *domain.IssueComment) (bool, error)
	GetIssueCommentByCorrelationID(ctx context.Context, correlationID string) (*domain.IssueComment, error)
	DeleteIssueComment(ctx context.Context, repositoryID string, issueNumber int, githubCommentID int64) error

	UpsertCheckRun(ctx context.Context, cr *domain.CheckRun) (string, error)
	UpsertWorkflowRun(ctx context.Context, wr *domain.WorkflowRun) error
	UpsertWorkflowJob(ctx context.Context, wj *domain.WorkflowJob) error

	CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (bool, *domain.SyncJob, error)

	ConfirmOptimistic(ctx context.Context, correlationID string) error
}

// ProjectionBuilder is invoked after every successfully applied domain
// write (§4.5). Failures are logged by the builder itself, never propagated back
// into the dispatch outcome (§4.3: a projection failure must not fail the
// raw event).
type ProjectionBuilder interface {
	OnRepositoryEvent(ctx context.Context, repositoryID string)
	OnPullRequestEvent(ctx context.Context, repositoryID string, pr *domain.PullRequest, eventAction string)
	OnIssueEvent(ctx context.Context, repositoryID string, iss *domain.Issue, eventAction string)
	OnIssueCommentEvent(ctx context.Context, repositoryID string, ic *domain.IssueComment, eventAction string)
	OnReviewEvent(ctx context.Context, repositoryID string, r *domain.PullRequestReview)
	OnCheckRunEvent(ctx context.Context, repositoryID string, cr *domain.CheckRun, prevConclusion string)
	OnPushEvent(ctx context.Context, repositoryID, branch string, commitCount int, pushedAtMs int64)
}
