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

// Package workflow is the Bootstrap Workflow (§4.4): a durable, multi-step
// orchestration that hydrates a newly connected repository from GitHub's
// REST API. Step completion is journaled on the SyncJob row so a crashed
// attempt resumes without re-running finished steps (§6's "durable workflow
// engine contract").
package workflow

import (
	"context"
	"time"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Store is the persistence contract the workflow runner needs.
type Store interface {
	GetRepositoryByID(ctx context.Context, id string) (*domain.Repository, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (*domain.Repository, error)
	GetOrCreateStubRepository(ctx context.Context, githubRepoID, installationID int64, fullName, ownerLogin, name string) (*domain.Repository, bool, error)
	UpsertRepositoryMetadata(ctx context.Context, repo *domain.Repository) error
	SetRepositoryConnectedBy(ctx context.Context, repositoryID string, userID int64) error

	CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (bool, *domain.SyncJob, error)
	GetSyncJob(ctx context.Context, id string) (*domain.SyncJob, error)
	UpdateSyncJob(ctx context.Context, job *domain.SyncJob) error
	TransitionPendingToRunning(ctx context.Context, jobID string, installationID int64, maxRunning int) (bool, error)
	ListPendingForInstallation(ctx context.Context, installationID int64, limit int) ([]*domain.SyncJob, error)
	ListDistinctPendingInstallationIDs(ctx context.Context) ([]int64, error)
	ListRetryReadySyncJobs(ctx context.Context, now time.Time, limit int) ([]*domain.SyncJob, error)

	UpsertBranch(ctx context.Context, b *domain.Branch) error
	UpsertCommit(ctx context.Context, c *domain.Commit) error
	UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (bool, error)
	UpsertPullRequestFile(ctx context.Context, f *domain.PullRequestFile) error
	UpsertIssue(ctx context.Context, iss *domain.Issue) (bool, error)
	UpsertCheckRun(ctx context.Context, cr *domain.CheckRun) (string, error)
	UpsertWorkflowRun(ctx context.Context, wr *domain.WorkflowRun) error
	UpsertWorkflowJob(ctx context.Context, wj *domain.WorkflowJob) error

	ListOpenPullRequests(ctx context.Context, repositoryID string) ([]*domain.PullRequest, error)

	WriteBootstrapDeadLetter(ctx context.Context, lockKey, reason, payloadJSON string) error
}

// TokenResolver resolves a GitHub API token for a repository, preferring
// the connecting user's stored OAuth token and falling back to an
// installation token (§4.4 "token resolution"). The resolved token is
// never persisted in the SyncJob journal.
type TokenResolver interface {
	ResolveToken(ctx context.Context, repo *domain.Repository) (string, error)
}
