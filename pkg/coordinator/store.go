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

// Package coordinator is the Optimistic Write Coordinator (§4.6): a small
// set of mutating operations the UI calls, each stamping optimistic state
// onto the affected row before issuing the matching GitHub API call. A
// reused correlationId is rejected with DuplicateOperationError rather
// than re-issuing the call, and a GitHub rejection is surfaced on the row
// rather than rolled back.
package coordinator

import (
	"context"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Store is the persistence contract the coordinator needs.
type Store interface {
	GetRepositoryByID(ctx context.Context, id string) (*domain.Repository, error)
	GetIssue(ctx context.Context, repositoryID string, number int) (*domain.Issue, error)
	GetPullRequest(ctx context.Context, repositoryID string, number int) (*domain.PullRequest, error)

	CorrelationExists(ctx context.Context, correlationID string) (bool, error)

	InsertOptimisticIssue(ctx context.Context, iss *domain.Issue) error
	SetIssueGithubNumber(ctx context.Context, correlationID string, githubIssueID int64, number int) error
	InsertOptimisticIssueComment(ctx context.Context, c *domain.IssueComment) error
	InsertOptimisticPullRequestReview(ctx context.Context, r *domain.PullRequestReview) error
	SetIssueOptimisticOp(ctx context.Context, repositoryID string, number int, correlationID, opType, payloadJSON string) error
	SetPullRequestOptimisticOp(ctx context.Context, repositoryID string, number int, correlationID, opType, payloadJSON string) error

	AcceptOptimistic(ctx context.Context, correlationID string) error
	FailOptimistic(ctx context.Context, correlationID, errMessage string, errStatus int) error

	UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (bool, error)
}

// TokenResolver resolves a GitHub API token for a repository.
type TokenResolver interface {
	ResolveToken(ctx context.Context, repo *domain.Repository) (string, error)
}
