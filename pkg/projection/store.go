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

// Package projection is the Projection & Activity Builder (§4.5): it
// recomputes the repo overview counters and appends activity feed rows
// after every domain write, filtering to the subset of events worth
// surfacing to a user.
package projection

import (
	"context"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Store is the persistence contract the projection builder needs. Counter
// adjustments are indexed updates, not table scans (§4.5, §9).
type Store interface {
	AppendActivity(ctx context.Context, a *domain.ActivityFeed) error

	IncrementOpenPRCount(ctx context.Context, repositoryID string, delta int) error
	IncrementOpenIssueCount(ctx context.Context, repositoryID string, delta int) error
	IncrementFailingCheckCount(ctx context.Context, repositoryID string, delta int) error
	SetLastPushAt(ctx context.Context, repositoryID string, ms int64) error

	GetRepoOverview(ctx context.Context, repositoryID string) (*domain.RepoOverview, error)
	ListActivity(ctx context.Context, repositoryID, cursor string, pageSize int) ([]*domain.ActivityFeed, string, error)
	ListPullRequests(ctx context.Context, repositoryID string, state *domain.PullRequestState, cursor string, pageSize int) ([]*domain.PullRequest, string, error)
	ListIssues(ctx context.Context, repositoryID string, state *domain.IssueState, cursor string, pageSize int) ([]*domain.Issue, string, error)
}
