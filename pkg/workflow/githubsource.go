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

package workflow

import (
	"context"

	"github.com/google/go-github/v61/github"
)

// GitHubSource is the subset of the GitHub REST client contract (§6) the
// bootstrap step graph depends on. A token is supplied per call since
// §4.4 resolves it per repository rather than binding one client for the
// lifetime of the workflow.
type GitHubSource interface {
	GetRepository(ctx context.Context, token, owner, repo string) (*github.Repository, error)
	ListBranches(ctx context.Context, token, owner, repo string, opts *github.BranchListOptions) ([]*github.Branch, *github.Response, error)
	ListPullRequests(ctx context.Context, token, owner, repo string, opts *github.PullRequestListOptions) ([]*github.PullRequest, *github.Response, error)
	ListIssues(ctx context.Context, token, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
	ListCommits(ctx context.Context, token, owner, repo string, opts *github.CommitsListOptions) ([]*github.RepositoryCommit, *github.Response, error)
	ListCheckRunsForRef(ctx context.Context, token, owner, repo, ref string) ([]*github.CheckRun, error)
	ListWorkflowRuns(ctx context.Context, token, owner, repo string, opts *github.ListWorkflowRunsOptions) ([]*github.WorkflowRun, *github.Response, error)
	ListWorkflowJobs(ctx context.Context, token, owner, repo string, runID int64, opts *github.ListWorkflowJobsOptions) ([]*github.WorkflowJob, *github.Response, error)
	ListPullRequestFiles(ctx context.Context, token, owner, repo string, number int, opts *github.ListOptions) ([]*github.CommitFile, *github.Response, error)
	CreateHook(ctx context.Context, token, owner, repo string, hook *github.Hook) (*github.Hook, error)
}
