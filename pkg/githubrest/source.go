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

package githubrest

import (
	"context"
	"fmt"

	"github.com/google/go-github/v61/github"
)

// GetRepository satisfies workflow.GitHubSource.
func (c *Client) GetRepository(ctx context.Context, token, owner, repo string) (*github.Repository, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, err
	}
	r, _, err := gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return r, nil
}

// ListBranches satisfies workflow.GitHubSource.
func (c *Client) ListBranches(ctx context.Context, token, owner, repo string, opts *github.BranchListOptions) ([]*github.Branch, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	branches, resp, err := gh.Repositories.ListBranches(ctx, owner, repo, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, resp, nil
}

// ListPullRequests satisfies workflow.GitHubSource.
func (c *Client) ListPullRequests(ctx context.Context, token, owner, repo string, opts *github.PullRequestListOptions) ([]*github.PullRequest, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	prs, resp, err := gh.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list pull requests: %w", err)
	}
	return prs, resp, nil
}

// ListIssues satisfies workflow.GitHubSource.
func (c *Client) ListIssues(ctx context.Context, token, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	issues, resp, err := gh.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, resp, nil
}

// ListCommits satisfies workflow.GitHubSource.
func (c *Client) ListCommits(ctx context.Context, token, owner, repo string, opts *github.CommitsListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	commits, resp, err := gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list commits: %w", err)
	}
	return commits, resp, nil
}

// ListCheckRunsForRef satisfies workflow.GitHubSource.
func (c *Client) ListCheckRunsForRef(ctx context.Context, token, owner, repo, ref string) ([]*github.CheckRun, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, err
	}
	var all []*github.CheckRun
	opts := &github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		result, resp, err := gh.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list check runs for %s: %w", ref, err)
		}
		all = append(all, result.CheckRuns...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListWorkflowRuns satisfies workflow.GitHubSource.
func (c *Client) ListWorkflowRuns(ctx context.Context, token, owner, repo string, opts *github.ListWorkflowRunsOptions) ([]*github.WorkflowRun, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	result, resp, err := gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	return result.WorkflowRuns, resp, nil
}

// ListWorkflowJobs satisfies workflow.GitHubSource.
func (c *Client) ListWorkflowJobs(ctx context.Context, token, owner, repo string, runID int64, opts *github.ListWorkflowJobsOptions) ([]*github.WorkflowJob, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	result, resp, err := gh.Actions.ListWorkflowJobs(ctx, owner, repo, runID, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list workflow jobs for run %d: %w", runID, err)
	}
	return result.Jobs, resp, nil
}

// ListPullRequestFiles satisfies workflow.GitHubSource.
func (c *Client) ListPullRequestFiles(ctx context.Context, token, owner, repo string, number int, opts *github.ListOptions) ([]*github.CommitFile, *github.Response, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	files, resp, err := gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to list pull request files: %w", err)
	}
	return files, resp, nil
}

// CreateHook satisfies workflow.GitHubSource.
func (c *Client) CreateHook(ctx context.Context, token, owner, repo string, hook *github.Hook) (*github.Hook, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return nil, err
	}
	created, _, err := gh.Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return created, nil
}
