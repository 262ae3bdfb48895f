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

// CreateIssue satisfies coordinator.GitHubWriter.
func (c *Client) CreateIssue(ctx context.Context, token, owner, repo, title string) (int64, int, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return 0, 0, err
	}
	iss, _, err := gh.Issues.Create(ctx, owner, repo, &github.IssueRequest{Title: &title})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create issue: %w", err)
	}
	return iss.GetID(), iss.GetNumber(), nil
}

// CreateIssueComment satisfies coordinator.GitHubWriter.
func (c *Client) CreateIssueComment(ctx context.Context, token, owner, repo string, number int, body string) (int64, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return 0, err
	}
	comment, _, err := gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		return 0, fmt.Errorf("failed to create issue comment: %w", err)
	}
	return comment.GetID(), nil
}

// UpdateIssueState satisfies coordinator.GitHubWriter.
func (c *Client) UpdateIssueState(ctx context.Context, token, owner, repo string, number int, state string) error {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return err
	}
	if _, _, err := gh.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{State: &state}); err != nil {
		return fmt.Errorf("failed to update issue state: %w", err)
	}
	return nil
}

// MergePullRequest satisfies coordinator.GitHubWriter.
func (c *Client) MergePullRequest(ctx context.Context, token, owner, repo string, number int, method string) error {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return err
	}
	if _, _, err := gh.PullRequests.Merge(ctx, owner, repo, number, "", &github.PullRequestOptions{MergeMethod: method}); err != nil {
		return fmt.Errorf("failed to merge pull request: %w", err)
	}
	return nil
}

// UpdatePullRequestBranch satisfies coordinator.GitHubWriter.
func (c *Client) UpdatePullRequestBranch(ctx context.Context, token, owner, repo string, number int, expectedHeadSha string) error {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return err
	}
	opts := &github.PullRequestBranchUpdateOptions{}
	if expectedHeadSha != "" {
		opts.ExpectedHeadSHA = &expectedHeadSha
	}
	if _, _, err := gh.PullRequests.UpdateBranch(ctx, owner, repo, number, opts); err != nil {
		return fmt.Errorf("failed to update pull request branch: %w", err)
	}
	return nil
}

// CreatePullRequestReview satisfies coordinator.GitHubWriter.
func (c *Client) CreatePullRequestReview(ctx context.Context, token, owner, repo string, number int, event, body string) (int64, error) {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return 0, err
	}
	review, _, err := gh.PullRequests.CreateReview(ctx, owner, repo, number, &github.PullRequestReviewRequest{
		Event: &event,
		Body:  &body,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create pull request review: %w", err)
	}
	return review.GetID(), nil
}

// UpdateIssueLabels satisfies coordinator.GitHubWriter. labels is the full
// resulting label set; the coordinator computes it before calling in, so
// this replaces rather than merges.
func (c *Client) UpdateIssueLabels(ctx context.Context, token, owner, repo string, number int, labels []string) error {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return err
	}
	if _, _, err := gh.Issues.ReplaceLabelsForIssue(ctx, owner, repo, number, labels); err != nil {
		return fmt.Errorf("failed to update issue labels: %w", err)
	}
	return nil
}

// UpdateIssueAssignees satisfies coordinator.GitHubWriter. logins is the full
// resulting assignee set; GitHub has no replace-assignees endpoint, so this
// fetches the issue first and adds/removes the difference.
func (c *Client) UpdateIssueAssignees(ctx context.Context, token, owner, repo string, number int, logins []string) error {
	gh, err := c.restClient(ctx, token)
	if err != nil {
		return err
	}
	iss, _, err := gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("failed to get issue for assignee diff: %w", err)
	}
	want := make(map[string]bool, len(logins))
	for _, l := range logins {
		want[l] = true
	}
	var current []string
	for _, a := range iss.Assignees {
		current = append(current, a.GetLogin())
		delete(want, a.GetLogin())
	}
	var toAdd, toRemove []string
	for l := range want {
		toAdd = append(toAdd, l)
	}
	wantSet := make(map[string]bool, len(logins))
	for _, l := range logins {
		wantSet[l] = true
	}
	for _, l := range current {
		if !wantSet[l] {
			toRemove = append(toRemove, l)
		}
	}
	if len(toAdd) > 0 {
		if _, _, err := gh.Issues.AddAssignees(ctx, owner, repo, number, toAdd); err != nil {
			return fmt.Errorf("failed to add issue assignees: %w", err)
		}
	}
	if len(toRemove) > 0 {
		if _, _, err := gh.Issues.RemoveAssignees(ctx, owner, repo, number, toRemove); err != nil {
			return fmt.Errorf("failed to remove issue assignees: %w", err)
		}
	}
	return nil
}
