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

package coordinator

import "context"

// GitHubWriter is the subset of GitHub's mutating REST endpoints the
// coordinator's operations call (§6: "write endpoints mirroring the
// operations in §4.6").
type GitHubWriter interface {
	CreateIssue(ctx context.Context, token, owner, repo, title string) (githubIssueID int64, number int, err error)
	CreateIssueComment(ctx context.Context, token, owner, repo string, number int, body string) (githubCommentID int64, err error)
	UpdateIssueState(ctx context.Context, token, owner, repo string, number int, state string) error
	MergePullRequest(ctx context.Context, token, owner, repo string, number int, method string) error
	UpdatePullRequestBranch(ctx context.Context, token, owner, repo string, number int, expectedHeadSha string) error
	CreatePullRequestReview(ctx context.Context, token, owner, repo string, number int, event, body string) (githubReviewID int64, err error)
	UpdateIssueLabels(ctx context.Context, token, owner, repo string, number int, labels []string) error
	UpdateIssueAssignees(ctx context.Context, token, owner, repo string, number int, logins []string) error
}
