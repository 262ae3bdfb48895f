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

package domain

import "time"

// PullRequestState mirrors GitHub's open/closed pull request state.
type PullRequestState string

const (
	PullRequestStateOpen   PullRequestState = "open"
	PullRequestStateClosed PullRequestState = "closed"
)

// PullRequest is keyed by (repositoryId, number) — invariant 2 in §3.
// Out-of-order protection (invariant 3) compares GithubUpdatedAt on write.
type PullRequest struct {
	Base
	OptimisticFields

	RepositoryID    string `gorm:"index:idx_pr_repo_number,unique"`
	Number          int    `gorm:"index:idx_pr_repo_number,unique"`
	GithubPrID      int64  `gorm:"uniqueIndex"`
	Title           string
	State           PullRequestState `gorm:"index:idx_pr_repo_state"`
	Draft           bool
	HeadSha         string
	HeadRefName     string
	BaseRefName     string
	MergeableState  string
	AuthorUserID    *int64
	MergedAt        *time.Time
	ClosedAt        *time.Time
	GithubUpdatedAt time.Time
}

func (PullRequest) TableName() string { return "pull_requests" }

// PullRequestReview is keyed by (repositoryId, pullRequestNumber,
// githubReviewId).
type PullRequestReview struct {
	Base
	OptimisticFields

	RepositoryID      string `gorm:"index:idx_review_repo_pr_id,unique"`
	PullRequestNumber int    `gorm:"index:idx_review_repo_pr_id,unique"`
	GithubReviewID    int64  `gorm:"index:idx_review_repo_pr_id,unique"`
	AuthorUserID      int64
	State             string
	Body              string `gorm:"type:text"`
	SubmittedAt       *time.Time
	CommitSha         string
}

func (PullRequestReview) TableName() string { return "pull_request_reviews" }

// PullRequestReviewComment is an inline comment on a PR diff.
type PullRequestReviewComment struct {
	Base

	RepositoryID                  string `gorm:"index:idx_prrc_repo_id,unique"`
	PullRequestNumber             int
	GithubReviewCommentID         int64 `gorm:"index:idx_prrc_repo_id,unique"`
	AuthorUserID                  int64
	Body                          string `gorm:"type:text"`
	Path                          string
	Line                          *int
	Side                          string
	InReplyToGithubReviewCommentID *int64
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
}

func (PullRequestReviewComment) TableName() string { return "pull_request_review_comments" }

// PullRequestFile identity is HeadSha, not a timestamp (§4.3).
type PullRequestFile struct {
	Base

	RepositoryID      string `gorm:"index:idx_prf_repo_pr_name,unique"`
	PullRequestNumber int    `gorm:"index:idx_prf_repo_pr_name,unique"`
	Filename          string `gorm:"index:idx_prf_repo_pr_name,unique"`
	HeadSha           string
	Status            string
	Additions         int
	Deletions         int
	Patch             string `gorm:"type:text"`
}

func (PullRequestFile) TableName() string { return "pull_request_files" }
