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

// IssueState mirrors GitHub's open/closed issue state.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)

// Issue is keyed by (repositoryId, number) and doubles as the backing row
// for "issues" that are really pull requests per the GitHub API shape —
// IsPullRequest records which is which so the dispatcher can route
// issue_comment events correctly (§4.3).
type Issue struct {
	Base
	OptimisticFields

	RepositoryID    string `gorm:"index:idx_issue_repo_number,unique"`
	Number          int    `gorm:"index:idx_issue_repo_number,unique"`
	GithubIssueID   int64  `gorm:"uniqueIndex"`
	State           IssueState `gorm:"index:idx_issue_repo_state"`
	Title           string
	AuthorUserID    *int64
	LabelNames      string `gorm:"type:text"` // comma-joined
	AssigneeUserIDs string `gorm:"type:text"` // comma-joined
	IsPullRequest   bool
	GithubUpdatedAt time.Time
}

func (Issue) TableName() string { return "issues" }

// IssueComment is keyed by (repositoryId, issueNumber, githubCommentId).
// The same table backs both issue comments and PR conversation comments,
// since GitHub's issue_comment webhook fires for both (§4.3).
type IssueComment struct {
	Base
	OptimisticFields

	RepositoryID    string `gorm:"index:idx_ic_repo_issue_id,unique"`
	IssueNumber     int    `gorm:"index:idx_ic_repo_issue_id,unique"`
	GithubCommentID int64  `gorm:"index:idx_ic_repo_issue_id,unique"`
	AuthorUserID    int64
	Body            string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (IssueComment) TableName() string { return "issue_comments" }
