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

// CheckRun is keyed by (repositoryId, githubCheckRunId). Only "completed"
// check_run events with a conclusion generate activity entries (§9).
type CheckRun struct {
	Base

	RepositoryID    string `gorm:"index:idx_checkrun_repo_id,unique"`
	GithubCheckRunID int64 `gorm:"index:idx_checkrun_repo_id,unique"`
	HeadSha         string `gorm:"index"`
	Name            string
	Status          string
	Conclusion      string
	GithubUpdatedAt time.Time
}

func (CheckRun) TableName() string { return "check_runs" }

// WorkflowRun is keyed by githubRunId.
type WorkflowRun struct {
	Base

	RepositoryID    string `gorm:"index:idx_wfrun_repo_id,unique"`
	GithubRunID     int64 `gorm:"index:idx_wfrun_repo_id,unique"`
	Name            string
	HeadSha         string
	Status          string
	Conclusion      string
	GithubUpdatedAt time.Time
}

func (WorkflowRun) TableName() string { return "workflow_runs" }

// WorkflowJob is keyed by githubJobId.
type WorkflowJob struct {
	Base

	RepositoryID      string `gorm:"index:idx_wfjob_repo_id,unique"`
	GithubJobID       int64 `gorm:"index:idx_wfjob_repo_id,unique"`
	GithubRunID       int64 `gorm:"index"`
	Name              string
	Status            string
	Conclusion        string
	GithubUpdatedAt   time.Time
}

func (WorkflowJob) TableName() string { return "workflow_jobs" }
