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

// SyncJobType enumerates the kinds of work the Bootstrap Workflow performs.
type SyncJobType string

const (
	SyncJobTypeBackfill  SyncJobType = "backfill"
	SyncJobTypeReconcile SyncJobType = "reconcile"
	SyncJobTypeReplay    SyncJobType = "replay"
)

// SyncJobState is the lifecycle driven by the workflow step runner.
type SyncJobState string

const (
	SyncJobStatePending SyncJobState = "pending"
	SyncJobStateRunning SyncJobState = "running"
	SyncJobStateRetry   SyncJobState = "retry"
	SyncJobStateDone    SyncJobState = "done"
	SyncJobStateFailed  SyncJobState = "failed"
)

// StepName identifies one durable step in the bootstrap step graph (§4.4).
type StepName string

const (
	StepMarkRunning        StepName = "mark_running"
	StepFetchBranches      StepName = "fetch_branches"
	StepFetchPullRequests  StepName = "fetch_pull_requests"
	StepFetchIssues        StepName = "fetch_issues"
	StepFetchCommits       StepName = "fetch_commits"
	StepAnalyzeCheckRuns   StepName = "analyze_check_runs"
	StepFetchWorkflowRuns  StepName = "fetch_workflow_runs"
	StepScheduleFileDiffs  StepName = "schedule_file_diffs"
	StepMarkDone           StepName = "mark_done"
)

// StepOrder is the strict execution order required by §5 ("within one
// bootstrap workflow, steps execute strictly in declared order").
var StepOrder = []StepName{
	StepMarkRunning,
	StepFetchBranches,
	StepFetchPullRequests,
	StepFetchIssues,
	StepFetchCommits,
	StepAnalyzeCheckRuns,
	StepFetchWorkflowRuns,
	StepScheduleFileDiffs,
	StepMarkDone,
}

// SyncJob is a unit of bootstrap/reconcile work (§3, §4.4).
type SyncJob struct {
	Base

	JobType        SyncJobType
	ScopeType      string
	TriggerReason  string
	LockKey        string `gorm:"uniqueIndex"`
	InstallationID *int64 `gorm:"index"`

	// RepositoryID is the owning repository's system id, nil for
	// installation-scoped jobs.
	RepositoryID *string `gorm:"index"`

	State           SyncJobState `gorm:"index"`
	AttemptCount    int
	NextRunAt       *time.Time `gorm:"index"`
	LastError       string
	CurrentStep     StepName
	CompletedSteps  string `gorm:"type:text"` // comma-joined StepName values; the crash-safe journal (§6)
	ItemsFetched    int
	PrioritySortKey int
}

func (SyncJob) TableName() string { return "sync_jobs" }

// HasCompletedStep reports whether step was already executed by a prior,
// possibly crashed, attempt at this job — the resumption check described in
// §6's durable workflow engine contract.
func (j *SyncJob) HasCompletedStep(step StepName) bool {
	for _, s := range splitSteps(j.CompletedSteps) {
		if s == step {
			return true
		}
	}
	return false
}

// MarkStepCompleted appends step to the journal if it isn't already there.
func (j *SyncJob) MarkStepCompleted(step StepName) {
	if j.HasCompletedStep(step) {
		return
	}
	if j.CompletedSteps == "" {
		j.CompletedSteps = string(step)
		return
	}
	j.CompletedSteps += "," + string(step)
}

func splitSteps(s string) []StepName {
	if s == "" {
		return nil
	}
	var out []StepName
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, StepName(s[start:i]))
			start = i + 1
		}
	}
	return out
}
