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
	"fmt"
	"time"

	"github.com/google/go-github/v61/github"
	"github.com/sethvargo/go-retry"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Runner drives the Bootstrap Workflow (§4.4) over a Store and
// GitHubSource. It plays the role of the "durable workflow engine" client
// described in §6: step completion is journaled onto the SyncJob row so a
// crashed attempt resumes at the first incomplete step.
type Runner struct {
	store  Store
	github GitHubSource
	tokens TokenResolver
	cfg    *Config

	webhookURL    string
	webhookSecret string

	now func() time.Time
}

// New builds a Runner. webhookURL/webhookSecret parameterize the hook
// registered at connect-time (§6: "POST /repos/{owner}/{repo}/hooks").
func New(store Store, gh GitHubSource, tokens TokenResolver, cfg *Config, webhookURL, webhookSecret string) *Runner {
	return &Runner{
		store:         store,
		github:        gh,
		tokens:        tokens,
		cfg:           cfg,
		webhookURL:    webhookURL,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// ConnectRepo is the connect-flow entrypoint (§4.4, §8 scenario 4): it
// resolves the repository, registers a webhook, and enqueues (or returns
// the existing) backfill SyncJob, deduplicated by lockKey.
func (r *Runner) ConnectRepo(ctx context.Context, owner, name string, installationID int64, connectedByUserID *int64) (*domain.SyncJob, error) {
	probe := &domain.Repository{OwnerLogin: owner, Name: name, InstallationID: installationID}
	token, err := r.tokens.ResolveToken(ctx, probe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token for %s/%s: %w", owner, name, err)
	}

	ghRepo, err := r.github.GetRepository(ctx, token, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repository %s/%s: %w", owner, name, err)
	}

	repo, _, err := r.store.GetOrCreateStubRepository(ctx, ghRepo.GetID(), installationID, ghRepo.GetFullName(), owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository row: %w", err)
	}

	if connectedByUserID != nil {
		if err := r.store.SetRepositoryConnectedBy(ctx, repo.ID.String(), *connectedByUserID); err != nil {
			return nil, fmt.Errorf("failed to set connecting user: %w", err)
		}
	}

	if _, err := r.github.CreateHook(ctx, token, owner, name, &github.Hook{
		Name:   github.String("web"),
		Active: github.Bool(true),
		Events: []string{"pull_request", "pull_request_review", "pull_request_review_comment",
			"issues", "issue_comment", "push", "create", "delete", "check_run", "workflow_run", "workflow_job"},
		Config: map[string]any{
			"url":          r.webhookURL,
			"content_type": "json",
			"secret":       r.webhookSecret,
		},
	}); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "failed to register webhook, repository is connected without live updates",
			"repository", ghRepo.GetFullName(), "error", err)
	}

	priority := 0
	if ghRepo.StargazersCount != nil {
		priority = -ghRepo.GetStargazersCount()
	}

	repositoryID := repo.ID.String()
	job := &domain.SyncJob{
		JobType:         domain.SyncJobTypeBackfill,
		ScopeType:       "repository",
		TriggerReason:   "connect",
		LockKey:         fmt.Sprintf("repo-bootstrap:%d:%s", installationID, repositoryID),
		InstallationID:  &installationID,
		RepositoryID:    &repositoryID,
		State:           domain.SyncJobStatePending,
		PrioritySortKey: priority,
	}

	created, existing, err := r.store.CreateSyncJobIfAbsent(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue bootstrap job: %w", err)
	}
	if !created {
		return existing, nil
	}

	if err := r.Drain(ctx, installationID); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "drain after connect failed", "installation_id", installationID, "error", err)
	}
	return job, nil
}

// Drain starts up to MaxPerInstallation oldest pending jobs for
// installationID, ordered by prioritySortKey then createdAt (§4.4's drain
// routine). The MAX_PER_INSTALLATION cap is enforced per-claim by
// TransitionPendingToRunning rather than by a count read here, so two
// concurrent drains (or a drain racing a job's own completion) can never
// push the running count above the cap (§5, Testable Property 5).
func (r *Runner) Drain(ctx context.Context, installationID int64) error {
	jobs, err := r.store.ListPendingForInstallation(ctx, installationID, r.cfg.MaxPerInstallation)
	if err != nil {
		return fmt.Errorf("failed to list pending sync jobs: %w", err)
	}

	logger := logging.FromContext(ctx)
	for _, job := range jobs {
		claimed, err := r.store.TransitionPendingToRunning(ctx, job.ID.String(), installationID, r.cfg.MaxPerInstallation)
		if err != nil {
			logger.WarnContext(ctx, "failed to claim sync job", "sync_job_id", job.ID.String(), "error", err)
			continue
		}
		if !claimed {
			continue
		}
		job.State = domain.SyncJobStateRunning
		if err := r.RunJob(ctx, job); err != nil {
			logger.WarnContext(ctx, "sync job run failed", "sync_job_id", job.ID.String(), "error", err)
		}
	}
	return nil
}

// RunJob executes job's remaining steps in declared order (§5: "within one
// bootstrap workflow, steps execute strictly in declared order"), skipping
// any step already present in job.CompletedSteps.
func (r *Runner) RunJob(ctx context.Context, job *domain.SyncJob) error {
	if job.ScopeType == scopeTypePullRequestFiles {
		return r.runFileDiffJob(ctx, job)
	}

	var repo *domain.Repository
	if job.RepositoryID != nil {
		var err error
		repo, err = r.repositoryForJob(ctx, job)
		if err != nil {
			return r.failJob(ctx, job, err)
		}
	}

	var token string
	if repo != nil {
		t, err := r.tokens.ResolveToken(ctx, repo)
		if err != nil {
			return r.failJob(ctx, job, err)
		}
		token = t
	}

	for _, step := range domain.StepOrder {
		if job.HasCompletedStep(step) {
			continue
		}

		if err := r.runStepWithRetry(ctx, job, repo, token, step); err != nil {
			return r.failJob(ctx, job, fmt.Errorf("step %s exhausted retries: %w", step, err))
		}

		job.CurrentStep = step
		job.MarkStepCompleted(step)
		if err := r.store.UpdateSyncJob(ctx, job); err != nil {
			return fmt.Errorf("failed to persist step journal: %w", err)
		}
	}

	job.State = domain.SyncJobStateDone
	if err := r.store.UpdateSyncJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark sync job done: %w", err)
	}

	if job.InstallationID != nil {
		if err := r.Drain(ctx, *job.InstallationID); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "post-completion drain failed", "installation_id", *job.InstallationID, "error", err)
		}
	}
	return nil
}

func (r *Runner) repositoryForJob(ctx context.Context, job *domain.SyncJob) (*domain.Repository, error) {
	repo, err := r.store.GetRepositoryByID(ctx, *job.RepositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository for sync job: %w", err)
	}
	return repo, nil
}

// runStepWithRetry retries a single step with exponential backoff up to
// cfg.StepMaxRetries, the step-level retry required by §4.4 ("on step
// failure the workflow retries with exponential backoff").
func (r *Runner) runStepWithRetry(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string, step domain.StepName) error {
	b, err := retry.NewExponential(time.Duration(r.cfg.StepBackoffBaseMs) * time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to build step backoff: %w", err)
	}
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(time.Duration(r.cfg.StepBackoffMaxMs)*time.Millisecond, b)
	b = retry.WithMaxRetries(uint64(r.cfg.StepMaxRetries), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := r.runStep(ctx, job, repo, token, step); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (r *Runner) runStep(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string, step domain.StepName) error {
	switch step {
	case domain.StepMarkRunning:
		job.LastError = ""
		return nil
	case domain.StepFetchBranches:
		return r.stepFetchBranches(ctx, job, repo, token)
	case domain.StepFetchPullRequests:
		return r.stepFetchPullRequests(ctx, job, repo, token)
	case domain.StepFetchIssues:
		return r.stepFetchIssues(ctx, job, repo, token)
	case domain.StepFetchCommits:
		return r.stepFetchCommits(ctx, job, repo, token)
	case domain.StepAnalyzeCheckRuns:
		return r.stepAnalyzeCheckRuns(ctx, job, repo, token)
	case domain.StepFetchWorkflowRuns:
		return r.stepFetchWorkflowRuns(ctx, job, repo, token)
	case domain.StepScheduleFileDiffs:
		return r.stepScheduleFileDiffs(ctx, job, repo)
	case domain.StepMarkDone:
		return nil
	default:
		return fmt.Errorf("unknown bootstrap step %q", step)
	}
}

// failJob records the outcome of a step that exhausted its inline
// retries: the job moves to retry (with a backoff-scheduled nextRunAt) if
// attempts remain, or to failed with a workflow-scoped DeadLetter once the
// job-level attempt budget is exhausted (§4.4: "after exhaustion ... marks
// the SyncJob failed ... and records DeadLetters").
func (r *Runner) failJob(ctx context.Context, job *domain.SyncJob, cause error) error {
	job.AttemptCount++
	job.LastError = cause.Error()

	if job.AttemptCount >= r.cfg.StepMaxRetries {
		job.State = domain.SyncJobStateFailed
		if err := r.store.UpdateSyncJob(ctx, job); err != nil {
			return fmt.Errorf("failed to mark sync job failed: %w", err)
		}
		if err := r.store.WriteBootstrapDeadLetter(ctx, job.LockKey, cause.Error(), ""); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "failed to write bootstrap dead letter", "lock_key", job.LockKey, "error", err)
		}
	} else {
		delay, err := nextBackoff(job.AttemptCount, r.cfg)
		if err != nil {
			return fmt.Errorf("failed to compute step backoff: %w", err)
		}
		nextRunAt := r.now().Add(delay)
		job.State = domain.SyncJobStateRetry
		job.NextRunAt = &nextRunAt
		if err := r.store.UpdateSyncJob(ctx, job); err != nil {
			return fmt.Errorf("failed to mark sync job for retry: %w", err)
		}
	}

	if job.InstallationID != nil {
		if err := r.Drain(ctx, *job.InstallationID); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "drain after job failure failed", "installation_id", *job.InstallationID, "error", err)
		}
	}
	return cause
}

// nextBackoff computes the delay before the given job-level attempt
// number, mirroring the raw event retry controller's backoff shape.
func nextBackoff(attempt int, cfg *Config) (time.Duration, error) {
	b, err := retry.NewExponential(time.Duration(cfg.StepBackoffBaseMs) * time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("failed to build backoff: %w", err)
	}
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(time.Duration(cfg.StepBackoffMaxMs)*time.Millisecond, b)

	var d time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			return time.Duration(cfg.StepBackoffMaxMs) * time.Millisecond, nil
		}
		d = next
	}
	return d, nil
}

// DrainAll runs Drain for every installation with at least one pending
// sync job, the periodic sweep a long-lived worker uses instead of
// draining only at connect-time and job-completion.
func (r *Runner) DrainAll(ctx context.Context) error {
	ids, err := r.store.ListDistinctPendingInstallationIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list installations with pending work: %w", err)
	}
	logger := logging.FromContext(ctx)
	for _, id := range ids {
		if err := r.Drain(ctx, id); err != nil {
			logger.WarnContext(ctx, "drain failed", "installation_id", id, "error", err)
		}
	}
	return nil
}

// RunRetrySweep moves jobs whose step-level backoff has elapsed back to
// pending so the next drain picks them up (§4.4: "step failure retries
// with exponential backoff").
func (r *Runner) RunRetrySweep(ctx context.Context) error {
	jobs, err := r.store.ListRetryReadySyncJobs(ctx, r.now(), r.cfg.MaxPerInstallation)
	if err != nil {
		return fmt.Errorf("failed to list retry-ready sync jobs: %w", err)
	}
	logger := logging.FromContext(ctx)
	for _, job := range jobs {
		job.State = domain.SyncJobStatePending
		if err := r.store.UpdateSyncJob(ctx, job); err != nil {
			logger.WarnContext(ctx, "failed to requeue retry-ready sync job", "sync_job_id", job.ID.String(), "error", err)
			continue
		}
	}
	return r.DrainAll(ctx)
}

const scopeTypePullRequestFiles = "pull_request_files"
