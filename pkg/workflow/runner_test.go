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
	"errors"
	"testing"
	"time"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// fakeStore is a minimal in-memory Store. Only the methods exercised by
// failJob, Drain and RunRetrySweep are given real behavior; everything
// else is unused by these tests because ListPendingForInstallation
// returns no work, so RunJob is never reached.
type fakeStore struct {
	updated     []*domain.SyncJob
	deadLetters []string
	retryReady  []*domain.SyncJob
}

func (f *fakeStore) GetRepositoryByID(ctx context.Context, id string) (*domain.Repository, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeStore) GetRepositoryByFullName(ctx context.Context, fullName string) (*domain.Repository, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeStore) GetOrCreateStubRepository(ctx context.Context, githubRepoID, installationID int64, fullName, ownerLogin, name string) (*domain.Repository, bool, error) {
	return nil, false, errors.New("not implemented")
}
func (f *fakeStore) UpsertRepositoryMetadata(ctx context.Context, repo *domain.Repository) error {
	return errors.New("not implemented")
}
func (f *fakeStore) SetRepositoryConnectedBy(ctx context.Context, repositoryID string, userID int64) error {
	return errors.New("not implemented")
}
func (f *fakeStore) CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (bool, *domain.SyncJob, error) {
	return false, nil, errors.New("not implemented")
}
func (f *fakeStore) GetSyncJob(ctx context.Context, id string) (*domain.SyncJob, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) UpdateSyncJob(ctx context.Context, job *domain.SyncJob) error {
	cp := *job
	f.updated = append(f.updated, &cp)
	return nil
}

func (f *fakeStore) TransitionPendingToRunning(ctx context.Context, jobID string, installationID int64, maxRunning int) (bool, error) {
	return true, nil
}
func (f *fakeStore) ListPendingForInstallation(ctx context.Context, installationID int64, limit int) ([]*domain.SyncJob, error) {
	return nil, nil
}
func (f *fakeStore) ListDistinctPendingInstallationIDs(ctx context.Context) ([]int64, error) {
	return nil, nil
}
func (f *fakeStore) ListRetryReadySyncJobs(ctx context.Context, now time.Time, limit int) ([]*domain.SyncJob, error) {
	return f.retryReady, nil
}

func (f *fakeStore) UpsertBranch(ctx context.Context, b *domain.Branch) error { return nil }
func (f *fakeStore) UpsertCommit(ctx context.Context, c *domain.Commit) error { return nil }
func (f *fakeStore) UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (bool, error) {
	return false, nil
}
func (f *fakeStore) UpsertPullRequestFile(ctx context.Context, file *domain.PullRequestFile) error {
	return nil
}
func (f *fakeStore) UpsertIssue(ctx context.Context, iss *domain.Issue) (bool, error) {
	return false, nil
}
func (f *fakeStore) UpsertCheckRun(ctx context.Context, cr *domain.CheckRun) (string, error) {
	return "", nil
}
func (f *fakeStore) UpsertWorkflowRun(ctx context.Context, wr *domain.WorkflowRun) error { return nil }
func (f *fakeStore) UpsertWorkflowJob(ctx context.Context, wj *domain.WorkflowJob) error { return nil }

func (f *fakeStore) ListOpenPullRequests(ctx context.Context, repositoryID string) ([]*domain.PullRequest, error) {
	return nil, nil
}

func (f *fakeStore) WriteBootstrapDeadLetter(ctx context.Context, lockKey, reason, payloadJSON string) error {
	f.deadLetters = append(f.deadLetters, lockKey)
	return nil
}

func newTestRunner(store *fakeStore, cfg *Config) *Runner {
	r := New(store, nil, nil, cfg, "", "")
	r.now = func() time.Time { return time.Unix(1000, 0) }
	return r
}

func testConfig() *Config {
	return &Config{
		MaxPerInstallation:   25,
		ChunkPageSize:        10,
		CheckRunShaChunkSize: 100,
		CommitHistoryLimit:   250,
		StepBackoffBaseMs:    1000,
		StepBackoffMaxMs:     60000,
		StepMaxRetries:       3,
	}
}

func TestFailJob_RetriesWhileAttemptsRemain(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := newTestRunner(store, testConfig())
	job := &domain.SyncJob{LockKey: "repo-bootstrap:1:abc", AttemptCount: 0}

	err := r.failJob(context.Background(), job, errors.New("transient"))
	if err == nil {
		t.Fatal("failJob() error = nil, want the cause returned")
	}
	if job.State != domain.SyncJobStateRetry {
		t.Errorf("State = %q, want retry", job.State)
	}
	if job.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", job.AttemptCount)
	}
	if job.NextRunAt == nil || !job.NextRunAt.After(time.Unix(1000, 0)) {
		t.Error("NextRunAt not set to a future time")
	}
	if len(store.deadLetters) != 0 {
		t.Errorf("deadLetters = %v, want none", store.deadLetters)
	}
}

func TestFailJob_FailsAfterExhaustingAttempts(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	store := &fakeStore{}
	r := newTestRunner(store, cfg)
	job := &domain.SyncJob{LockKey: "repo-bootstrap:1:abc", AttemptCount: cfg.StepMaxRetries - 1}

	err := r.failJob(context.Background(), job, errors.New("persistent"))
	if err == nil {
		t.Fatal("failJob() error = nil, want the cause returned")
	}
	if job.State != domain.SyncJobStateFailed {
		t.Errorf("State = %q, want failed", job.State)
	}
	if len(store.deadLetters) != 1 || store.deadLetters[0] != job.LockKey {
		t.Errorf("deadLetters = %v, want [%s]", store.deadLetters, job.LockKey)
	}
}

func TestRunRetrySweep_RequeuesReadyJobs(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		retryReady: []*domain.SyncJob{
			{LockKey: "repo-bootstrap:1:a", State: domain.SyncJobStateRetry},
			{LockKey: "repo-bootstrap:1:b", State: domain.SyncJobStateRetry},
		},
	}
	r := newTestRunner(store, testConfig())

	if err := r.RunRetrySweep(context.Background()); err != nil {
		t.Fatalf("RunRetrySweep() error = %v", err)
	}
	if len(store.updated) != 2 {
		t.Fatalf("got %d updated jobs, want 2", len(store.updated))
	}
	for _, job := range store.updated {
		if job.State != domain.SyncJobStatePending {
			t.Errorf("job %s State = %q, want pending", job.LockKey, job.State)
		}
	}
}

func TestNextBackoff_Monotonic(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	prev := time.Duration(0)
	for attempt := 1; attempt <= 3; attempt++ {
		d, err := nextBackoff(attempt, cfg)
		if err != nil {
			t.Fatalf("nextBackoff(%d) error = %v", attempt, err)
		}
		if d < prev {
			t.Errorf("nextBackoff(%d) = %v, want >= previous %v", attempt, d, prev)
		}
		if d > time.Duration(cfg.StepBackoffMaxMs)*time.Millisecond {
			t.Errorf("nextBackoff(%d) = %v, want <= cap %dms", attempt, d, cfg.StepBackoffMaxMs)
		}
		prev = d
	}
}
