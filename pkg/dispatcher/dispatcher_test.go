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

package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

type fakeStore struct {
	repos        map[int64]*domain.Repository
	prs          map[string]*domain.PullRequest
	issues       map[string]*domain.Issue
	syncJobs     map[string]*domain.SyncJob
	confirmed    []string
	createdRepos int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repos:    map[int64]*domain.Repository{},
		prs:      map[string]*domain.PullRequest{},
		issues:   map[string]*domain.Issue{},
		syncJobs: map[string]*domain.SyncJob{},
	}
}

func (f *fakeStore) GetRepositoryByGithubID(ctx context.Context, githubRepoID int64) (*domain.Repository, error) {
	if r, ok := f.repos[githubRepoID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("not found")
}

func (f *fakeStore) GetOrCreateStubRepository(ctx context.Context, githubRepoID, installationID int64, fullName, ownerLogin, name string) (*domain.Repository, bool, error) {
	if r, ok := f.repos[githubRepoID]; ok {
		return r, false, nil
	}
	r := &domain.Repository{
		Base:           domain.Base{ID: uuid.New()},
		GithubRepoID:   githubRepoID,
		InstallationID: installationID,
		FullName:       fullName,
		OwnerLogin:     ownerLogin,
		Name:           name,
		Stub:           true,
	}
	f.repos[githubRepoID] = r
	f.createdRepos++
	return r, true, nil
}

func (f *fakeStore) UpsertRepositoryMetadata(ctx context.Context, repo *domain.Repository) error {
	return nil
}

func (f *fakeStore) UpsertUser(ctx context.Context, githubUserID int64, login, avatarURL string, typ domain.UserType) (*domain.User, error) {
	return &domain.User{GithubUserID: githubUserID, Login: login}, nil
}

func (f *fakeStore) UpsertInstallation(ctx context.Context, in *domain.Installation) (*domain.Installation, error) {
	return in, nil
}

func (f *fakeStore) UpsertBranch(ctx context.Context, b *domain.Branch) error { return nil }
func (f *fakeStore) DeleteBranch(ctx context.Context, repositoryID, name string) error { return nil }
func (f *fakeStore) UpsertCommit(ctx context.Context, c *domain.Commit) error { return nil }

func (f *fakeStore) UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (bool, error) {
	key := fmt.Sprintf("%s/%d", pr.RepositoryID, pr.Number)
	if existing, ok := f.prs[key]; ok {
		pr.OptimisticFields = existing.OptimisticFields
		if !pr.GithubUpdatedAt.After(existing.GithubUpdatedAt) {
			return false, nil
		}
	}
	f.prs[key] = pr
	return true, nil
}

func (f *fakeStore) GetPullRequest(ctx context.Context, repositoryID string, number int) (*domain.PullRequest, error) {
	key := fmt.Sprintf("%s/%d", repositoryID, number)
	if pr, ok := f.prs[key]; ok {
		return pr, nil
	}
	return nil, fmt.Errorf("not found")
}

func (f *fakeStore) UpsertPullRequestReview(ctx context.Context, r *domain.PullRequestReview) (bool, error) {
	return true, nil
}

func (f *fakeStore) UpsertPullRequestReviewComment(ctx context.Context, c *domain.PullRequestReviewComment) error {
	return nil
}

func (f *fakeStore) DeletePullRequestReviewComment(ctx context.Context, repositoryID string, githubReviewCommentID int64) error {
	return nil
}

func (f *fakeStore) UpsertIssue(ctx context.Context, iss *domain.Issue) (bool, error) {
	key := fmt.Sprintf("%s/%d", iss.RepositoryID, iss.Number)
	if existing, ok := f.issues[key]; ok {
		iss.OptimisticFields = existing.OptimisticFields
		if !iss.GithubUpdatedAt.After(existing.GithubUpdatedAt) {
			return false, nil
		}
	}
	f.issues[key] = iss
	return true, nil
}

func (f *fakeStore) GetIssue(ctx context.Context, repositoryID string, number int) (*domain.Issue, error) {
	key := fmt.Sprintf("%s/%d", repositoryID, number)
	if iss, ok := f.issues[key]; ok {
		return iss, nil
	}
	return nil, fmt.Errorf("not found")
}

func (f *fakeStore) UpsertIssueComment(ctx context.Context, c *domain.IssueComment) (bool, error) {
	return true, nil
}

func (f *fakeStore) GetIssueCommentByCorrelationID(ctx context.Context, correlationID string) (*domain.IssueComment, error) {
	return nil, fmt.Errorf("not found")
}

func (f *fakeStore) DeleteIssueComment(ctx context.Context, repositoryID string, issueNumber int, githubCommentID int64) error {
	return nil
}

func (f *fakeStore) UpsertCheckRun(ctx context.Context, cr *domain.CheckRun) (string, error) {
	return "", nil
}

func (f *fakeStore) UpsertWorkflowRun(ctx context.Context, wr *domain.WorkflowRun) error { return nil }
func (f *fakeStore) UpsertWorkflowJob(ctx context.Context, wj *domain.WorkflowJob) error { return nil }

func (f *fakeStore) CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (bool, *domain.SyncJob, error) {
	if existing, ok := f.syncJobs[job.LockKey]; ok {
		return false, existing, nil
	}
	f.syncJobs[job.LockKey] = job
	return true, job, nil
}

func (f *fakeStore) ConfirmOptimistic(ctx context.Context, correlationID string) error {
	f.confirmed = append(f.confirmed, correlationID)
	return nil
}

type fakeProjection struct {
	repoEvents  int
	prEvents    int
	issueEvents int
}

func (p *fakeProjection) OnRepositoryEvent(ctx context.Context, repositoryID string) { p.repoEvents++ }
func (p *fakeProjection) OnPullRequestEvent(ctx context.Context, repositoryID string, pr *domain.PullRequest, eventAction string) {
	p.prEvents++
}
func (p *fakeProjection) OnIssueEvent(ctx context.Context, repositoryID string, iss *domain.Issue, eventAction string) {
	p.issueEvents++
}
func (p *fakeProjection) OnIssueCommentEvent(ctx context.Context, repositoryID string, ic *domain.IssueComment, eventAction string) {
}
func (p *fakeProjection) OnReviewEvent(ctx context.Context, repositoryID string, r *domain.PullRequestReview) {
}
func (p *fakeProjection) OnCheckRunEvent(ctx context.Context, repositoryID string, cr *domain.CheckRun, prevConclusion string) {
}
func (p *fakeProjection) OnPushEvent(ctx context.Context, repositoryID, branch string, commitCount int, pushedAtMs int64) {
}

func pullRequestPayload(action string) []byte {
	return []byte(fmt.Sprintf(`{
		"action": %q,
		"number": 7,
		"pull_request": {
			"id": 100,
			"number": 7,
			"title": "add feature",
			"state": "open",
			"user": {"id": 1, "login": "octocat", "type": "User"},
			"head": {"sha": "abc123", "ref": "feature"},
			"base": {"ref": "main"},
			"updated_at": "2026-01-01T00:00:00Z"
		},
		"repository": {"id": 42, "name": "widgets", "full_name": "acme/widgets", "owner": {"login": "acme"}}
	}`, action))
}

func TestDispatch_PullRequest_AutoDiscoversStubRepository(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	proj := &fakeProjection{}
	d := New(store, proj)

	ev := &domain.RawEvent{
		EventName:   "pull_request",
		PayloadJSON: string(pullRequestPayload("opened")),
	}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if store.createdRepos != 1 {
		t.Errorf("createdRepos = %d, want 1", store.createdRepos)
	}
	if len(store.syncJobs) != 1 {
		t.Errorf("len(syncJobs) = %d, want 1 reconcile job enqueued", len(store.syncJobs))
	}
	if proj.repoEvents != 1 {
		t.Errorf("repoEvents = %d, want 1", proj.repoEvents)
	}
	if proj.prEvents != 1 {
		t.Errorf("prEvents = %d, want 1", proj.prEvents)
	}

	repo := store.repos[42]
	if repo == nil {
		t.Fatalf("repository 42 not created")
	}
	key := fmt.Sprintf("%s/%d", repo.ID.String(), 7)
	if _, ok := store.prs[key]; !ok {
		t.Errorf("pull request %s not written", key)
	}
}

func TestDispatch_PullRequest_SecondDeliveryReusesRepository(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	proj := &fakeProjection{}
	d := New(store, proj)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ev := &domain.RawEvent{EventName: "pull_request", PayloadJSON: string(pullRequestPayload("opened"))}
		if err := d.Dispatch(ctx, ev); err != nil {
			t.Fatalf("Dispatch() attempt %d error = %v", i, err)
		}
	}

	if store.createdRepos != 1 {
		t.Errorf("createdRepos = %d, want 1 (second delivery must not re-stub)", store.createdRepos)
	}
}

func TestDispatch_PullRequest_ConfirmsOptimisticWrite(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	proj := &fakeProjection{}
	d := New(store, proj)
	ctx := context.Background()

	repo, _, err := store.GetOrCreateStubRepository(ctx, 42, 0, "acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatal(err)
	}
	key := fmt.Sprintf("%s/%d", repo.ID.String(), 7)
	store.prs[key] = &domain.PullRequest{
		RepositoryID:    repo.ID.String(),
		Number:          7,
		GithubUpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		OptimisticFields: domain.OptimisticFields{
			OptimisticCorrelationID: "corr-1",
			OptimisticState:         domain.OptimisticStatePending,
		},
	}

	ev := &domain.RawEvent{EventName: "pull_request", PayloadJSON: string(pullRequestPayload("closed"))}
	if err := d.Dispatch(ctx, ev); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(store.confirmed) != 1 || store.confirmed[0] != "corr-1" {
		t.Errorf("confirmed = %v, want [corr-1]", store.confirmed)
	}
}

func TestDispatch_UnknownEventType_IsNoOp(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	proj := &fakeProjection{}
	d := New(store, proj)

	ev := &domain.RawEvent{EventName: "star", PayloadJSON: `{"action":"created"}`}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Errorf("Dispatch() error = %v, want nil for an unhandled event type", err)
	}
}
