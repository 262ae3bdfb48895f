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

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

type fakeStore struct {
	repo         *domain.Repository
	issues       map[int]*domain.Issue
	prs          map[int]*domain.PullRequest
	correlations map[string]bool

	accepted []string
	failed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repo:         &domain.Repository{OwnerLogin: "acme", Name: "widgets"},
		issues:       map[int]*domain.Issue{},
		prs:          map[int]*domain.PullRequest{},
		correlations: map[string]bool{},
	}
}

func (f *fakeStore) GetRepositoryByID(ctx context.Context, id string) (*domain.Repository, error) {
	return f.repo, nil
}

func (f *fakeStore) GetIssue(ctx context.Context, repositoryID string, number int) (*domain.Issue, error) {
	iss, ok := f.issues[number]
	if !ok {
		return nil, errors.New("not found")
	}
	return iss, nil
}

func (f *fakeStore) GetPullRequest(ctx context.Context, repositoryID string, number int) (*domain.PullRequest, error) {
	pr, ok := f.prs[number]
	if !ok {
		return nil, errors.New("not found")
	}
	return pr, nil
}

func (f *fakeStore) CorrelationExists(ctx context.Context, correlationID string) (bool, error) {
	return f.correlations[correlationID], nil
}

func (f *fakeStore) InsertOptimisticIssue(ctx context.Context, iss *domain.Issue) error {
	f.issues[iss.Number] = iss
	f.correlations[iss.OptimisticCorrelationID] = true
	return nil
}

func (f *fakeStore) SetIssueGithubNumber(ctx context.Context, correlationID string, githubIssueID int64, number int) error {
	for n, iss := range f.issues {
		if iss.OptimisticCorrelationID != correlationID {
			continue
		}
		iss.GithubIssueID = githubIssueID
		iss.Number = number
		if n != number {
			delete(f.issues, n)
			f.issues[number] = iss
		}
		return nil
	}
	return errors.New("not found")
}

func (f *fakeStore) InsertOptimisticIssueComment(ctx context.Context, c *domain.IssueComment) error {
	f.correlations[c.OptimisticCorrelationID] = true
	return nil
}

func (f *fakeStore) InsertOptimisticPullRequestReview(ctx context.Context, r *domain.PullRequestReview) error {
	f.correlations[r.OptimisticCorrelationID] = true
	return nil
}

func (f *fakeStore) SetIssueOptimisticOp(ctx context.Context, repositoryID string, number int, correlationID, opType, payloadJSON string) error {
	f.correlations[correlationID] = true
	return nil
}

func (f *fakeStore) SetPullRequestOptimisticOp(ctx context.Context, repositoryID string, number int, correlationID, opType, payloadJSON string) error {
	f.correlations[correlationID] = true
	return nil
}

func (f *fakeStore) AcceptOptimistic(ctx context.Context, correlationID string) error {
	f.accepted = append(f.accepted, correlationID)
	return nil
}

func (f *fakeStore) FailOptimistic(ctx context.Context, correlationID, errMessage string, errStatus int) error {
	f.failed = append(f.failed, correlationID)
	return nil
}

func (f *fakeStore) UpsertPullRequest(ctx context.Context, pr *domain.PullRequest) (bool, error) {
	f.prs[pr.Number] = pr
	return false, nil
}

type fakeTokens struct{}

func (fakeTokens) ResolveToken(ctx context.Context, repo *domain.Repository) (string, error) {
	return "test-token", nil
}

type fakeGitHub struct {
	failWith error
	labels   []string
}

func (f *fakeGitHub) CreateIssue(ctx context.Context, token, owner, repo, title string) (int64, int, error) {
	if f.failWith != nil {
		return 0, 0, f.failWith
	}
	return 42, 7, nil
}

func (f *fakeGitHub) CreateIssueComment(ctx context.Context, token, owner, repo string, number int, body string) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	return 43, nil
}

func (f *fakeGitHub) UpdateIssueState(ctx context.Context, token, owner, repo string, number int, state string) error {
	return f.failWith
}

func (f *fakeGitHub) MergePullRequest(ctx context.Context, token, owner, repo string, number int, method string) error {
	return f.failWith
}

func (f *fakeGitHub) UpdatePullRequestBranch(ctx context.Context, token, owner, repo string, number int, expectedHeadSha string) error {
	return f.failWith
}

func (f *fakeGitHub) CreatePullRequestReview(ctx context.Context, token, owner, repo string, number int, event, body string) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	return 44, nil
}

func (f *fakeGitHub) UpdateIssueLabels(ctx context.Context, token, owner, repo string, number int, labels []string) error {
	f.labels = labels
	return f.failWith
}

func (f *fakeGitHub) UpdateIssueAssignees(ctx context.Context, token, owner, repo string, number int, logins []string) error {
	return f.failWith
}

func newTestCoordinator(store *fakeStore, gh *fakeGitHub) *Coordinator {
	c := New(store, gh, fakeTokens{})
	c.now = func() time.Time { return time.Unix(1000, 0) }
	return c
}

func TestCoordinator_CreateIssue(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gh := &fakeGitHub{}
	c := newTestCoordinator(store, gh)

	iss, err := c.CreateIssue(context.Background(), "repo-1", 7, "corr-1", "Bug report")
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if iss.GithubIssueID != 42 {
		t.Errorf("GithubIssueID = %d, want 42", iss.GithubIssueID)
	}
	if iss.Number != 7 {
		t.Errorf("Number = %d, want 7", iss.Number)
	}
	if stored, err := store.GetIssue(context.Background(), "repo-1", 7); err != nil || stored.GithubIssueID != 42 {
		t.Errorf("GetIssue(repo-1, 7) = %+v, %v, want GithubIssueID 42", stored, err)
	}
	if len(store.accepted) != 1 || store.accepted[0] != "corr-1" {
		t.Errorf("accepted = %v, want [corr-1]", store.accepted)
	}
}

func TestCoordinator_CreateIssue_DuplicateCorrelation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.correlations["corr-1"] = true
	gh := &fakeGitHub{}
	c := newTestCoordinator(store, gh)

	_, err := c.CreateIssue(context.Background(), "repo-1", 7, "corr-1", "Bug report")
	var dup *DuplicateOperationError
	if !errors.As(err, &dup) {
		t.Fatalf("CreateIssue() error = %v, want *DuplicateOperationError", err)
	}
}

func TestCoordinator_CreateIssue_GitHubRejectionDoesNotRollback(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gh := &fakeGitHub{failWith: errors.New("rate limited")}
	c := newTestCoordinator(store, gh)

	iss, err := c.CreateIssue(context.Background(), "repo-1", 7, "corr-1", "Bug report")
	if err == nil {
		t.Fatal("CreateIssue() error = nil, want rate limited error")
	}
	if _, ok := store.issues[iss.Number]; !ok {
		t.Error("optimistic issue row was removed on failure, want it preserved")
	}
	if len(store.failed) != 1 || store.failed[0] != "corr-1" {
		t.Errorf("failed = %v, want [corr-1]", store.failed)
	}
	if len(store.accepted) != 0 {
		t.Errorf("accepted = %v, want none", store.accepted)
	}
}

func TestCoordinator_MergePullRequest(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.prs[9] = &domain.PullRequest{Number: 9, State: domain.PullRequestStateOpen}
	gh := &fakeGitHub{}
	c := newTestCoordinator(store, gh)

	if err := c.MergePullRequest(context.Background(), "repo-1", "corr-2", 9, "squash"); err != nil {
		t.Fatalf("MergePullRequest() error = %v", err)
	}
	pr := store.prs[9]
	if pr.State != domain.PullRequestStateClosed {
		t.Errorf("State = %q, want closed", pr.State)
	}
	if pr.MergedAt == nil {
		t.Error("MergedAt = nil, want set")
	}
}

func TestCoordinator_UpdateLabels(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.issues[3] = &domain.Issue{Number: 3, LabelNames: "bug,needs-triage"}
	gh := &fakeGitHub{}
	c := newTestCoordinator(store, gh)

	if err := c.UpdateLabels(context.Background(), "repo-1", "corr-3", 3, []string{"p1"}, []string{"needs-triage"}); err != nil {
		t.Fatalf("UpdateLabels() error = %v", err)
	}
	want := []string{"bug", "p1"}
	if len(gh.labels) != len(want) {
		t.Fatalf("labels = %v, want %v", gh.labels, want)
	}
	for i, l := range want {
		if gh.labels[i] != l {
			t.Errorf("labels[%d] = %q, want %q", i, gh.labels[i], l)
		}
	}
}
