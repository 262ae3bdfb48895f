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

package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// fakeStore is an in-memory Store implementation for table-driven tests.
type fakeStore struct {
	overview   map[string]*domain.RepoOverview
	activities []*domain.ActivityFeed
}

func newFakeStore() *fakeStore {
	return &fakeStore{overview: make(map[string]*domain.RepoOverview)}
}

func (f *fakeStore) ensure(repositoryID string) *domain.RepoOverview {
	o, ok := f.overview[repositoryID]
	if !ok {
		o = &domain.RepoOverview{RepositoryID: repositoryID}
		f.overview[repositoryID] = o
	}
	return o
}

func (f *fakeStore) AppendActivity(ctx context.Context, a *domain.ActivityFeed) error {
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeStore) IncrementOpenPRCount(ctx context.Context, repositoryID string, delta int) error {
	f.ensure(repositoryID).OpenPrCount += delta
	return nil
}

func (f *fakeStore) IncrementOpenIssueCount(ctx context.Context, repositoryID string, delta int) error {
	f.ensure(repositoryID).OpenIssueCount += delta
	return nil
}

func (f *fakeStore) IncrementFailingCheckCount(ctx context.Context, repositoryID string, delta int) error {
	f.ensure(repositoryID).FailingCheckCount += delta
	return nil
}

func (f *fakeStore) SetLastPushAt(ctx context.Context, repositoryID string, ms int64) error {
	f.ensure(repositoryID).LastPushAtMs = ms
	return nil
}

func (f *fakeStore) GetRepoOverview(ctx context.Context, repositoryID string) (*domain.RepoOverview, error) {
	return f.ensure(repositoryID), nil
}

func (f *fakeStore) ListActivity(ctx context.Context, repositoryID, cursor string, pageSize int) ([]*domain.ActivityFeed, string, error) {
	return f.activities, "", nil
}

func (f *fakeStore) ListPullRequests(ctx context.Context, repositoryID string, state *domain.PullRequestState, cursor string, pageSize int) ([]*domain.PullRequest, string, error) {
	return nil, "", nil
}

func (f *fakeStore) ListIssues(ctx context.Context, repositoryID string, state *domain.IssueState, cursor string, pageSize int) ([]*domain.Issue, string, error) {
	return nil, "", nil
}

func newTestBuilder(store *fakeStore) *Builder {
	b := New(store)
	b.now = func() time.Time { return time.Unix(1000, 0) }
	return b
}

func TestBuilder_OnPullRequestEvent(t *testing.T) {
	t.Parallel()

	mergedAt := time.Unix(500, 0)

	cases := []struct {
		name          string
		pr            *domain.PullRequest
		action        string
		wantOpenDelta int
		wantActivity  string
	}{
		{
			name:          "opened",
			pr:            &domain.PullRequest{Number: 1, Title: "Add feature"},
			action:        "opened",
			wantOpenDelta: 1,
			wantActivity:  "pr.opened",
		},
		{
			name:          "closed without merge",
			pr:            &domain.PullRequest{Number: 2, Title: "Drop feature"},
			action:        "closed",
			wantOpenDelta: -1,
			wantActivity:  "pr.closed",
		},
		{
			name:          "closed via merge",
			pr:            &domain.PullRequest{Number: 3, Title: "Ship feature", MergedAt: &mergedAt},
			action:        "closed",
			wantOpenDelta: -1,
			wantActivity:  "pr.merged",
		},
		{
			name:          "synchronize is not an interesting event",
			pr:            &domain.PullRequest{Number: 4, Title: "Push commits"},
			action:        "synchronize",
			wantOpenDelta: 0,
			wantActivity:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			b := newTestBuilder(store)
			b.OnPullRequestEvent(context.Background(), "repo-1", tc.pr, tc.action)

			if got := store.overview["repo-1"].OpenPrCount; got != tc.wantOpenDelta {
				t.Errorf("OpenPrCount = %d, want %d", got, tc.wantOpenDelta)
			}
			if tc.wantActivity == "" {
				if len(store.activities) != 0 {
					t.Errorf("got %d activities, want 0", len(store.activities))
				}
				return
			}
			if len(store.activities) != 1 {
				t.Fatalf("got %d activities, want 1", len(store.activities))
			}
			if got := store.activities[0].ActivityType; got != tc.wantActivity {
				t.Errorf("ActivityType = %q, want %q", got, tc.wantActivity)
			}
		})
	}
}

func TestBuilder_OnIssueEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		iss           *domain.Issue
		action        string
		wantOpenDelta int
		wantActivity  string
	}{
		{
			name:          "opened",
			iss:           &domain.Issue{Number: 1, Title: "Bug report"},
			action:        "opened",
			wantOpenDelta: 1,
			wantActivity:  "issue.opened",
		},
		{
			name:          "closed",
			iss:           &domain.Issue{Number: 2, Title: "Fixed bug"},
			action:        "closed",
			wantOpenDelta: -1,
			wantActivity:  "issue.closed",
		},
		{
			name:          "pull request shaped issue is ignored",
			iss:           &domain.Issue{Number: 3, Title: "A PR", IsPullRequest: true},
			action:        "opened",
			wantOpenDelta: 0,
			wantActivity:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			b := newTestBuilder(store)
			b.OnIssueEvent(context.Background(), "repo-1", tc.iss, tc.action)

			if got := store.overview["repo-1"].OpenIssueCount; got != tc.wantOpenDelta {
				t.Errorf("OpenIssueCount = %d, want %d", got, tc.wantOpenDelta)
			}
			if tc.wantActivity == "" {
				if len(store.activities) != 0 {
					t.Errorf("got %d activities, want 0", len(store.activities))
				}
				return
			}
			if len(store.activities) != 1 || store.activities[0].ActivityType != tc.wantActivity {
				t.Fatalf("activities = %+v, want single %q", store.activities, tc.wantActivity)
			}
		})
	}
}

func TestBuilder_OnCheckRunEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		cr             *domain.CheckRun
		prevConclusion string
		wantDelta      int
		wantActivity   bool
	}{
		{
			name:         "in progress run is ignored",
			cr:           &domain.CheckRun{Name: "build", Status: "in_progress", Conclusion: ""},
			wantDelta:    0,
			wantActivity: false,
		},
		{
			name:         "newly failing",
			cr:           &domain.CheckRun{Name: "build", Status: "completed", Conclusion: "failure"},
			wantDelta:    1,
			wantActivity: true,
		},
		{
			name:           "recovered from failing",
			cr:             &domain.CheckRun{Name: "build", Status: "completed", Conclusion: "success"},
			prevConclusion: "failure",
			wantDelta:      -1,
			wantActivity:   true,
		},
		{
			name:           "stayed failing",
			cr:             &domain.CheckRun{Name: "build", Status: "completed", Conclusion: "timed_out"},
			prevConclusion: "failure",
			wantDelta:      0,
			wantActivity:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			b := newTestBuilder(store)
			b.OnCheckRunEvent(context.Background(), "repo-1", tc.cr, tc.prevConclusion)

			if got := store.overview["repo-1"].FailingCheckCount; got != tc.wantDelta {
				t.Errorf("FailingCheckCount = %d, want %d", got, tc.wantDelta)
			}
			if gotActivity := len(store.activities) == 1; gotActivity != tc.wantActivity {
				t.Errorf("activity appended = %v, want %v", gotActivity, tc.wantActivity)
			}
		})
	}
}

func TestBuilder_OnPushEvent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	b := newTestBuilder(store)
	b.OnPushEvent(context.Background(), "repo-1", "main", 3, 42000)

	if got := store.overview["repo-1"].LastPushAtMs; got != 42000 {
		t.Errorf("LastPushAtMs = %d, want 42000", got)
	}
	if len(store.activities) != 1 {
		t.Fatalf("got %d activities, want 1", len(store.activities))
	}
	want := &domain.ActivityFeed{
		RepositoryID: "repo-1",
		CreatedAtMs:  1000 * 1000,
		ActivityType: "push",
		Title:        "Pushed 3 commits to main",
	}
	if diff := cmp.Diff(want, store.activities[0], cmpopts.IgnoreFields(domain.ActivityFeed{}, "Base")); diff != "" {
		t.Errorf("activity mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_OnIssueCommentEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		action       string
		wantActivity bool
	}{
		{name: "created", action: "created", wantActivity: true},
		{name: "edited is not interesting", action: "edited", wantActivity: false},
		{name: "deleted is not interesting", action: "deleted", wantActivity: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			b := newTestBuilder(store)
			b.OnIssueCommentEvent(context.Background(), "repo-1", &domain.IssueComment{IssueNumber: 7}, tc.action)

			if got := len(store.activities) == 1; got != tc.wantActivity {
				t.Errorf("activity appended = %v, want %v", got, tc.wantActivity)
			}
		})
	}
}

func TestBuilder_OnReviewEvent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	b := newTestBuilder(store)
	b.OnReviewEvent(context.Background(), "repo-1", &domain.PullRequestReview{PullRequestNumber: 5, State: "approved"})

	if len(store.activities) != 1 {
		t.Fatalf("got %d activities, want 1", len(store.activities))
	}
	if got := store.activities[0].ActivityType; got != "pr_review.approved" {
		t.Errorf("ActivityType = %q, want pr_review.approved", got)
	}
}
