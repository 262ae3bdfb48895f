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

	"github.com/google/go-github/v61/github"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Dispatcher is the Event Dispatcher & Domain Writer (§4.3).
type Dispatcher struct {
	store      Store
	projection ProjectionBuilder
}

// New builds a Dispatcher over store, invoking projection after every
// domain write that succeeds.
func New(store Store, projection ProjectionBuilder) *Dispatcher {
	return &Dispatcher{store: store, projection: projection}
}

// Dispatch decodes ev's payload and applies it to the mirrored domain, the
// dispatch table described in §4.3. It satisfies rawevent.DispatchFunc.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.RawEvent) error {
	parsed, err := github.ParseWebHook(ev.EventName, []byte(ev.PayloadJSON))
	if err != nil {
		return fmt.Errorf("failed to parse webhook payload for event %q: %w", ev.EventName, err)
	}

	switch payload := parsed.(type) {
	case *github.PullRequestEvent:
		return d.handlePullRequest(ctx, payload)
	case *github.PullRequestReviewEvent:
		return d.handlePullRequestReview(ctx, payload)
	case *github.PullRequestReviewCommentEvent:
		return d.handlePullRequestReviewComment(ctx, payload)
	case *github.IssuesEvent:
		return d.handleIssue(ctx, payload)
	case *github.IssueCommentEvent:
		return d.handleIssueComment(ctx, payload)
	case *github.CheckRunEvent:
		return d.handleCheckRun(ctx, payload)
	case *github.WorkflowRunEvent:
		return d.handleWorkflowRun(ctx, payload)
	case *github.WorkflowJobEvent:
		return d.handleWorkflowJob(ctx, payload)
	case *github.PushEvent:
		return d.handlePush(ctx, payload)
	case *github.CreateEvent:
		return d.handleCreate(ctx, payload)
	case *github.DeleteEvent:
		return d.handleDelete(ctx, payload)
	case *github.InstallationEvent:
		return d.handleInstallation(ctx, payload)
	case *github.InstallationRepositoriesEvent:
		return d.handleInstallationRepositories(ctx, payload)
	default:
		logging.FromContext(ctx).InfoContext(ctx, "no handler for event type, accepting as a no-op",
			"event_name", ev.EventName)
		return nil
	}
}

// resolveRepository returns the system row for a webhook payload's
// repository, auto-creating a stub and enqueuing a reconcile SyncJob the
// first time this repository is observed (§4.3 auto-discovery).
func (d *Dispatcher) resolveRepository(ctx context.Context, repo *github.Repository, installationID int64) (*domain.Repository, error) {
	return d.resolveRepositoryByFields(ctx, repo.GetID(), repo.GetFullName(), repo.GetOwner().GetLogin(), repo.GetName(), installationID)
}

// resolveRepositoryByFields is the field-level form used by events whose
// repository payload isn't a *github.Repository (push events embed a
// narrower PushEventRepository shape).
func (d *Dispatcher) resolveRepositoryByFields(ctx context.Context, githubRepoID int64, fullName, ownerLogin, name string, installationID int64) (*domain.Repository, error) {
	row, created, err := d.store.GetOrCreateStubRepository(ctx, githubRepoID, installationID, fullName, ownerLogin, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository: %w", err)
	}
	if created {
		repositoryID := row.ID.String()
		job := &domain.SyncJob{
			JobType:       domain.SyncJobTypeReconcile,
			ScopeType:     "repository",
			TriggerReason: "auto_discovery",
			LockKey:       fmt.Sprintf("reconcile:%s", fullName),
			RepositoryID:  &repositoryID,
		}
		if installationID != 0 {
			job.InstallationID = &installationID
		}
		if _, _, err := d.store.CreateSyncJobIfAbsent(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to enqueue reconcile job: %w", err)
		}
		d.projection.OnRepositoryEvent(ctx, row.ID.String())
	}
	return row, nil
}

// upsertActor resolves the User row for a webhook actor, the "user upsert
// before link" step required by §4.3.
func (d *Dispatcher) upsertActor(ctx context.Context, actor *github.User) (*domain.User, error) {
	if actor == nil {
		return nil, nil
	}
	typ := domain.UserTypeUser
	if actor.GetType() == "Bot" {
		typ = domain.UserTypeBot
	} else if actor.GetType() == "Organization" {
		typ = domain.UserTypeOrg
	}
	u, err := d.store.UpsertUser(ctx, actor.GetID(), actor.GetLogin(), actor.GetAvatarURL(), typ)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}
