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
	"strings"
	"time"

	"github.com/google/go-github/v61/github"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

func (d *Dispatcher) handlePush(ctx context.Context, e *github.PushEvent) error {
	repo, err := d.resolveRepositoryByFields(ctx, e.GetRepo().GetID(), e.GetRepo().GetFullName(),
		e.GetRepo().GetOwner().GetLogin(), e.GetRepo().GetName(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}

	branch := strings.TrimPrefix(e.GetRef(), "refs/heads/")

	if err := d.store.UpsertBranch(ctx, &domain.Branch{
		RepositoryID: repo.ID.String(),
		Name:         branch,
		HeadSha:      e.GetAfter(),
	}); err != nil {
		return fmt.Errorf("failed to upsert branch on push: %w", err)
	}

	for _, c := range e.Commits {
		authoredAt := c.GetTimestamp().Time
		if err := d.store.UpsertCommit(ctx, &domain.Commit{
			RepositoryID:    repo.ID.String(),
			Sha:             c.GetSHA(),
			MessageHeadline: firstLine(c.GetMessage()),
			AuthoredAt:      &authoredAt,
			CommittedAt:     &authoredAt,
		}); err != nil {
			return fmt.Errorf("failed to upsert commit on push: %w", err)
		}
	}

	pushedAt := time.Now()
	if e.HeadCommit != nil && e.HeadCommit.Timestamp != nil {
		pushedAt = e.HeadCommit.GetTimestamp().Time
	}
	d.projection.OnPushEvent(ctx, repo.ID.String(), branch, len(e.Commits), pushedAt.UnixMilli())
	return nil
}

func (d *Dispatcher) handleCreate(ctx context.Context, e *github.CreateEvent) error {
	if e.GetRefType() != "branch" {
		return nil
	}
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}
	if err := d.store.UpsertBranch(ctx, &domain.Branch{
		RepositoryID: repo.ID.String(),
		Name:         e.GetRef(),
	}); err != nil {
		return fmt.Errorf("failed to upsert branch on create: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleDelete(ctx context.Context, e *github.DeleteEvent) error {
	if e.GetRefType() != "branch" {
		return nil
	}
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}
	if err := d.store.DeleteBranch(ctx, repo.ID.String(), e.GetRef()); err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
