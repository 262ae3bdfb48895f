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

	"github.com/ghmirror/ghmirror/pkg/domain"
)

func (d *Dispatcher) handleCheckRun(ctx context.Context, e *github.CheckRunEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}

	cr := &domain.CheckRun{
		RepositoryID:     repo.ID.String(),
		GithubCheckRunID: e.GetCheckRun().GetID(),
		HeadSha:          e.GetCheckRun().GetHeadSHA(),
		Name:             e.GetCheckRun().GetName(),
		Status:           e.GetCheckRun().GetStatus(),
		Conclusion:       e.GetCheckRun().GetConclusion(),
		GithubUpdatedAt:  e.GetCheckRun().GetCompletedAt().Time,
	}
	if cr.GithubUpdatedAt.IsZero() {
		cr.GithubUpdatedAt = e.GetCheckRun().GetStartedAt().Time
	}

	prevConclusion, err := d.store.UpsertCheckRun(ctx, cr)
	if err != nil {
		return fmt.Errorf("failed to upsert check run: %w", err)
	}

	d.projection.OnCheckRunEvent(ctx, repo.ID.String(), cr, prevConclusion)
	return nil
}

func (d *Dispatcher) handleWorkflowRun(ctx context.Context, e *github.WorkflowRunEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}

	wr := &domain.WorkflowRun{
		RepositoryID:    repo.ID.String(),
		GithubRunID:     e.GetWorkflowRun().GetID(),
		Name:            e.GetWorkflowRun().GetName(),
		HeadSha:         e.GetWorkflowRun().GetHeadSHA(),
		Status:          e.GetWorkflowRun().GetStatus(),
		Conclusion:      e.GetWorkflowRun().GetConclusion(),
		GithubUpdatedAt: e.GetWorkflowRun().GetUpdatedAt().Time,
	}

	if err := d.store.UpsertWorkflowRun(ctx, wr); err != nil {
		return fmt.Errorf("failed to upsert workflow run: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleWorkflowJob(ctx context.Context, e *github.WorkflowJobEvent) error {
	repo, err := d.resolveRepository(ctx, e.GetRepo(), e.GetInstallation().GetID())
	if err != nil {
		return err
	}

	wj := &domain.WorkflowJob{
		RepositoryID:    repo.ID.String(),
		GithubJobID:     e.GetWorkflowJob().GetID(),
		GithubRunID:     e.GetWorkflowJob().GetRunID(),
		Name:            e.GetWorkflowJob().GetName(),
		Status:          e.GetWorkflowJob().GetStatus(),
		Conclusion:      e.GetWorkflowJob().GetConclusion(),
		GithubUpdatedAt: e.GetWorkflowJob().GetCompletedAt().Time,
	}
	if wj.GithubUpdatedAt.IsZero() {
		wj.GithubUpdatedAt = e.GetWorkflowJob().GetStartedAt().Time
	}

	if err := d.store.UpsertWorkflowJob(ctx, wj); err != nil {
		return fmt.Errorf("failed to upsert workflow job: %w", err)
	}
	return nil
}
