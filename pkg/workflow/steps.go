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

	"github.com/google/go-github/v61/github"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

func commitRow(repositoryID string, c *github.RepositoryCommit) *domain.Commit {
	row := &domain.Commit{
		RepositoryID: repositoryID,
		Sha:          c.GetSHA(),
	}
	if commit := c.GetCommit(); commit != nil {
		row.MessageHeadline = firstLine(commit.GetMessage())
		if author := commit.GetAuthor(); author != nil && author.Date != nil {
			t := author.GetDate().Time
			row.AuthoredAt = &t
		}
		if committer := commit.GetCommitter(); committer != nil && committer.Date != nil {
			t := committer.GetDate().Time
			row.CommittedAt = &t
		}
	}
	return row
}

func (r *Runner) stepFetchBranches(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string) error {
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		branches, resp, err := r.github.ListBranches(ctx, token, repo.OwnerLogin, repo.Name, opts)
		if err != nil {
			return fmt.Errorf("failed to list branches: %w", err)
		}
		for _, b := range branches {
			if err := r.store.UpsertBranch(ctx, &domain.Branch{
				RepositoryID: repo.ID.String(),
				Name:         b.GetName(),
				HeadSha:      b.GetCommit().GetSHA(),
				Protected:    b.GetProtected(),
			}); err != nil {
				return fmt.Errorf("failed to upsert branch %q: %w", b.GetName(), err)
			}
			job.ItemsFetched++
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil
}

func (r *Runner) stepFetchPullRequests(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string) error {
	opts := &github.PullRequestListOptions{State: "all", ListOptions: github.ListOptions{PerPage: 100}}
	pages := 0
	for {
		prs, resp, err := r.github.ListPullRequests(ctx, token, repo.OwnerLogin, repo.Name, opts)
		if err != nil {
			return fmt.Errorf("failed to list pull requests: %w", err)
		}
		for _, pr := range prs {
			state := domain.PullRequestStateOpen
			if pr.GetState() == "closed" {
				state = domain.PullRequestStateClosed
			}
			row := &domain.PullRequest{
				RepositoryID:    repo.ID.String(),
				Number:          pr.GetNumber(),
				GithubPrID:      pr.GetID(),
				Title:           pr.GetTitle(),
				State:           state,
				Draft:           pr.GetDraft(),
				HeadSha:         pr.GetHead().GetSHA(),
				HeadRefName:     pr.GetHead().GetRef(),
				BaseRefName:     pr.GetBase().GetRef(),
				MergeableState:  pr.GetMergeableState(),
				GithubUpdatedAt: pr.GetUpdatedAt().Time,
			}
			if pr.GetUser() != nil {
				id := pr.GetUser().GetID()
				row.AuthorUserID = &id
			}
			if pr.MergedAt != nil {
				t := pr.GetMergedAt().Time
				row.MergedAt = &t
			}
			if pr.ClosedAt != nil {
				t := pr.GetClosedAt().Time
				row.ClosedAt = &t
			}
			if _, err := r.store.UpsertPullRequest(ctx, row); err != nil {
				return fmt.Errorf("failed to upsert pull request #%d: %w", pr.GetNumber(), err)
			}
			job.ItemsFetched++
		}
		pages++
		if pages%5 == 0 {
			if err := r.store.UpdateSyncJob(ctx, job); err != nil {
				return fmt.Errorf("failed to checkpoint pull request progress: %w", err)
			}
		}
		if resp == nil || resp.NextPage == 0 || pages >= r.cfg.ChunkPageSize {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil
}

func (r *Runner) stepFetchIssues(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string) error {
	opts := &github.IssueListByRepoOptions{State: "all", ListOptions: github.ListOptions{PerPage: 100}}
	pages := 0
	for {
		issues, resp, err := r.github.ListIssues(ctx, token, repo.OwnerLogin, repo.Name, opts)
		if err != nil {
			return fmt.Errorf("failed to list issues: %w", err)
		}
		for _, iss := range issues {
			state := domain.IssueStateOpen
			if iss.GetState() == "closed" {
				state = domain.IssueStateClosed
			}
			row := &domain.Issue{
				RepositoryID:    repo.ID.String(),
				Number:          iss.GetNumber(),
				GithubIssueID:   iss.GetID(),
				State:           state,
				Title:           iss.GetTitle(),
				IsPullRequest:   iss.IsPullRequest(),
				GithubUpdatedAt: iss.GetUpdatedAt().Time,
			}
			if iss.GetUser() != nil {
				id := iss.GetUser().GetID()
				row.AuthorUserID = &id
			}
			if _, err := r.store.UpsertIssue(ctx, row); err != nil {
				return fmt.Errorf("failed to upsert issue #%d: %w", iss.GetNumber(), err)
			}
			job.ItemsFetched++
		}
		pages++
		if pages%5 == 0 {
			if err := r.store.UpdateSyncJob(ctx, job); err != nil {
				return fmt.Errorf("failed to checkpoint issue progress: %w", err)
			}
		}
		if resp == nil || resp.NextPage == 0 || pages >= r.cfg.ChunkPageSize {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil
}

func (r *Runner) stepFetchCommits(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string) error {
	opts := &github.CommitsListOptions{SHA: repo.DefaultBranch, ListOptions: github.ListOptions{PerPage: 100}}
	for job.ItemsFetched < r.cfg.CommitHistoryLimit {
		commits, resp, err := r.github.ListCommits(ctx, token, repo.OwnerLogin, repo.Name, opts)
		if err != nil {
			return fmt.Errorf("failed to list commits: %w", err)
		}
		for _, c := range commits {
			if err := r.store.UpsertCommit(ctx, commitRow(repo.ID.String(), c)); err != nil {
				return fmt.Errorf("failed to upsert commit %s: %w", c.GetSHA(), err)
			}
			job.ItemsFetched++
			if job.ItemsFetched >= r.cfg.CommitHistoryLimit {
				break
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

func (r *Runner) stepAnalyzeCheckRuns(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string) error {
	prs, err := r.store.ListOpenPullRequests(ctx, repo.ID.String())
	if err != nil {
		return fmt.Errorf("failed to list open pull requests: %w", err)
	}

	seen := map[string]bool{}
	var shas []string
	for _, pr := range prs {
		if pr.HeadSha == "" || seen[pr.HeadSha] {
			continue
		}
		seen[pr.HeadSha] = true
		shas = append(shas, pr.HeadSha)
	}

	for start := 0; start < len(shas); start += r.cfg.CheckRunShaChunkSize {
		end := start + r.cfg.CheckRunShaChunkSize
		if end > len(shas) {
			end = len(shas)
		}
		for _, sha := range shas[start:end] {
			runs, err := r.github.ListCheckRunsForRef(ctx, token, repo.OwnerLogin, repo.Name, sha)
			if err != nil {
				return fmt.Errorf("failed to list check runs for %s: %w", sha, err)
			}
			for _, cr := range runs {
				if _, err := r.store.UpsertCheckRun(ctx, &domain.CheckRun{
					RepositoryID:     repo.ID.String(),
					GithubCheckRunID: cr.GetID(),
					HeadSha:          cr.GetHeadSHA(),
					Name:             cr.GetName(),
					Status:           cr.GetStatus(),
					Conclusion:       cr.GetConclusion(),
					GithubUpdatedAt:  cr.GetCompletedAt().Time,
				}); err != nil {
					return fmt.Errorf("failed to upsert check run: %w", err)
				}
				job.ItemsFetched++
			}
		}
	}
	return nil
}

func (r *Runner) stepFetchWorkflowRuns(ctx context.Context, job *domain.SyncJob, repo *domain.Repository, token string) error {
	opts := &github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	runs, _, err := r.github.ListWorkflowRuns(ctx, token, repo.OwnerLogin, repo.Name, opts)
	if err != nil {
		return fmt.Errorf("failed to list workflow runs: %w", err)
	}
	for _, wr := range runs {
		if err := r.store.UpsertWorkflowRun(ctx, &domain.WorkflowRun{
			RepositoryID:    repo.ID.String(),
			GithubRunID:     wr.GetID(),
			Name:            wr.GetName(),
			HeadSha:         wr.GetHeadSHA(),
			Status:          wr.GetStatus(),
			Conclusion:      wr.GetConclusion(),
			GithubUpdatedAt: wr.GetUpdatedAt().Time,
		}); err != nil {
			return fmt.Errorf("failed to upsert workflow run %d: %w", wr.GetID(), err)
		}
		job.ItemsFetched++

		jobs, _, err := r.github.ListWorkflowJobs(ctx, token, repo.OwnerLogin, repo.Name, wr.GetID(), &github.ListWorkflowJobsOptions{})
		if err != nil {
			return fmt.Errorf("failed to list jobs for workflow run %d: %w", wr.GetID(), err)
		}
		for _, wj := range jobs {
			if err := r.store.UpsertWorkflowJob(ctx, &domain.WorkflowJob{
				RepositoryID:    repo.ID.String(),
				GithubJobID:     wj.GetID(),
				GithubRunID:     wj.GetRunID(),
				Name:            wj.GetName(),
				Status:          wj.GetStatus(),
				Conclusion:      wj.GetConclusion(),
				GithubUpdatedAt: wj.GetCompletedAt().Time,
			}); err != nil {
				return fmt.Errorf("failed to upsert workflow job %d: %w", wj.GetID(), err)
			}
			job.ItemsFetched++
		}
	}
	return nil
}

// stepScheduleFileDiffs enqueues one PR-file-diff SyncJob per open pull
// request, queued rather than fetched inline (§4.4 step 8).
func (r *Runner) stepScheduleFileDiffs(ctx context.Context, job *domain.SyncJob, repo *domain.Repository) error {
	prs, err := r.store.ListOpenPullRequests(ctx, repo.ID.String())
	if err != nil {
		return fmt.Errorf("failed to list open pull requests: %w", err)
	}
	for _, pr := range prs {
		lockKey := fmt.Sprintf("pr-files:%s:%d:%s", repo.ID.String(), pr.Number, pr.HeadSha)
		repositoryID := repo.ID.String()
		diffJob := &domain.SyncJob{
			JobType:       domain.SyncJobTypeBackfill,
			ScopeType:     scopeTypePullRequestFiles,
			TriggerReason: "bootstrap",
			LockKey:       lockKey,
			RepositoryID:  &repositoryID,
			State:         domain.SyncJobStatePending,
		}
		if job.InstallationID != nil {
			diffJob.InstallationID = job.InstallationID
		}
		if _, _, err := r.store.CreateSyncJobIfAbsent(ctx, diffJob); err != nil {
			return fmt.Errorf("failed to enqueue file diff sync for #%d: %w", pr.Number, err)
		}
	}
	return nil
}

// runFileDiffJob fetches and stores the file diff list for one pull
// request; it is a single-shot job rather than a step graph.
func (r *Runner) runFileDiffJob(ctx context.Context, job *domain.SyncJob) error {
	repo, err := r.repositoryForJob(ctx, job)
	if err != nil {
		return r.failJob(ctx, job, err)
	}
	token, err := r.tokens.ResolveToken(ctx, repo)
	if err != nil {
		return r.failJob(ctx, job, err)
	}

	var number int
	if _, err := fmt.Sscanf(job.LockKey, "pr-files:"+repo.ID.String()+":%d:", &number); err != nil {
		return r.failJob(ctx, job, fmt.Errorf("failed to parse pull request number from lock key %q: %w", job.LockKey, err))
	}

	files, _, err := r.github.ListPullRequestFiles(ctx, token, repo.OwnerLogin, repo.Name, number, &github.ListOptions{PerPage: 100})
	if err != nil {
		return r.failJob(ctx, job, fmt.Errorf("failed to list pull request files: %w", err))
	}
	for _, f := range files {
		if err := r.store.UpsertPullRequestFile(ctx, &domain.PullRequestFile{
			RepositoryID:      repo.ID.String(),
			PullRequestNumber: number,
			Filename:          f.GetFilename(),
			HeadSha:           f.GetSHA(),
			Status:            f.GetStatus(),
			Additions:         f.GetAdditions(),
			Deletions:         f.GetDeletions(),
			Patch:             f.GetPatch(),
		}); err != nil {
			return r.failJob(ctx, job, fmt.Errorf("failed to upsert pull request file: %w", err))
		}
		job.ItemsFetched++
	}

	job.State = domain.SyncJobStateDone
	if err := r.store.UpdateSyncJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark file diff sync job done: %w", err)
	}
	return nil
}
