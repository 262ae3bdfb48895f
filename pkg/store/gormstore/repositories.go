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

package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ghmirror/ghmirror/pkg/domain"
	"github.com/ghmirror/ghmirror/pkg/store/watcher"
)

// GetRepositoryByGithubID looks up a Repository by GitHub's numeric id.
func (s *Store) GetRepositoryByGithubID(ctx context.Context, githubRepoID int64) (*domain.Repository, error) {
	var row domain.Repository
	if err := s.db.WithContext(ctx).Where("github_repo_id = ?", githubRepoID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return &row, nil
}

// GetRepositoryByID looks up a Repository by its system id.
func (s *Store) GetRepositoryByID(ctx context.Context, id string) (*domain.Repository, error) {
	var row domain.Repository
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return &row, nil
}

// GetRepositoryByFullName looks up a Repository by "owner/name".
func (s *Store) GetRepositoryByFullName(ctx context.Context, fullName string) (*domain.Repository, error) {
	var row domain.Repository
	if err := s.db.WithContext(ctx).Where("full_name = ?", fullName).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return &row, nil
}

// GetOrCreateStubRepository returns the Repository for githubRepoID,
// auto-creating a minimal "stub" row when the dispatcher observes a webhook
// for a repo bootstrap hasn't hydrated yet (§4.3 auto-discovery). The
// caller is responsible for enqueuing a reconcile SyncJob when created is
// true.
func (s *Store) GetOrCreateStubRepository(ctx context.Context, githubRepoID, installationID int64, fullName, ownerLogin, name string) (repo *domain.Repository, created bool, err error) {
	var existing domain.Repository
	err = s.db.WithContext(ctx).Where("github_repo_id = ?", githubRepoID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up repository: %w", err)
	}

	stub := &domain.Repository{
		GithubRepoID:   githubRepoID,
		InstallationID: installationID,
		OwnerLogin:     ownerLogin,
		Name:           name,
		FullName:       fullName,
		Stub:           true,
	}
	if err := s.db.WithContext(ctx).Create(stub).Error; err != nil {
		var raced domain.Repository
		if lookupErr := s.db.WithContext(ctx).Where("github_repo_id = ?", githubRepoID).First(&raced).Error; lookupErr == nil {
			return &raced, false, nil
		}
		return nil, false, fmt.Errorf("failed to create stub repository: %w", err)
	}
	s.publish(watcher.EntityRepository, watcher.OperationCreate, stub)
	return stub, true, nil
}

// UpsertRepositoryMetadata applies bootstrap-fetched or installation-event
// metadata and clears the Stub flag, since real data has now arrived.
func (s *Store) UpsertRepositoryMetadata(ctx context.Context, repo *domain.Repository) error {
	repo.Stub = false
	res := s.db.WithContext(ctx).Model(&domain.Repository{}).
		Where("github_repo_id = ? AND github_updated_at < ?", repo.GithubRepoID, repo.GithubUpdatedAt).
		Updates(map[string]any{
			"default_branch":      repo.DefaultBranch,
			"private":             repo.Private,
			"visibility":          repo.Visibility,
			"stargazers_count":    repo.StargazersCount,
			"cached_at":           repo.CachedAt,
			"github_updated_at":   repo.GithubUpdatedAt,
			"stub":                false,
			"owner_login":         repo.OwnerLogin,
			"name":                repo.Name,
			"full_name":           repo.FullName,
			"installation_id":     repo.InstallationID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to upsert repository metadata: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(watcher.EntityRepository, watcher.OperationUpdate, repo)
	}
	return nil
}

// SetRepositoryConnectedBy records which user's credentials initiated the
// connect flow, used to resolve the token for the bootstrap workflow (§5).
func (s *Store) SetRepositoryConnectedBy(ctx context.Context, repositoryID string, userID int64) error {
	if err := s.db.WithContext(ctx).Model(&domain.Repository{}).
		Where("id = ?", repositoryID).
		Update("connected_by_user_id", userID).Error; err != nil {
		return fmt.Errorf("failed to set connected-by user: %w", err)
	}
	return nil
}
