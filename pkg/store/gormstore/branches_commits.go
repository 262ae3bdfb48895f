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
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/ghmirror/ghmirror/pkg/domain"
	"github.com/ghmirror/ghmirror/pkg/store/watcher"
)

// UpsertBranch creates or refreshes a Branch keyed by (repositoryId, name).
func (s *Store) UpsertBranch(ctx context.Context, b *domain.Branch) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"head_sha", "protected"}),
	}).Create(b).Error; err != nil {
		return fmt.Errorf("failed to upsert branch: %w", err)
	}
	s.publish(watcher.EntityBranch, watcher.OperationUpdate, b)
	return nil
}

// DeleteBranch removes a Branch row, for a ref-delete event of type branch
// (§4.3).
func (s *Store) DeleteBranch(ctx context.Context, repositoryID, name string) error {
	if err := s.db.WithContext(ctx).
		Where("repository_id = ? AND name = ?", repositoryID, name).
		Delete(&domain.Branch{}).Error; err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	s.publish(watcher.EntityBranch, watcher.OperationDelete, domain.Branch{RepositoryID: repositoryID, Name: name})
	return nil
}

// UpsertCommit creates or refreshes a Commit keyed by (repositoryId, sha).
func (s *Store) UpsertCommit(ctx context.Context, c *domain.Commit) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "sha"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_headline", "authored_at", "committed_at"}),
	}).Create(c).Error; err != nil {
		return fmt.Errorf("failed to upsert commit: %w", err)
	}
	s.publish(watcher.EntityCommit, watcher.OperationUpdate, c)
	return nil
}
