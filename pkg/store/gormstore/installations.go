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
	"gorm.io/gorm/clause"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// UpsertInstallation creates or updates an Installation keyed by its GitHub
// installation id.
func (s *Store) UpsertInstallation(ctx context.Context, in *domain.Installation) (*domain.Installation, error) {
	var existing domain.Installation
	err := s.db.WithContext(ctx).Where("installation_id = ?", in.InstallationID).First(&existing).Error
	switch {
	case err == nil:
		existing.AccountID = in.AccountID
		existing.AccountLogin = in.AccountLogin
		existing.AccountType = in.AccountType
		existing.RepositorySelectionDigest = in.RepositorySelectionDigest
		existing.PermissionsDigest = in.PermissionsDigest
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update installation: %w", err)
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "installation_id"}},
			DoNothing: true,
		}).Create(in).Error; err != nil {
			return nil, fmt.Errorf("failed to create installation: %w", err)
		}
		return in, nil
	default:
		return nil, fmt.Errorf("failed to look up installation: %w", err)
	}
}

// GetInstallationByGithubID looks up an Installation by GitHub's numeric id.
func (s *Store) GetInstallationByGithubID(ctx context.Context, installationID int64) (*domain.Installation, error) {
	var row domain.Installation
	if err := s.db.WithContext(ctx).Where("installation_id = ?", installationID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}
	return &row, nil
}
