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
)

// UpsertUser creates or refreshes a User keyed by GitHub's numeric user id,
// the "user upsert before link" step required by §4.3 before any domain row
// may reference it.
func (s *Store) UpsertUser(ctx context.Context, githubUserID int64, login, avatarURL string, typ domain.UserType) (*domain.User, error) {
	var existing domain.User
	err := s.db.WithContext(ctx).Where("github_user_id = ?", githubUserID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Login == login && existing.AvatarURL == avatarURL && existing.Type == typ {
			return &existing, nil
		}
		existing.Login = login
		existing.AvatarURL = avatarURL
		existing.Type = typ
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		u := &domain.User{GithubUserID: githubUserID, Login: login, AvatarURL: avatarURL, Type: typ}
		if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
			var raced domain.User
			if lookupErr := s.db.WithContext(ctx).Where("github_user_id = ?", githubUserID).First(&raced).Error; lookupErr == nil {
				return &raced, nil
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
}

// GetUserByGithubID looks up a User by GitHub's numeric id.
func (s *Store) GetUserByGithubID(ctx context.Context, githubUserID int64) (*domain.User, error) {
	var row domain.User
	if err := s.db.WithContext(ctx).Where("github_user_id = ?", githubUserID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &row, nil
}

// SetUserOAuthToken records the OAuth token a connecting user authorized
// the app with, consulted by the bootstrap workflow's token resolver.
func (s *Store) SetUserOAuthToken(ctx context.Context, githubUserID int64, token string) error {
	if err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("github_user_id = ?", githubUserID).
		Update("oauth_access_token", token).Error; err != nil {
		return fmt.Errorf("failed to set user oauth token: %w", err)
	}
	return nil
}
