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

package githubrest

import (
	"context"
	"fmt"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// UserStore is the lookup the token resolver needs to find a connecting
// user's OAuth token.
type UserStore interface {
	GetUserByGithubID(ctx context.Context, githubUserID int64) (*domain.User, error)
}

// installationTokenMinter mints a short-lived installation token. *Client
// satisfies this; it is its own interface so tests can fake it without
// standing up a real App.
type installationTokenMinter interface {
	InstallationToken(ctx context.Context, installationID int64) (string, error)
}

// TokenResolver implements workflow.TokenResolver: it prefers the
// connecting user's OAuth token and falls back to an installation token
// (§4.4 "token resolution"). Neither token is ever persisted in the
// SyncJob journal.
type TokenResolver struct {
	client installationTokenMinter
	users  UserStore
}

// NewTokenResolver builds a TokenResolver over client and users.
func NewTokenResolver(client installationTokenMinter, users UserStore) *TokenResolver {
	return &TokenResolver{client: client, users: users}
}

// ResolveToken resolves a token for repo.
func (t *TokenResolver) ResolveToken(ctx context.Context, repo *domain.Repository) (string, error) {
	if repo.ConnectedByUserID != nil {
		user, err := t.users.GetUserByGithubID(ctx, *repo.ConnectedByUserID)
		if err != nil {
			return "", fmt.Errorf("failed to look up connecting user: %w", err)
		}
		if user.OAuthAccessToken != "" {
			return user.OAuthAccessToken, nil
		}
	}

	token, err := t.client.InstallationToken(ctx, repo.InstallationID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve installation token: %w", err)
	}
	return token, nil
}
