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
	"errors"
	"testing"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

type fakeMinter struct {
	token string
	err   error
}

func (f *fakeMinter) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeUserStore struct {
	users map[int64]*domain.User
}

func (f *fakeUserStore) GetUserByGithubID(ctx context.Context, githubUserID int64) (*domain.User, error) {
	u, ok := f.users[githubUserID]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func TestTokenResolver_ResolveToken(t *testing.T) {
	t.Parallel()

	connectingUserID := int64(55)

	cases := []struct {
		name    string
		repo    *domain.Repository
		users   map[int64]*domain.User
		minter  *fakeMinter
		want    string
		wantErr bool
	}{
		{
			name: "prefers connecting user oauth token",
			repo: &domain.Repository{ConnectedByUserID: &connectingUserID, InstallationID: 9},
			users: map[int64]*domain.User{
				55: {OAuthAccessToken: "user-token"},
			},
			minter: &fakeMinter{token: "install-token"},
			want:   "user-token",
		},
		{
			name: "falls back to installation token when user has none",
			repo: &domain.Repository{ConnectedByUserID: &connectingUserID, InstallationID: 9},
			users: map[int64]*domain.User{
				55: {OAuthAccessToken: ""},
			},
			minter: &fakeMinter{token: "install-token"},
			want:   "install-token",
		},
		{
			name:   "no connecting user uses installation token",
			repo:   &domain.Repository{InstallationID: 9},
			users:  map[int64]*domain.User{},
			minter: &fakeMinter{token: "install-token"},
			want:   "install-token",
		},
		{
			name:    "installation token error propagates",
			repo:    &domain.Repository{InstallationID: 9},
			users:   map[int64]*domain.User{},
			minter:  &fakeMinter{err: errors.New("kms unavailable")},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewTokenResolver(tc.minter, &fakeUserStore{users: tc.users})
			got, err := r.ResolveToken(context.Background(), tc.repo)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ResolveToken() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if got != tc.want {
				t.Errorf("ResolveToken() = %q, want %q", got, tc.want)
			}
		})
	}
}
