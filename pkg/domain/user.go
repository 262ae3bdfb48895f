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

package domain

// UserType mirrors GitHub's actor type enum.
type UserType string

const (
	UserTypeUser UserType = "User"
	UserTypeBot  UserType = "Bot"
	UserTypeOrg  UserType = "Organization"
)

// User is upserted by githubUserId before any domain row links to it by
// numeric id (§4.3 "User upsert").
type User struct {
	Base

	GithubUserID int64  `gorm:"uniqueIndex"`
	Login        string `gorm:"index"`
	AvatarURL    string
	Type         UserType

	// OAuthAccessToken is the connecting user's GitHub OAuth token, used by
	// the bootstrap workflow's token resolver in preference to an
	// installation token (§4.4 "token resolution"). Empty when the user has
	// never connected a repository with their own credentials.
	OAuthAccessToken string `gorm:"column:oauth_access_token"`
}

func (User) TableName() string { return "users" }
