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

import "time"

// Visibility mirrors GitHub's repository visibility enum.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityInternal Visibility = "internal"
)

// Repository is the mirrored repo row. FullName is unique (invariant 2
// analog for repositories — one row per upstream repo).
type Repository struct {
	Base

	GithubRepoID      int64  `gorm:"uniqueIndex"`
	InstallationID    int64  `gorm:"index"`
	OwnerLogin        string `gorm:"index:idx_owner_name,unique"`
	Name              string `gorm:"index:idx_owner_name,unique"`
	FullName          string `gorm:"uniqueIndex"`
	DefaultBranch     string
	Private           bool
	Visibility        Visibility
	ConnectedByUserID *int64
	StargazersCount   *int

	// Stub is true when this row was auto-created by the dispatcher for a
	// webhook that arrived before bootstrap hydrated real metadata (§4.3
	// auto-discovery). A reconcile SyncJob clears it.
	Stub bool

	CachedAt        time.Time
	GithubUpdatedAt time.Time
}

func (Repository) TableName() string { return "repositories" }
