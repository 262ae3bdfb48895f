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

// Commit is keyed by (repositoryId, sha); push events and the bootstrap
// commit-fetch step both upsert into this table.
type Commit struct {
	Base

	RepositoryID    string `gorm:"index:idx_commit_repo_sha,unique"`
	Sha             string `gorm:"index:idx_commit_repo_sha,unique"`
	MessageHeadline string
	AuthoredAt      *time.Time
	CommittedAt     *time.Time
}

func (Commit) TableName() string { return "commits" }
