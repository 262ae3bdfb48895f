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

// ActivityFeed is an append-only projection row (§4.5, invariant 7). Never
// updated or deleted once written.
type ActivityFeed struct {
	Base

	RepositoryID string `gorm:"index:idx_activity_repo_created"`
	CreatedAtMs  int64  `gorm:"index:idx_activity_repo_created"`
	ActivityType string
	Title        string
	ActorLogin   string
	EntityNumber *int
}

func (ActivityFeed) TableName() string { return "activity_feed" }

// RepoOverview is the O(log n) counters projection for one repository,
// recomputed via indexed counter updates rather than table scans (§4.5, §9).
type RepoOverview struct {
	RepositoryID     string `gorm:"primaryKey"`
	OpenPrCount      int
	OpenIssueCount   int
	FailingCheckCount int
	LastPushAtMs     int64
}

func (RepoOverview) TableName() string { return "repo_overviews" }
