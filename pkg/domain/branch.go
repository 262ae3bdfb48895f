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

// Branch is keyed by (repositoryId, name) and deleted on a "delete"
// ref_type=branch event (§4.3).
type Branch struct {
	Base

	RepositoryID string `gorm:"index:idx_branch_repo_name,unique"`
	Name         string `gorm:"index:idx_branch_repo_name,unique"`
	HeadSha      string
	Protected    bool
}

func (Branch) TableName() string { return "branches" }
