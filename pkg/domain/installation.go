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

// AccountType distinguishes a GitHub App installation's owning account.
type AccountType string

const (
	AccountTypeUser         AccountType = "User"
	AccountTypeOrganization AccountType = "Organization"
)

// Installation is one connected GitHub account (App installation, or the
// opaque zero-value used in repo-webhook-only mode, see the Open Question
// recorded in DESIGN.md).
type Installation struct {
	Base

	InstallationID int64       `gorm:"uniqueIndex"`
	AccountID      int64       `gorm:"index"`
	AccountLogin   string
	AccountType    AccountType

	// RepositorySelectionDigest and PermissionsDigest are opaque hashes of
	// the installation's repository_selection/permissions payloads, used to
	// detect drift without storing the full GitHub response.
	RepositorySelectionDigest string
	PermissionsDigest         string
}

// TableName pins the table name instead of relying on gorm's pluralization,
// matching the explicit naming the document-store contract expects.
func (Installation) TableName() string { return "installations" }
