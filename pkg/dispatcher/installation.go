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

package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/go-github/v61/github"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

func (d *Dispatcher) handleInstallation(ctx context.Context, e *github.InstallationEvent) error {
	acct := e.GetInstallation().GetAccount()
	typ := domain.AccountTypeUser
	if acct.GetType() == "Organization" {
		typ = domain.AccountTypeOrganization
	}

	in := &domain.Installation{
		InstallationID: e.GetInstallation().GetID(),
		AccountID:      acct.GetID(),
		AccountLogin:   acct.GetLogin(),
		AccountType:    typ,
	}
	if _, err := d.store.UpsertInstallation(ctx, in); err != nil {
		return fmt.Errorf("failed to upsert installation: %w", err)
	}

	if e.GetAction() == "created" {
		for _, r := range e.Repositories {
			if _, err := d.resolveRepositoryByFields(ctx, r.GetID(), r.GetFullName(), acct.GetLogin(), r.GetName(), e.GetInstallation().GetID()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) handleInstallationRepositories(ctx context.Context, e *github.InstallationRepositoriesEvent) error {
	acct := e.GetInstallation().GetAccount()
	for _, r := range e.RepositoriesAdded {
		if _, err := d.resolveRepositoryByFields(ctx, r.GetID(), r.GetFullName(), acct.GetLogin(), r.GetName(), e.GetInstallation().GetID()); err != nil {
			return err
		}
	}
	return nil
}
