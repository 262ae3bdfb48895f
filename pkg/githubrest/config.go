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

// Package githubrest wraps the GitHub App and REST client used by the
// bootstrap workflow and webhook registration, adapted from the teacher's
// GitHub App client wrapper. At least one of GitHubPrivateKeyKMSKeyID,
// GitHubPrivateKeySecretID, or GitHubPrivateKey must be set; when several
// are set, New uses the first of them in that order.
package githubrest

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/sethvargo/go-envconfig"
)

// Config holds the GitHub App credentials and endpoint overrides.
type Config struct {
	GitHubAppID               string `env:"GITHUB_APP_ID,required"`
	GitHubPrivateKeyKMSKeyID  string `env:"GITHUB_PRIVATE_KEY_KMS_KEY_ID"`
	GitHubPrivateKeySecretID  string `env:"GITHUB_PRIVATE_KEY_SECRET_ID"`
	GitHubPrivateKey          string `env:"GITHUB_PRIVATE_KEY"`
	GitHubEnterpriseServerURL string `env:"GITHUB_ENTERPRISE_SERVER_URL"`
}

// Validate validates the config after load.
func (c *Config) Validate() error {
	if c.GitHubAppID == "" {
		return fmt.Errorf("GITHUB_APP_ID is required")
	}
	if c.GitHubPrivateKeyKMSKeyID == "" && c.GitHubPrivateKeySecretID == "" && c.GitHubPrivateKey == "" {
		return fmt.Errorf("one of GITHUB_PRIVATE_KEY_KMS_KEY_ID, GITHUB_PRIVATE_KEY_SECRET_ID, or GITHUB_PRIVATE_KEY is required")
	}
	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse github app config: %w", err)
	}
	return &cfg, nil
}
