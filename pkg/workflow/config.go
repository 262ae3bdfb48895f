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

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/sethvargo/go-envconfig"
)

// Config defines the set of environment variables required to run the
// bootstrap workflow.
type Config struct {
	// MaxPerInstallation bounds concurrent running SyncJobs per installation
	// (§4.4, MAX_PER_INSTALLATION).
	MaxPerInstallation int `env:"BOOTSTRAP_MAX_PER_INSTALLATION,default=25"`

	// ChunkPageSize is how many REST pages one chunked step processes before
	// yielding and journaling progress (§4.4 step 3: "~10 API pages").
	ChunkPageSize int `env:"BOOTSTRAP_CHUNK_PAGE_SIZE,default=10"`

	// CheckRunShaChunkSize bounds how many head SHAs are resolved per
	// check-runs request batch (§4.4 step 6).
	CheckRunShaChunkSize int `env:"BOOTSTRAP_CHECK_RUN_SHA_CHUNK_SIZE,default=100"`

	// CommitHistoryLimit is how many commits on the default branch are
	// fetched (§4.4 step 5: "last N commits").
	CommitHistoryLimit int `env:"BOOTSTRAP_COMMIT_HISTORY_LIMIT,default=250"`

	StepBackoffBaseMs int64 `env:"BOOTSTRAP_STEP_BACKOFF_BASE_MS,default=5000"`
	StepBackoffMaxMs  int64 `env:"BOOTSTRAP_STEP_BACKOFF_MAX_MS,default=300000"`
	StepMaxRetries    int   `env:"BOOTSTRAP_STEP_MAX_RETRIES,default=8"`

	DrainInterval time.Duration `env:"BOOTSTRAP_DRAIN_INTERVAL,default=10s"`
	RetryInterval time.Duration `env:"BOOTSTRAP_RETRY_INTERVAL,default=30s"`

	GitHubAPIBaseURL string `env:"GITHUB_API_BASE_URL,default=https://api.github.com"`
}

// Validate validates the config after load.
func (c *Config) Validate() error {
	if c.MaxPerInstallation < 1 {
		return fmt.Errorf("BOOTSTRAP_MAX_PER_INSTALLATION must be at least 1")
	}
	if c.ChunkPageSize < 1 {
		return fmt.Errorf("BOOTSTRAP_CHUNK_PAGE_SIZE must be at least 1")
	}
	if c.CheckRunShaChunkSize < 1 {
		return fmt.Errorf("BOOTSTRAP_CHECK_RUN_SHA_CHUNK_SIZE must be at least 1")
	}
	if c.StepBackoffMaxMs < c.StepBackoffBaseMs {
		return fmt.Errorf("BOOTSTRAP_STEP_BACKOFF_MAX_MS must be >= BOOTSTRAP_STEP_BACKOFF_BASE_MS")
	}
	if c.StepMaxRetries < 1 {
		return fmt.Errorf("BOOTSTRAP_STEP_MAX_RETRIES must be at least 1")
	}
	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap workflow config: %w", err)
	}
	return &cfg, nil
}
