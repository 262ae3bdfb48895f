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

// Package rawevent implements the Raw Event Store and Retry Controller
// (§4.2): durable storage of every inbound webhook delivery plus the
// backoff-driven sweep that retries dispatch failures and promotes
// exhausted events to the dead letter table.
package rawevent

import (
	"context"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/sethvargo/go-envconfig"
)

// Config defines the set of environment variables required to run the
// retry sweep.
type Config struct {
	// MaxAttempts bounds how many times dispatch is retried before an event
	// moves from "retry" to "failed" (§4.2).
	MaxAttempts int `env:"RAW_EVENT_MAX_ATTEMPTS,default=5"`

	// BackoffBaseMs and BackoffMaxMs parameterize the exponential backoff
	// applied between retry attempts.
	BackoffBaseMs int64 `env:"RAW_EVENT_BACKOFF_BASE_MS,default=60000"`
	BackoffMaxMs  int64 `env:"RAW_EVENT_BACKOFF_MAX_MS,default=1800000"`

	// DeadLetterAgeMs is how long a "failed" event sits before the sweep
	// promotes it to the dead letter table (§4.2).
	DeadLetterAgeMs int64 `env:"RAW_EVENT_DEAD_LETTER_AGE_MS,default=86400000"`

	// RetrySweepInterval and DeadLetterSweepInterval drive the two cron
	// schedules described in §4.2.
	RetrySweepInterval      time.Duration `env:"RAW_EVENT_RETRY_SWEEP_INTERVAL,default=30s"`
	DeadLetterSweepInterval time.Duration `env:"RAW_EVENT_DEAD_LETTER_SWEEP_INTERVAL,default=60s"`

	SweepBatchSize int `env:"RAW_EVENT_SWEEP_BATCH_SIZE,default=100"`

	// DatabaseDSN and DatabaseBackend configure the document-store
	// connection used when the retry controller runs as its own process.
	DatabaseDSN     string `env:"DATABASE_DSN,required"`
	DatabaseBackend string `env:"DATABASE_BACKEND,default=sqlite"`
}

// Validate validates the config after load.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("RAW_EVENT_MAX_ATTEMPTS must be at least 1")
	}
	if c.BackoffBaseMs < 1 {
		return fmt.Errorf("RAW_EVENT_BACKOFF_BASE_MS must be positive")
	}
	if c.BackoffMaxMs < c.BackoffBaseMs {
		return fmt.Errorf("RAW_EVENT_BACKOFF_MAX_MS must be >= RAW_EVENT_BACKOFF_BASE_MS")
	}
	if c.DeadLetterAgeMs < 1 {
		return fmt.Errorf("RAW_EVENT_DEAD_LETTER_AGE_MS must be positive")
	}
	if c.SweepBatchSize < 1 {
		return fmt.Errorf("RAW_EVENT_SWEEP_BATCH_SIZE must be at least 1")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse raw event config: %w", err)
	}
	return &cfg, nil
}
