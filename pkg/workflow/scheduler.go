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

	"github.com/robfig/cron/v3"

	"github.com/abcxyz/pkg/logging"
)

// Scheduler runs the runner's drain and retry sweeps on fixed intervals,
// for a long-lived bootstrap worker deployment.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
}

// NewScheduler wires runner's sweeps to cron entries at the intervals in
// cfg (DrainInterval, RetryInterval).
func NewScheduler(ctx context.Context, runner *Runner, cfg *Config) (*Scheduler, error) {
	logger := logging.FromContext(ctx)
	c := cron.New(cron.WithSeconds())

	drainSpec := fmt.Sprintf("@every %s", cfg.DrainInterval)
	if _, err := c.AddFunc(drainSpec, func() {
		if err := runner.DrainAll(ctx); err != nil {
			logger.ErrorContext(ctx, "drain sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule drain sweep: %w", err)
	}

	retrySpec := fmt.Sprintf("@every %s", cfg.RetryInterval)
	if _, err := c.AddFunc(retrySpec, func() {
		if err := runner.RunRetrySweep(ctx); err != nil {
			logger.ErrorContext(ctx, "retry sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule retry sweep: %w", err)
	}

	return &Scheduler{runner: runner, cron: c}, nil
}

// Start begins running the scheduled sweeps in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks until any in-flight sweep completes, then stops scheduling.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}
