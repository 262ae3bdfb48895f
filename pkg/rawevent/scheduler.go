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

package rawevent

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/abcxyz/pkg/logging"
)

// Scheduler runs the retry controller's two sweeps on fixed intervals for
// a long-lived retry service deployment, as an alternative to invoking
// RunRetrySweep/RunDeadLetterSweep from an externally-scheduled Cloud Run
// Job.
type Scheduler struct {
	controller *Controller
	cron       *cron.Cron
}

// NewScheduler wires controller's sweeps to cron entries at the intervals
// in cfg (§4.2: 30s retry sweep, 60s dead letter sweep).
func NewScheduler(ctx context.Context, controller *Controller, cfg *Config) (*Scheduler, error) {
	logger := logging.FromContext(ctx)
	c := cron.New(cron.WithSeconds())

	retrySpec := fmt.Sprintf("@every %s", cfg.RetrySweepInterval)
	if _, err := c.AddFunc(retrySpec, func() {
		if err := controller.RunRetrySweep(ctx); err != nil {
			logger.ErrorContext(ctx, "retry sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule retry sweep: %w", err)
	}

	deadLetterSpec := fmt.Sprintf("@every %s", cfg.DeadLetterSweepInterval)
	if _, err := c.AddFunc(deadLetterSpec, func() {
		if err := controller.RunDeadLetterSweep(ctx); err != nil {
			logger.ErrorContext(ctx, "dead letter sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule dead letter sweep: %w", err)
	}

	return &Scheduler{controller: controller, cron: c}, nil
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

// ExecuteSweepOnce runs both sweeps a single time, for deployment as a
// periodically-invoked Cloud Run Job rather than a long-lived cron daemon
// — mirroring the ExecuteJob entrypoint style used elsewhere in this
// module.
func ExecuteSweepOnce(ctx context.Context, controller *Controller) error {
	if err := controller.RunRetrySweep(ctx); err != nil {
		return fmt.Errorf("retry sweep failed: %w", err)
	}
	if err := controller.RunDeadLetterSweep(ctx); err != nil {
		return fmt.Errorf("dead letter sweep failed: %w", err)
	}
	return nil
}
