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

// Package main is the main entrypoint to the Raw Event Store's retry
// controller. It runs the retry and dead letter sweeps (§4.2) on a
// long-lived cron schedule; pass -once to run both sweeps a single time
// and exit, for deployment as a periodically-invoked Cloud Run Job
// instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/dispatcher"
	"github.com/ghmirror/ghmirror/pkg/projection"
	"github.com/ghmirror/ghmirror/pkg/rawevent"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer done()

	logger := logging.NewFromEnv("")
	ctx = logging.WithLogger(ctx, logger)

	once := flag.Bool("once", false, "run the retry and dead letter sweeps a single time and exit")
	flag.Parse()

	if err := realMain(ctx, *once); err != nil {
		done()
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context, once bool) error {
	logger := logging.FromContext(ctx)

	cfg, err := rawevent.NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	store, err := gormstore.New(ctx, gormstore.Config{
		Backend: gormstore.Backend(cfg.DatabaseBackend),
		DSN:     cfg.DatabaseDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	disp := dispatcher.New(store, projection.New(store))
	controller := rawevent.New(store, cfg, disp.Dispatch)

	if once {
		return rawevent.ExecuteSweepOnce(ctx, controller)
	}

	scheduler, err := rawevent.NewScheduler(ctx, controller, cfg)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	logger.InfoContext(ctx, "retry controller scheduler started",
		"retry_sweep_interval", cfg.RetrySweepInterval,
		"dead_letter_sweep_interval", cfg.DeadLetterSweepInterval)

	<-ctx.Done()
	scheduler.Stop(context.Background())
	return nil
}
