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

// Package main is the main entrypoint to the Bootstrap Workflow (§4.4). It
// drains queued SyncJobs up to the per-installation concurrency gate and
// runs the retry sweep for jobs backed off after a failed step.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"

	"github.com/ghmirror/ghmirror/pkg/githubrest"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/workflow"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer done()

	logger := logging.NewFromEnv("")
	ctx = logging.WithLogger(ctx, logger)

	if err := realMain(ctx); err != nil {
		done()
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	cfg, err := NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	workflowCfg, err := workflow.NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create workflow config: %w", err)
	}

	githubCfg, err := githubrest.NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create github app config: %w", err)
	}

	store, err := gormstore.New(ctx, gormstore.Config{
		Backend: gormstore.Backend(cfg.DatabaseBackend),
		DSN:     cfg.DatabaseDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	ghClient, err := githubrest.New(ctx, githubCfg)
	if err != nil {
		return fmt.Errorf("failed to create github client: %w", err)
	}
	tokens := githubrest.NewTokenResolver(ghClient, store)

	runner := workflow.New(store, ghClient, tokens, workflowCfg, cfg.WebhookURL, cfg.WebhookSecret)

	scheduler, err := workflow.NewScheduler(ctx, runner, workflowCfg)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	logger.InfoContext(ctx, "bootstrap workflow scheduler started",
		"drain_interval", workflowCfg.DrainInterval,
		"retry_interval", workflowCfg.RetryInterval)

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())

	server, err := serving.New(cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create serving infrastructure: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartHTTPHandler(ctx, mux)
	}()

	select {
	case <-ctx.Done():
		scheduler.Stop(context.Background())
		return nil
	case err := <-errCh:
		scheduler.Stop(context.Background())
		return err
	}
}
