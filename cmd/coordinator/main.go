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

// Package main is the main entrypoint to the Optimistic Write Coordinator's
// HTTP surface (§4.6): createIssue, createComment, updateIssueState,
// mergePullRequest, updatePullRequestBranch, submitPrReview, updateLabels,
// updateAssignees.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"
	"github.com/sethvargo/go-envconfig"

	"github.com/ghmirror/ghmirror/pkg/coordinator"
	"github.com/ghmirror/ghmirror/pkg/githubrest"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
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
	cfg, err := coordinator.NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	var githubCfg githubrest.Config
	if err := cfgloader.Load(ctx, &githubCfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return fmt.Errorf("failed to create github app config: %w", err)
	}

	store, err := gormstore.New(ctx, gormstore.Config{
		Backend: gormstore.Backend(cfg.DatabaseBackend),
		DSN:     cfg.DatabaseDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	ghClient, err := githubrest.New(ctx, &githubCfg)
	if err != nil {
		return fmt.Errorf("failed to create github client: %w", err)
	}
	tokens := githubrest.NewTokenResolver(ghClient, store)

	coordinatorServer, err := coordinator.NewServer(ctx, cfg, ghClient, tokens, &coordinator.ClientOptions{StoreOverride: store})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	server, err := serving.New(cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create serving infrastructure: %w", err)
	}
	return server.StartHTTPHandler(ctx, coordinatorServer.Routes(ctx))
}
