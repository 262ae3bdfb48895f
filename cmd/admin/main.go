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

// Package main is the main entrypoint to the operator-facing admin
// surface (§7): listing failed raw events, listing dead letters,
// replay-one, retry-all-failed, and reconcile-repo.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"

	"github.com/ghmirror/ghmirror/pkg/admin"
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

	if err := realMain(ctx); err != nil {
		done()
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context) error {
	cfg, err := admin.NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	rawEventCfg, err := rawevent.NewConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create raw event config: %w", err)
	}

	store, err := gormstore.New(ctx, gormstore.Config{
		Backend: gormstore.Backend(cfg.DatabaseBackend),
		DSN:     cfg.DatabaseDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	disp := dispatcher.New(store, projection.New(store))
	controller := rawevent.New(store, rawEventCfg, disp.Dispatch)

	adminServer, err := admin.NewServer(ctx, cfg, controller, &admin.ClientOptions{StoreOverride: store})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	server, err := serving.New(cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create serving infrastructure: %w", err)
	}
	return server.StartHTTPHandler(ctx, adminServer.Routes(ctx))
}
