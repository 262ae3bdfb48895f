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

// Package main is the main entrypoint to the Event Dispatcher & Domain
// Writer (§4.3). It pulls delivery ids the Webhook Gateway scheduled onto
// the dispatch topic and re-attempts them through the Raw Event Store's
// retry machinery, giving a zero-added-delay path alongside the periodic
// retry sweep.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"google.golang.org/api/option"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"

	"github.com/ghmirror/ghmirror/pkg/dispatcher"
	"github.com/ghmirror/ghmirror/pkg/projection"
	"github.com/ghmirror/ghmirror/pkg/rawevent"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
)

const userAgent = "ghmirror/dispatcher"

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

	sub, err := dispatcher.NewSubscriber(ctx, cfg.ProjectID, cfg.SubscriptionID, controller,
		option.WithUserAgent(userAgent))
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer func() {
		if err := sub.Shutdown(); err != nil {
			logger.ErrorContext(ctx, "failed to shut down subscriber", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- sub.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())

	server, err := serving.New(cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create serving infrastructure: %w", err)
	}

	go func() {
		if err := server.StartHTTPHandler(ctx, mux); err != nil {
			logger.ErrorContext(ctx, "health check server stopped", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
