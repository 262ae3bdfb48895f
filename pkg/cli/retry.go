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

package cli

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/ghmirror/ghmirror/pkg/dispatcher"
	"github.com/ghmirror/ghmirror/pkg/projection"
	"github.com/ghmirror/ghmirror/pkg/rawevent"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

var _ cli.Command = (*RetrySweepCommand)(nil)

// retrySweepStore is the full persistence contract the retry sweep's own
// dispatch path needs: the Raw Event Store plus the Event Dispatcher &
// Domain Writer and Projection & Activity Builder it re-invokes on retry.
type retrySweepStore interface {
	rawevent.Store
	dispatcher.Store
	projection.Store
}

// RetrySweepCommand runs the Raw Event Store's retry and dead letter
// sweeps (§4.2) on a long-lived cron schedule.
type RetrySweepCommand struct {
	cli.BaseCommand

	cfg *rawevent.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option

	// testStore is only used for testing.
	testStore retrySweepStore
}

func (c *RetrySweepCommand) Desc() string {
	return `Start the raw event retry and dead letter sweep scheduler`
}

func (c *RetrySweepCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
  Start the raw event retry and dead letter sweep scheduler.
`
}

func (c *RetrySweepCommand) Flags() *cli.FlagSet {
	c.cfg = &rawevent.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)

	f := set.NewSection("RAW EVENT RETRY OPTIONS")
	f.StringVar(&cli.StringVar{
		Name:   "database-dsn",
		Target: &c.cfg.DatabaseDSN,
		EnvVar: "DATABASE_DSN",
		Usage:  `DSN for the document store backing raw event storage.`,
	})
	f.StringVar(&cli.StringVar{
		Name:    "database-backend",
		Target:  &c.cfg.DatabaseBackend,
		EnvVar:  "DATABASE_BACKEND",
		Default: "sqlite",
		Usage:   `Document store backend: sqlite or mysql.`,
	})

	return set
}

func (c *RetrySweepCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "retry sweep scheduler starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store := c.testStore
	if store == nil {
		db, err := gormstore.New(ctx, gormstore.Config{
			Backend: gormstore.Backend(c.cfg.DatabaseBackend),
			DSN:     c.cfg.DatabaseDSN,
		})
		if err != nil {
			return fmt.Errorf("failed to open document store: %w", err)
		}
		store = db
	}

	disp := dispatcher.New(store, projection.New(store))
	controller := rawevent.New(store, c.cfg, disp.Dispatch)

	scheduler, err := rawevent.NewScheduler(ctx, controller, c.cfg)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	scheduler.Start()
	<-ctx.Done()
	scheduler.Stop(context.Background())
	return nil
}
