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

	"google.golang.org/api/option"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/sethvargo/go-envconfig"

	"github.com/ghmirror/ghmirror/pkg/dispatcher"
	"github.com/ghmirror/ghmirror/pkg/projection"
	"github.com/ghmirror/ghmirror/pkg/rawevent"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

var _ cli.Command = (*DispatcherServerCommand)(nil)

// dispatcherConfig defines the environment variables required to run the
// Event Dispatcher's pub/sub subscriber process.
type dispatcherConfig struct {
	ProjectID       string `env:"PROJECT_ID,required"`
	SubscriptionID  string `env:"DISPATCH_SUBSCRIPTION_ID,required"`
	DatabaseDSN     string `env:"DATABASE_DSN,required"`
	DatabaseBackend string `env:"DATABASE_BACKEND,default=sqlite"`
}

func (cfg *dispatcherConfig) Validate() error {
	if cfg.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID is required")
	}
	if cfg.SubscriptionID == "" {
		return fmt.Errorf("DISPATCH_SUBSCRIPTION_ID is required")
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	return nil
}

// DispatcherServerCommand runs the Event Dispatcher & Domain Writer as a
// pub/sub subscriber (§4.3), consuming deliveries the Webhook Gateway
// scheduled with zero added delay.
type DispatcherServerCommand struct {
	cli.BaseCommand

	cfg *dispatcherConfig

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option
}

func (c *DispatcherServerCommand) Desc() string {
	return `Start the event dispatcher subscriber`
}

func (c *DispatcherServerCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
  Start the event dispatcher pub/sub subscriber.
`
}

func (c *DispatcherServerCommand) Flags() *cli.FlagSet {
	c.cfg = &dispatcherConfig{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)

	f := set.NewSection("EVENT DISPATCHER OPTIONS")
	f.StringVar(&cli.StringVar{
		Name:   "project-id",
		Target: &c.cfg.ProjectID,
		EnvVar: "PROJECT_ID",
		Usage:  `Google Cloud project ID.`,
	})
	f.StringVar(&cli.StringVar{
		Name:   "dispatch-subscription-id",
		Target: &c.cfg.SubscriptionID,
		EnvVar: "DISPATCH_SUBSCRIPTION_ID",
		Usage:  `Pub/Sub subscription ID the dispatcher pulls deliveries from.`,
	})
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

func (c *DispatcherServerCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "dispatcher subscriber starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := gormstore.New(ctx, gormstore.Config{
		Backend: gormstore.Backend(c.cfg.DatabaseBackend),
		DSN:     c.cfg.DatabaseDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	var rawEventCfg rawevent.Config
	if err := cfgloader.Load(ctx, &rawEventCfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return fmt.Errorf("failed to parse raw event config: %w", err)
	}

	disp := dispatcher.New(store, projection.New(store))
	controller := rawevent.New(store, &rawEventCfg, disp.Dispatch)

	sub, err := dispatcher.NewSubscriber(ctx, c.cfg.ProjectID, c.cfg.SubscriptionID, controller,
		option.WithUserAgent(fmt.Sprintf("ghmirror:dispatcher/%s", version.Version)))
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer func() {
		if err := sub.Shutdown(); err != nil {
			logger.ErrorContext(ctx, "failed to shut down subscriber", "error", err)
		}
	}()

	return sub.Run(ctx)
}
