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

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/sethvargo/go-envconfig"

	"github.com/ghmirror/ghmirror/pkg/githubrest"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
	"github.com/ghmirror/ghmirror/pkg/workflow"
)

var _ cli.Command = (*BootstrapSchedulerCommand)(nil)

// bootstrapConfig holds the bits of configuration specific to wiring the
// Bootstrap Workflow (§4.4) that aren't already covered by workflow.Config.
type bootstrapConfig struct {
	DatabaseDSN     string `env:"DATABASE_DSN,required"`
	DatabaseBackend string `env:"DATABASE_BACKEND,default=sqlite"`
	WebhookURL      string `env:"GITHUB_WEBHOOK_URL,required"`
	WebhookSecret   string `env:"GITHUB_WEBHOOK_SECRET,required"`
}

func (cfg *bootstrapConfig) Validate() error {
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_URL is required")
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	return nil
}

// BootstrapSchedulerCommand runs the Bootstrap Workflow's drain and retry
// sweeps (§4.4) on a long-lived cron schedule.
type BootstrapSchedulerCommand struct {
	cli.BaseCommand

	cfg *bootstrapConfig

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option
}

func (c *BootstrapSchedulerCommand) Desc() string {
	return `Start the bootstrap workflow scheduler`
}

func (c *BootstrapSchedulerCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
  Start the bootstrap workflow drain and retry scheduler.
`
}

func (c *BootstrapSchedulerCommand) Flags() *cli.FlagSet {
	c.cfg = &bootstrapConfig{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)

	f := set.NewSection("BOOTSTRAP WORKFLOW OPTIONS")
	f.StringVar(&cli.StringVar{
		Name:   "database-dsn",
		Target: &c.cfg.DatabaseDSN,
		EnvVar: "DATABASE_DSN",
		Usage:  `DSN for the document store backing the mirrored domain.`,
	})
	f.StringVar(&cli.StringVar{
		Name:    "database-backend",
		Target:  &c.cfg.DatabaseBackend,
		EnvVar:  "DATABASE_BACKEND",
		Default: "sqlite",
		Usage:   `Document store backend: sqlite or mysql.`,
	})
	f.StringVar(&cli.StringVar{
		Name:   "github-webhook-url",
		Target: &c.cfg.WebhookURL,
		EnvVar: "GITHUB_WEBHOOK_URL",
		Usage:  `Webhook URL registered against newly bootstrapped repositories.`,
	})
	f.StringVar(&cli.StringVar{
		Name:   "github-webhook-secret",
		Target: &c.cfg.WebhookSecret,
		EnvVar: "GITHUB_WEBHOOK_SECRET",
		Usage:  `Webhook secret registered against newly bootstrapped repositories.`,
	})

	return set
}

func (c *BootstrapSchedulerCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "bootstrap scheduler starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var workflowCfg workflow.Config
	if err := cfgloader.Load(ctx, &workflowCfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return fmt.Errorf("failed to parse workflow config: %w", err)
	}

	var githubCfg githubrest.Config
	if err := cfgloader.Load(ctx, &githubCfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return fmt.Errorf("failed to parse github app config: %w", err)
	}

	store, err := gormstore.New(ctx, gormstore.Config{
		Backend: gormstore.Backend(c.cfg.DatabaseBackend),
		DSN:     c.cfg.DatabaseDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	ghClient, err := githubrest.New(ctx, &githubCfg)
	if err != nil {
		return fmt.Errorf("failed to create github client: %w", err)
	}
	tokens := githubrest.NewTokenResolver(ghClient, store)

	runner := workflow.New(store, ghClient, tokens, &workflowCfg, c.cfg.WebhookURL, c.cfg.WebhookSecret)

	scheduler, err := workflow.NewScheduler(ctx, runner, &workflowCfg)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	scheduler.Start()
	<-ctx.Done()
	scheduler.Stop(context.Background())
	return nil
}
