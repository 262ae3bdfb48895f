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

package webhook

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
	"github.com/sethvargo/go-envconfig"
)

// Config defines the set of environment variables required to run the
// Webhook Gateway (§4.1).
type Config struct {
	Port                string `env:"PORT,default=8080"`
	ProjectID           string `env:"PROJECT_ID,required"`
	GitHubWebhookSecret string `env:"GITHUB_WEBHOOK_SECRET,required"`

	// DatabaseDSN and DatabaseBackend configure the document-store
	// connection the gateway writes raw events into.
	DatabaseDSN     string `env:"DATABASE_DSN,required"`
	DatabaseBackend string `env:"DATABASE_BACKEND,default=sqlite"`

	// DispatchTopicID names the pub/sub topic the gateway schedules the
	// dispatcher on with zero added delay (§4.1).
	DispatchTopicID string `env:"DISPATCH_TOPIC_ID,required"`
}

// Validate validates the config after load.
func (cfg *Config) Validate() error {
	if cfg.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID is required")
	}
	if cfg.GitHubWebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if cfg.DispatchTopicID == "" {
		return fmt.Errorf("DISPATCH_TOPIC_ID is required")
	}
	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse webhook server config: %w", err)
	}
	return &cfg, nil
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("WEBHOOK GATEWAY OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "8080",
		Usage:   `The port the webhook gateway listens on.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "project-id",
		Target: &cfg.ProjectID,
		EnvVar: "PROJECT_ID",
		Usage:  `Google Cloud project ID.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-webhook-secret",
		Target: &cfg.GitHubWebhookSecret,
		EnvVar: "GITHUB_WEBHOOK_SECRET",
		Usage:  `GitHub webhook secret used to validate inbound signatures.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "database-dsn",
		Target: &cfg.DatabaseDSN,
		EnvVar: "DATABASE_DSN",
		Usage:  `DSN for the document store backing raw event storage.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "database-backend",
		Target:  &cfg.DatabaseBackend,
		EnvVar:  "DATABASE_BACKEND",
		Default: "sqlite",
		Usage:   `Document store backend: sqlite or mysql.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "dispatch-topic-id",
		Target: &cfg.DispatchTopicID,
		EnvVar: "DISPATCH_TOPIC_ID",
		Usage:  `Google PubSub topic ID the dispatcher is scheduled on.`,
	})

	return set
}
