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

package admin

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
	"github.com/sethvargo/go-envconfig"
)

// Config defines the set of environment variables required to run the
// admin surface (§7: "listing failed raw events, listing dead letters,
// replay-one, retry-all-failed, reconcile-repo").
type Config struct {
	Port      string `env:"PORT,default=8081"`
	ProjectID string `env:"PROJECT_ID,required"`

	DatabaseDSN     string `env:"DATABASE_DSN,required"`
	DatabaseBackend string `env:"DATABASE_BACKEND,default=sqlite"`

	// ListLimit bounds how many rows a single list call returns; the admin
	// surface has no cursor paging of its own since its lists are
	// operator-facing triage views, not a UI feed (§4.5 contrasts this with
	// ListActivity's cursor pagination).
	ListLimit int `env:"ADMIN_LIST_LIMIT,default=100"`
}

// Validate validates the config after load.
func (cfg *Config) Validate() error {
	if cfg.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID is required")
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if cfg.ListLimit < 1 {
		return fmt.Errorf("ADMIN_LIST_LIMIT must be at least 1")
	}
	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse admin server config: %w", err)
	}
	return &cfg, nil
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("ADMIN SERVER OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "8081",
		Usage:   `The port the admin server listens on.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "project-id",
		Target: &cfg.ProjectID,
		EnvVar: "PROJECT_ID",
		Usage:  `Google Cloud project ID.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "database-dsn",
		Target: &cfg.DatabaseDSN,
		EnvVar: "DATABASE_DSN",
		Usage:  `DSN for the document store backing the admin surface.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "database-backend",
		Target:  &cfg.DatabaseBackend,
		EnvVar:  "DATABASE_BACKEND",
		Default: "sqlite",
		Usage:   `Document store backend: sqlite or mysql.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "list-limit",
		Target:  &cfg.ListLimit,
		EnvVar:  "ADMIN_LIST_LIMIT",
		Default: 100,
		Usage:   `Maximum rows returned by a single admin list call.`,
	})

	return set
}
