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

package main

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/sethvargo/go-envconfig"
)

// Config defines the set of environment variables required to run the
// Event Dispatcher process.
type Config struct {
	Port            string `env:"PORT,default=8082"`
	ProjectID       string `env:"PROJECT_ID,required"`
	SubscriptionID  string `env:"DISPATCH_SUBSCRIPTION_ID,required"`
	DatabaseDSN     string `env:"DATABASE_DSN,required"`
	DatabaseBackend string `env:"DATABASE_BACKEND,default=sqlite"`
}

// Validate validates the config after load.
func (cfg *Config) Validate() error {
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

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse dispatcher config: %w", err)
	}
	return &cfg, nil
}
