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
	"net/http"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"
	"github.com/sethvargo/go-envconfig"

	"github.com/ghmirror/ghmirror/pkg/coordinator"
	"github.com/ghmirror/ghmirror/pkg/githubrest"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

var _ cli.Command = (*CoordinatorServerCommand)(nil)

// coordinatorStore is the persistence contract the coordinator server
// needs: the coordinator's own Store plus the user lookup its token
// resolver needs, mirroring adminSweepStore.
type coordinatorStore interface {
	coordinator.Store
	githubrest.UserStore
}

// CoordinatorServerCommand runs the Optimistic Write Coordinator's HTTP
// surface (§4.6): the eight mutating operations a UI calls against GitHub,
// each of which stamps optimistic state before the matching REST call.
type CoordinatorServerCommand struct {
	cli.BaseCommand

	cfg *coordinator.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option

	// testStore is only used for testing.
	testStore coordinatorStore
}

func (c *CoordinatorServerCommand) Desc() string {
	return `Start the optimistic write coordinator server`
}

func (c *CoordinatorServerCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
  Start the optimistic write coordinator's HTTP surface.
`
}

func (c *CoordinatorServerCommand) Flags() *cli.FlagSet {
	c.cfg = &coordinator.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *CoordinatorServerCommand) Run(ctx context.Context, args []string) error {
	server, mux, err := c.RunUnstarted(ctx, args)
	if err != nil {
		return err
	}
	return server.StartHTTPHandler(ctx, mux)
}

func (c *CoordinatorServerCommand) RunUnstarted(ctx context.Context, args []string) (*serving.Server, http.Handler, error) {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "coordinator server starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var githubCfg githubrest.Config
	if err := cfgloader.Load(ctx, &githubCfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, nil, fmt.Errorf("failed to parse github app config: %w", err)
	}

	var store coordinatorStore = c.testStore
	if store == nil {
		db, err := gormstore.New(ctx, gormstore.Config{
			Backend: gormstore.Backend(c.cfg.DatabaseBackend),
			DSN:     c.cfg.DatabaseDSN,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open document store: %w", err)
		}
		store = db
	}

	ghClient, err := githubrest.New(ctx, &githubCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create github client: %w", err)
	}
	tokens := githubrest.NewTokenResolver(ghClient, store)

	coordinatorServer, err := coordinator.NewServer(ctx, c.cfg, ghClient, tokens, &coordinator.ClientOptions{StoreOverride: store})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	mux := coordinatorServer.Routes(ctx)

	server, err := serving.New(c.cfg.Port)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create serving infrastructure: %w", err)
	}
	return server, mux, nil
}
