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

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"

	"github.com/ghmirror/ghmirror/pkg/admin"
	"github.com/ghmirror/ghmirror/pkg/dispatcher"
	"github.com/ghmirror/ghmirror/pkg/projection"
	"github.com/ghmirror/ghmirror/pkg/rawevent"
	"github.com/ghmirror/ghmirror/pkg/store/gormstore"
	"github.com/ghmirror/ghmirror/pkg/version"
)

var _ cli.Command = (*AdminServerCommand)(nil)

// adminSweepStore is the persistence contract the admin server's embedded
// dispatch path needs, mirroring retrySweepStore.
type adminSweepStore interface {
	admin.Store
	rawevent.Store
	dispatcher.Store
	projection.Store
}

// AdminServerCommand runs the operator-facing admin HTTP surface (§7).
type AdminServerCommand struct {
	cli.BaseCommand

	cfg         *admin.Config
	rawEventCfg *rawevent.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option

	// testStore is only used for testing.
	testStore adminSweepStore
}

func (c *AdminServerCommand) Desc() string {
	return `Start the admin server`
}

func (c *AdminServerCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
  Start the operator-facing admin server.
`
}

func (c *AdminServerCommand) Flags() *cli.FlagSet {
	c.cfg = &admin.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *AdminServerCommand) Run(ctx context.Context, args []string) error {
	server, mux, err := c.RunUnstarted(ctx, args)
	if err != nil {
		return err
	}
	return server.StartHTTPHandler(ctx, mux)
}

func (c *AdminServerCommand) RunUnstarted(ctx context.Context, args []string) (*serving.Server, http.Handler, error) {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "admin server starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rawEventCfg, err := rawevent.NewConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create raw event config: %w", err)
	}
	c.rawEventCfg = rawEventCfg

	store := c.testStore
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

	disp := dispatcher.New(store, projection.New(store))
	controller := rawevent.New(store, c.rawEventCfg, disp.Dispatch)

	adminServer, err := admin.NewServer(ctx, c.cfg, controller, &admin.ClientOptions{StoreOverride: store})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	mux := adminServer.Routes(ctx)

	server, err := serving.New(c.cfg.Port)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create serving infrastructure: %w", err)
	}
	return server, mux, nil
}
