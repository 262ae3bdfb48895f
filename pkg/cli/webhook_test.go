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
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/testutil"
	"github.com/sethvargo/go-envconfig"

	"github.com/ghmirror/ghmirror/pkg/domain"
	"github.com/ghmirror/ghmirror/pkg/webhook"
)

type fakeWebhookStore struct{}

func (f *fakeWebhookStore) InsertRawEventIfAbsent(ctx context.Context, ev *domain.RawEvent) (bool, error) {
	return true, nil
}

type fakeWebhookMessenger struct{}

func (f *fakeWebhookMessenger) Send(ctx context.Context, payload []byte) error { return nil }
func (f *fakeWebhookMessenger) Shutdown() error                               { return nil }

func TestWebhookServerCommand(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	cases := []struct {
		name   string
		args   []string
		env    map[string]string
		expErr string
	}{
		{
			name:   "too_many_args",
			args:   []string{"foo"},
			expErr: `unexpected arguments: ["foo"]`,
		},
		{
			name:   "invalid_config_project_id",
			env:    map[string]string{},
			expErr: `PROJECT_ID is required`,
		},
		{
			name: "invalid_config_webhook_secret",
			env: map[string]string{
				"PROJECT_ID": "project-id",
			},
			expErr: `GITHUB_WEBHOOK_SECRET is required`,
		},
		{
			name: "invalid_config_database_dsn",
			env: map[string]string{
				"PROJECT_ID":            "project-id",
				"GITHUB_WEBHOOK_SECRET": "webhook-secret",
			},
			expErr: `DATABASE_DSN is required`,
		},
		{
			name: "invalid_config_dispatch_topic_id",
			env: map[string]string{
				"PROJECT_ID":            "project-id",
				"GITHUB_WEBHOOK_SECRET": "webhook-secret",
				"DATABASE_DSN":          "file::memory:",
			},
			expErr: `DISPATCH_TOPIC_ID is required`,
		},
		{
			name: "happy_path",
			env: map[string]string{
				"PROJECT_ID":            "project-id",
				"GITHUB_WEBHOOK_SECRET": "webhook-secret",
				"DATABASE_DSN":          "file::memory:",
				"DISPATCH_TOPIC_ID":     "topic-id",
			},
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, done := context.WithCancel(ctx)
			defer done()

			var cmd WebhookServerCommand
			cmd.testFlagSetOpts = []cli.Option{cli.WithLookupEnv(envconfig.MultiLookuper(
				envconfig.MapLookuper(tc.env),
				envconfig.MapLookuper(map[string]string{
					"PORT": "0",
				}),
			).Lookup)}
			cmd.testClientOptions = &webhook.ClientOptions{
				StoreOverride:     &fakeWebhookStore{},
				MessengerOverride: &fakeWebhookMessenger{},
			}

			_, _, _ = cmd.Pipe()

			srv, mux, err := cmd.RunUnstarted(ctx, tc.args)
			if diff := testutil.DiffErrString(err, tc.expErr); diff != "" {
				t.Fatal(diff)
			}
			if err != nil {
				return
			}

			serverCtx, serverDone := context.WithCancel(ctx)
			defer serverDone()
			go func() {
				if err := srv.StartHTTPHandler(serverCtx, mux); err != nil && !errors.Is(err, context.Canceled) {
					t.Error(err)
				}
			}()

			client := &http.Client{Timeout: 5 * time.Second}

			uri := "http://" + srv.Addr() + "/healthz"
			req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
			if err != nil {
				t.Fatal(err)
			}

			resp, err := client.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if got, want := resp.StatusCode, http.StatusOK; got != want {
				b, err := io.ReadAll(resp.Body)
				if err != nil {
					t.Fatal(err)
				}
				t.Errorf("expected status code %d to be %d: %s", got, want, string(b))
			}
		})
	}
}
