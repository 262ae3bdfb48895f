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
	"testing"

	"github.com/abcxyz/pkg/testutil"
)

const (
	testProjectID     = "test-project-id"
	testDSN           = "file::memory:"
	testDispatchTopic = "test-dispatch-topic"
	//nolint:gosec
	testWebhookSecret = "test-webhook-secret"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "success",
			cfg: &Config{
				ProjectID:           testProjectID,
				GitHubWebhookSecret: testWebhookSecret,
				DatabaseDSN:         testDSN,
				DispatchTopicID:     testDispatchTopic,
			},
		},
		{
			name: "missing_project_id",
			cfg: &Config{
				GitHubWebhookSecret: testWebhookSecret,
				DatabaseDSN:         testDSN,
				DispatchTopicID:     testDispatchTopic,
			},
			wantErr: `PROJECT_ID is required`,
		},
		{
			name: "missing_webhook_secret",
			cfg: &Config{
				ProjectID:       testProjectID,
				DatabaseDSN:     testDSN,
				DispatchTopicID: testDispatchTopic,
			},
			wantErr: `GITHUB_WEBHOOK_SECRET is required`,
		},
		{
			name: "missing_database_dsn",
			cfg: &Config{
				ProjectID:           testProjectID,
				GitHubWebhookSecret: testWebhookSecret,
				DispatchTopicID:     testDispatchTopic,
			},
			wantErr: `DATABASE_DSN is required`,
		},
		{
			name: "missing_dispatch_topic_id",
			cfg: &Config{
				ProjectID:           testProjectID,
				GitHubWebhookSecret: testWebhookSecret,
				DatabaseDSN:         testDSN,
			},
			wantErr: `DISPATCH_TOPIC_ID is required`,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.Validate()
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("Process(%+v) got unexpected err: %s", tc.name, diff)
			}
		})
	}
}
