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

package githubrest

import (
	"context"
	"crypto"
	"fmt"
	"strconv"

	kms "cloud.google.com/go/kms/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/google/go-github/v61/github"
	"github.com/sethvargo/go-gcpkms/pkg/gcpkms"
	"golang.org/x/oauth2"

	"github.com/abcxyz/pkg/githubauth"
)

// Client wraps an authenticated GitHub App and mints per-installation
// tokens and REST clients, the single credential-resolving seam the rest
// of the module calls through.
type Client struct {
	cfg *Config
	app *githubauth.App
}

// New builds a Client, resolving the App's signing key via KMS, Secret
// Manager, or a raw PEM value, in that preference order.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	var signer crypto.Signer
	var err error

	switch {
	case cfg.GitHubPrivateKeyKMSKeyID != "":
		kmsClient, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create key management client: %w", err)
		}
		signer, err = gcpkms.NewSigner(ctx, kmsClient, cfg.GitHubPrivateKeyKMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("failed to create kms signer: %w", err)
		}
	case cfg.GitHubPrivateKeySecretID != "":
		smClient, err := secretmanager.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create secretmanager client: %w", err)
		}
		defer smClient.Close()

		result, err := smClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: cfg.GitHubPrivateKeySecretID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access secret version: %w", err)
		}
		signer, err = githubauth.NewPrivateKeySigner(string(result.GetPayload().GetData()))
		if err != nil {
			return nil, fmt.Errorf("failed to create private key signer: %w", err)
		}
	default:
		signer, err = githubauth.NewPrivateKeySigner(cfg.GitHubPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create private key signer: %w", err)
		}
	}

	var appOpts []githubauth.Option
	if v := cfg.GitHubEnterpriseServerURL; v != "" {
		appOpts = append(appOpts, githubauth.WithBaseURL(v+"/api/v3"))
	}
	app, err := githubauth.NewApp(cfg.GitHubAppID, signer, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create github app: %w", err)
	}

	return &Client{cfg: cfg, app: app}, nil
}

// installationTokenSource resolves an installation-scoped oauth2 token
// source across all repositories the installation can see, the widest
// permission scope the bootstrap workflow's read-only REST calls need.
func (c *Client) installationTokenSource(ctx context.Context, installationID int64) (oauth2.TokenSource, error) {
	installation, err := c.app.InstallationForID(ctx, strconv.FormatInt(installationID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve installation %d: %w", installationID, err)
	}
	return installation.AllReposOAuth2TokenSource(ctx, map[string]string{
		"contents":      "read",
		"pull_requests": "read",
		"issues":        "read",
		"checks":        "read",
		"actions":       "read",
		"metadata":      "read",
	}), nil
}

// InstallationToken mints a short-lived installation token, used to
// register a webhook and for workflow.TokenResolver's installation-token
// fallback.
func (c *Client) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	ts, err := c.installationTokenSource(ctx, installationID)
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to mint installation token: %w", err)
	}
	return tok.AccessToken, nil
}

// restClient builds a github.Client authenticated with a static token,
// since the bootstrap workflow resolves a token per repository rather
// than binding one client for the Client's lifetime.
func (c *Client) restClient(ctx context.Context, token string) (*github.Client, error) {
	gh := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	if v := c.cfg.GitHubEnterpriseServerURL; v != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(v, v)
		if err != nil {
			return nil, fmt.Errorf("failed to create enterprise client: %w", err)
		}
	}
	return gh, nil
}
