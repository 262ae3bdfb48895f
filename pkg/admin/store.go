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

// Package admin is the operator-facing HTTP surface §7 requires: listing
// failed raw events, listing dead letters, replay-one, retry-all-failed,
// and reconcile-repo.
package admin

import (
	"context"

	"github.com/ghmirror/ghmirror/pkg/domain"
)

// Store is the persistence contract the admin surface needs.
type Store interface {
	ListFailed(ctx context.Context, limit int) ([]*domain.RawEvent, error)
	ListDeadLetters(ctx context.Context, limit int) ([]*domain.DeadLetter, error)
	ResetForReplay(ctx context.Context, deliveryID string) error

	GetRepositoryByFullName(ctx context.Context, fullName string) (*domain.Repository, error)
	CreateSyncJobIfAbsent(ctx context.Context, job *domain.SyncJob) (bool, *domain.SyncJob, error)
}

// Dispatcher re-runs a single raw event through the Event Dispatcher &
// Domain Writer, used by replay-one and retry-all-failed so the admin
// surface doesn't wait on the 30s retry sweep (§4.2). *rawevent.Controller
// satisfies this via ProcessDelivery.
type Dispatcher interface {
	ProcessDelivery(ctx context.Context, deliveryID string) error
}
