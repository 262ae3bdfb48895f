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

// Package gormstore is the concrete adapter behind the "transactional
// document store" external collaborator described in §6 of the design: it
// provides atomic single-document mutations and the secondary indexes every
// query in §3 depends on. One file per entity, the same layout the
// cloudbase/garm database/sql package uses.
package gormstore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ghmirror/ghmirror/pkg/domain"
	"github.com/ghmirror/ghmirror/pkg/store/watcher"
)

// Backend selects the SQL driver backing the store.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMySQL  Backend = "mysql"
)

// Config configures the connection to the backing database.
type Config struct {
	Backend Backend
	DSN     string
	Debug   bool
}

// Store is the gorm-backed implementation of every narrow per-package store
// interface in this module (rawevent.Store, dispatcher.Store,
// workflow.Store, coordinator.Store, ...). Methods are split across sibling files
// by entity group.
type Store struct {
	db       *gorm.DB
	producer watcher.Producer
}

// New opens a connection and runs migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	gcfg := &gorm.Config{}
	if !cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var dialector gorm.Dialector
	switch cfg.Backend {
	case BackendMySQL:
		dialector = mysql.Open(cfg.DSN)
	case BackendSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&domain.Installation{},
		&domain.Repository{},
		&domain.SyncJob{},
		&domain.RawEvent{},
		&domain.DeadLetter{},
		&domain.User{},
		&domain.Branch{},
		&domain.Commit{},
		&domain.PullRequest{},
		&domain.PullRequestReview{},
		&domain.PullRequestReviewComment{},
		&domain.PullRequestFile{},
		&domain.Issue{},
		&domain.IssueComment{},
		&domain.CheckRun{},
		&domain.WorkflowRun{},
		&domain.WorkflowJob{},
		&domain.ActivityFeed{},
		&domain.RepoOverview{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, producer: watcher.NewInMemoryProducer()}, nil
}

// Watcher exposes the change feed of domain writes to any subscriber.
// Nothing in this module registers on it; the dispatcher calls the
// Projection Builder directly after each domain write.
func (s *Store) Watcher() watcher.Producer { return s.producer }

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// publish notifies any registered subscribers of a domain write.
func (s *Store) publish(entityType watcher.EntityType, op watcher.Operation, payload any) {
	s.producer.Publish(watcher.ChangePayload{
		EntityType: entityType,
		Operation:  op,
		Payload:    payload,
	})
}
