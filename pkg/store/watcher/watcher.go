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

// Package watcher is an in-process change feed that fans domain writes out
// to registered consumers, grounded on cloudbase/garm's
// database/common/watcher.go. gormstore publishes its domain writes here;
// no component in this module registers a consumer, since the dispatcher
// invokes the Projection Builder directly (§4.5).
package watcher

// EntityType names the kind of domain row that changed.
type EntityType string

const (
	EntityInstallation EntityType = "installation"
	EntityRepository   EntityType = "repository"
	EntityPullRequest  EntityType = "pull_request"
	EntityIssue        EntityType = "issue"
	EntityIssueComment EntityType = "issue_comment"
	EntityReview       EntityType = "pull_request_review"
	EntityCheckRun     EntityType = "check_run"
	EntityWorkflowRun  EntityType = "workflow_run"
	EntityBranch       EntityType = "branch"
	EntityCommit       EntityType = "commit"
)

// Operation is the kind of mutation that happened to the entity.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ChangePayload describes one domain write.
type ChangePayload struct {
	EntityType   EntityType
	Operation    Operation
	RepositoryID string
	Payload      any
}

// Consumer receives change notifications until closed.
type Consumer interface {
	Watch() <-chan ChangePayload
	Close()
}

// Producer fans change notifications out to all registered consumers.
type Producer interface {
	Publish(ChangePayload)
	Register() Consumer
}

// inMemoryProducer is a simple fan-out broadcaster: every registered
// consumer gets every published change on a buffered channel. Publish never
// blocks on a slow consumer — a full channel drops the oldest notification
// for that consumer rather than stalling the writer, since a dropped
// notification just means the next projection rebuild does slightly more
// work, not that it misses data (recomputation is idempotent, §5).
type inMemoryProducer struct {
	consumers []*inMemoryConsumer
}

// NewInMemoryProducer creates a Producer usable by a single process. A
// distributed deployment would swap this for a pub/sub-backed
// implementation behind the same interface.
func NewInMemoryProducer() Producer {
	return &inMemoryProducer{}
}

func (p *inMemoryProducer) Register() Consumer {
	c := &inMemoryConsumer{ch: make(chan ChangePayload, 256)}
	p.consumers = append(p.consumers, c)
	return c
}

func (p *inMemoryProducer) Publish(change ChangePayload) {
	for _, c := range p.consumers {
		select {
		case c.ch <- change:
		default:
			// Drop oldest to make room rather than block the writer.
			select {
			case <-c.ch:
			default:
			}
			select {
			case c.ch <- change:
			default:
			}
		}
	}
}

type inMemoryConsumer struct {
	ch     chan ChangePayload
	closed bool
}

func (c *inMemoryConsumer) Watch() <-chan ChangePayload { return c.ch }

func (c *inMemoryConsumer) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
