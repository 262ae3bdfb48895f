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

package domain

import "time"

// ProcessState is the RawEvent lifecycle from §3/§4.2.
type ProcessState string

const (
	ProcessStatePending   ProcessState = "pending"
	ProcessStateProcessed ProcessState = "processed"
	ProcessStateFailed    ProcessState = "failed"
	ProcessStateRetry     ProcessState = "retry"
)

// RawEvent is the byte-exact audit/replay record of one inbound webhook
// delivery. DeliveryID is unique (invariant 1 in §3).
type RawEvent struct {
	Base

	DeliveryID      string `gorm:"uniqueIndex"`
	EventName       string `gorm:"index"`
	Action          string
	InstallationID  *int64
	RepositoryID    *string
	SignatureValid  bool
	PayloadJSON     string `gorm:"type:text"`
	ReceivedAt      time.Time
	ProcessState    ProcessState `gorm:"index"`
	ProcessError    string
	ProcessAttempts int
	NextRetryAt     *time.Time `gorm:"index"`
}

func (RawEvent) TableName() string { return "raw_events" }

// DeadLetterSource records which subsystem produced a DeadLetter.
type DeadLetterSource string

const (
	DeadLetterSourceWebhook   DeadLetterSource = "webhook"
	DeadLetterSourceBootstrap DeadLetterSource = "bootstrap"
	DeadLetterSourceReplay    DeadLetterSource = "replay"
)

// DeadLetter is a terminal failure record (§3, §7).
type DeadLetter struct {
	Base

	DeliveryID  string `gorm:"index"`
	Reason      string
	PayloadJSON string `gorm:"type:text"`
	Source      DeadLetterSource
}

func (DeadLetter) TableName() string { return "dead_letters" }
