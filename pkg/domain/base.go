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

// Package domain holds the normalized GitHub entity rows mirrored from
// webhook and bootstrap traffic. Every entity embeds Base for a
// system-assigned identifier, matching the document-store contract of
// §3/§6 of the design: a system-assigned id plus explicit secondary
// indexes (expressed here as gorm struct tags).
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every domain row to provide the system-assigned
// identifier and soft-delete bookkeeping gorm needs for a "document" model.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate assigns a system identifier if one hasn't been set already.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// OptimisticFields are embedded on any domain row that can be created or
// mutated optimistically by the Optimistic Write Coordinator (§4.6) ahead of
// webhook confirmation. See OptimisticState for the allowed transitions.
type OptimisticFields struct {
	OptimisticCorrelationID  string `gorm:"index"`
	OptimisticOperationType  string
	OptimisticState          OptimisticState
	OptimisticErrorMessage   string
	OptimisticErrorStatus    int
	OptimisticUpdatedAt      *time.Time
	OptimisticPayloadJSON    string `gorm:"type:text"`
}

// OptimisticState is the state machine described by invariant 6 in §3:
// pending -> confirmed is monotonic, and a row may additionally sit in
// "failed" without being rolled back.
type OptimisticState string

const (
	OptimisticStatePending   OptimisticState = "pending"
	OptimisticStateAccepted  OptimisticState = "accepted"
	OptimisticStateFailed    OptimisticState = "failed"
	OptimisticStateConfirmed OptimisticState = "confirmed"
)

// CanConfirm reports whether a row currently in state s may transition to
// confirmed. Once confirmed, the transition is terminal (invariant 3 in §8).
func (s OptimisticState) CanConfirm() bool {
	return s == OptimisticStatePending || s == OptimisticStateAccepted
}
