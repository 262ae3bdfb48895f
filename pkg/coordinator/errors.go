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

package coordinator

import "fmt"

// DuplicateOperationError is returned when a correlationId has already
// been used by a prior optimistic write (§4.6, §7). The caller must not
// retry with the same id; the GitHub call behind the original id is never
// reissued.
type DuplicateOperationError struct {
	CorrelationID string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("correlation id %q was already used", e.CorrelationID)
}
