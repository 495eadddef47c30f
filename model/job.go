/*
Copyright 2025 Onai Agency Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job statuses. A job is QUEUED on enqueue, LEASED while a worker holds it,
// and ends SUCCEEDED or FAILED. RETRYING jobs re-enter the ready set once
// their backoff delay has elapsed.
const (
	StatusQueued    = "QUEUED"
	StatusLeased    = "LEASED"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusRetrying  = "RETRYING"
)

// SyncJob is one unit of work: a single lead payload to be pushed into the
// external CRM. Jobs are grouped into runs by RunID and processed
// at-least-once; duplicate processing after a crash is possible and the
// pipeline must tolerate it.
type SyncJob struct {
	JobID          string      `json:"job_id"`
	RunID          string      `json:"run_id"`
	Payload        LeadPayload `json:"payload"`
	Status         string      `json:"status"`
	Attempts       int         `json:"attempts"`
	LeaseExpiresAt *time.Time  `json:"lease_expires_at,omitempty"`
	NextEligibleAt *time.Time  `json:"next_eligible_at,omitempty"`
	LastError      string      `json:"last_error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// SyncResult is the outcome of one successful pipeline pass.
type SyncResult struct {
	ContactID    int64 `json:"contact_id"`
	DealID       int64 `json:"deal_id"`
	IsNewContact bool  `json:"is_new_contact"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *SyncJob) IsTerminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// GenerateUUIDWithSuffix creates a prefixed identifier such as "job_<uuid>".
//
// Parameters:
// - module string: The prefix identifying the entity type.
//
// Returns:
// - string: The prefixed UUID string.
func GenerateUUIDWithSuffix(module string) string {
	return fmt.Sprintf("%s_%s", module, uuid.New().String())
}
