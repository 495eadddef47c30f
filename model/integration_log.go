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

import "time"

// Integration log statuses. Stored lowercase in the integration_logs table.
const (
	LogStatusSuccess  = "success"
	LogStatusFailed   = "failed"
	LogStatusPending  = "pending"
	LogStatusRetrying = "retrying"
)

// IntegrationLogEntry is an immutable audit record of one external-call
// attempt. Entries are append-only and never mutated after creation.
type IntegrationLogEntry struct {
	LogID             string    `json:"log_id"`
	ServiceName       string    `json:"service_name"`
	Action            string    `json:"action"`
	Status            string    `json:"status"`
	RelatedEntityType string    `json:"related_entity_type,omitempty"`
	RelatedEntityID   string    `json:"related_entity_id,omitempty"`
	DurationMs        int64     `json:"duration_ms"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	RetryCount        int       `json:"retry_count"`
	CreatedAt         time.Time `json:"created_at"`
}

// ServiceStats is the aggregate view of one integration service over a
// rolling window, used by operators to triage failures.
type ServiceStats struct {
	ServiceName   string  `json:"service_name"`
	TotalCalls    int64   `json:"total_calls"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
