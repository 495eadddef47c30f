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

package database

import (
	"context"

	"github.com/onaiagency/leadsync/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	lead           // Interface for lead-related operations
	integrationLog // Interface for integration audit log operations
}

// lead defines methods for reading and writing the leads table. The write-back
// of a sync outcome is best effort: the CRM is the source of truth once the
// deal exists.
type lead interface {
	// FetchUnsyncedLeads retrieves leads not yet pushed to the CRM.
	FetchUnsyncedLeads(ctx context.Context, limit int) ([]model.LeadPayload, error)
	// MarkLeadsSyncing flags leads as picked up by a run.
	MarkLeadsSyncing(ctx context.Context, leadIDs []string) error
	// UpdateLeadSynced records the CRM ids after a successful sync.
	UpdateLeadSynced(ctx context.Context, leadID string, result *model.SyncResult) error
	// UpdateLeadSyncFailed records a terminal sync failure.
	UpdateLeadSyncFailed(ctx context.Context, leadID string, attempts int, lastError string) error
	// GetLeadSyncState reads a lead's sync bookkeeping.
	GetLeadSyncState(ctx context.Context, leadID string) (status string, attempts int, err error)
}

// integrationLog defines methods for the append-only integration audit log.
type integrationLog interface {
	// RecordIntegrationLog appends one audit entry.
	RecordIntegrationLog(ctx context.Context, entry *model.IntegrationLogEntry) error
	// GetRecentFailures retrieves the newest failed entries.
	GetRecentFailures(ctx context.Context, limit int) ([]model.IntegrationLogEntry, error)
	// GetServiceStats aggregates call stats per service over a rolling window.
	GetServiceStats(ctx context.Context, windowHours int) ([]model.ServiceStats, error)
}
