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
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/onaiagency/leadsync/model"
)

// Lead sync statuses stored in the leads table.
const (
	LeadSyncPending = "pending"
	LeadSyncSyncing = "syncing"
	LeadSyncSynced  = "synced"
	LeadSyncFailed  = "failed"
)

// FetchUnsyncedLeads reads the oldest leads still waiting for a CRM push.
func (d Datasource) FetchUnsyncedLeads(ctx context.Context, limit int) ([]model.LeadPayload, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT lead_id, name, COALESCE(email, ''), phone, COALESCE(campaign_slug, ''),
		       COALESCE(payment_method, ''), amount, utm_params, created_at
		FROM leads
		WHERE sync_status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, LeadSyncPending, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch unsynced leads")
	}
	defer rows.Close()

	leads := []model.LeadPayload{}
	for rows.Next() {
		var lead model.LeadPayload
		var utmJSON []byte
		err = rows.Scan(&lead.LeadID, &lead.Name, &lead.Email, &lead.Phone,
			&lead.CampaignSlug, &lead.PaymentMethod, &lead.Amount, &utmJSON, &lead.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan lead")
		}
		if len(utmJSON) > 0 {
			if err := json.Unmarshal(utmJSON, &lead.UTMParams); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal utm params")
			}
		}
		leads = append(leads, lead)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating leads")
	}
	return leads, nil
}

// MarkLeadsSyncing flags the given leads as picked up by a run so the next
// fetch does not hand them out again.
func (d Datasource) MarkLeadsSyncing(ctx context.Context, leadIDs []string) error {
	if len(leadIDs) == 0 {
		return nil
	}
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE leads
		SET sync_status = $1
		WHERE lead_id = ANY($2)
	`, LeadSyncSyncing, pq.Array(leadIDs))
	if err != nil {
		return errors.Wrap(err, "failed to mark leads syncing")
	}
	return nil
}

// UpdateLeadSynced writes the CRM ids back to the lead row. Best effort by
// contract: callers must not fail the job when this write fails, the deal
// already exists in the CRM.
func (d Datasource) UpdateLeadSynced(ctx context.Context, leadID string, result *model.SyncResult) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE leads
		SET sync_status = $1, amo_contact_id = $2, amo_lead_id = $3,
		    last_sync_error = NULL, synced_at = $4
		WHERE lead_id = $5
	`, LeadSyncSynced, result.ContactID, result.DealID, time.Now(), leadID)
	if err != nil {
		return errors.Wrap(err, "failed to record lead sync outcome")
	}
	return nil
}

// UpdateLeadSyncFailed records a terminal failure on the lead row.
func (d Datasource) UpdateLeadSyncFailed(ctx context.Context, leadID string, attempts int, lastError string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE leads
		SET sync_status = $1, sync_attempts = $2, last_sync_error = $3
		WHERE lead_id = $4
	`, LeadSyncFailed, attempts, lastError, leadID)
	if err != nil {
		return errors.Wrap(err, "failed to record lead sync failure")
	}
	return nil
}

// GetLeadSyncState reads the lead's sync bookkeeping columns.
func (d Datasource) GetLeadSyncState(ctx context.Context, leadID string) (string, int, error) {
	var status string
	var attempts int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT sync_status, sync_attempts FROM leads WHERE lead_id = $1
	`, leadID).Scan(&status, &attempts)
	if err == sql.ErrNoRows {
		return "", 0, errors.New("lead not found: " + leadID)
	}
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to read lead sync state")
	}
	return status, attempts, nil
}
