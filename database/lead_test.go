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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onaiagency/leadsync/model"
)

func newMockDatasource(t *testing.T) (Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return Datasource{Conn: db}, mock
}

func TestFetchUnsyncedLeads(t *testing.T) {
	ds, mock := newMockDatasource(t)

	rows := sqlmock.NewRows([]string{
		"lead_id", "name", "email", "phone", "campaign_slug",
		"payment_method", "amount", "utm_params", "created_at",
	}).
		AddRow("lead_1", "Aigerim", "a@example.kz", "+77001112233", "spring",
			"kaspi", "45000", []byte(`{"utm_source":"facebook"}`), time.Now()).
		AddRow("lead_2", "Dias", "", "+77005556677", "",
			"", "0", []byte(`{}`), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads")).
		WithArgs(LeadSyncPending, 50).
		WillReturnRows(rows)

	leads, err := ds.FetchUnsyncedLeads(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "lead_1", leads[0].LeadID)
	assert.Equal(t, "facebook", leads[0].UTMParams["utm_source"])
	assert.Equal(t, "45000", leads[0].Amount.String())
	assert.Empty(t, leads[1].Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLeadsSyncing(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads")).
		WithArgs(LeadSyncSyncing, pq.Array([]string{"lead_1", "lead_2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := ds.MarkLeadsSyncing(context.Background(), []string{"lead_1", "lead_2"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLeadsSyncingEmptySliceIsNoop(t *testing.T) {
	ds, mock := newMockDatasource(t)

	require.NoError(t, ds.MarkLeadsSyncing(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadSynced(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads")).
		WithArgs(LeadSyncSynced, int64(42), int64(555), sqlmock.AnyArg(), "lead_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ds.UpdateLeadSynced(context.Background(), "lead_1", &model.SyncResult{
		ContactID: 42,
		DealID:    555,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadSyncFailed(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads")).
		WithArgs(LeadSyncFailed, 3, "crm unavailable", "lead_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ds.UpdateLeadSyncFailed(context.Background(), "lead_1", 3, "crm unavailable")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadSyncState(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sync_status, sync_attempts FROM leads")).
		WithArgs("lead_1").
		WillReturnRows(sqlmock.NewRows([]string{"sync_status", "sync_attempts"}).
			AddRow(LeadSyncSynced, 2))

	status, attempts, err := ds.GetLeadSyncState(context.Background(), "lead_1")
	require.NoError(t, err)
	assert.Equal(t, LeadSyncSynced, status)
	assert.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadSyncStateNotFound(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sync_status, sync_attempts FROM leads")).
		WithArgs("lead_missing").
		WillReturnRows(sqlmock.NewRows([]string{"sync_status", "sync_attempts"}))

	_, _, err := ds.GetLeadSyncState(context.Background(), "lead_missing")
	assert.Error(t, err)
}
