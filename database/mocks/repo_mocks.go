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
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/onaiagency/leadsync/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Lead methods

func (m *MockDataSource) FetchUnsyncedLeads(ctx context.Context, limit int) ([]model.LeadPayload, error) {
	args := m.Called(ctx, limit)
	leads, _ := args.Get(0).([]model.LeadPayload)
	return leads, args.Error(1)
}

func (m *MockDataSource) MarkLeadsSyncing(ctx context.Context, leadIDs []string) error {
	args := m.Called(ctx, leadIDs)
	return args.Error(0)
}

func (m *MockDataSource) UpdateLeadSynced(ctx context.Context, leadID string, result *model.SyncResult) error {
	args := m.Called(ctx, leadID, result)
	return args.Error(0)
}

func (m *MockDataSource) UpdateLeadSyncFailed(ctx context.Context, leadID string, attempts int, lastError string) error {
	args := m.Called(ctx, leadID, attempts, lastError)
	return args.Error(0)
}

func (m *MockDataSource) GetLeadSyncState(ctx context.Context, leadID string) (string, int, error) {
	args := m.Called(ctx, leadID)
	return args.String(0), args.Int(1), args.Error(2)
}

// Integration log methods

func (m *MockDataSource) RecordIntegrationLog(ctx context.Context, entry *model.IntegrationLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetRecentFailures(ctx context.Context, limit int) ([]model.IntegrationLogEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]model.IntegrationLogEntry)
	return entries, args.Error(1)
}

func (m *MockDataSource) GetServiceStats(ctx context.Context, windowHours int) ([]model.ServiceStats, error) {
	args := m.Called(ctx, windowHours)
	stats, _ := args.Get(0).([]model.ServiceStats)
	return stats, args.Error(1)
}
