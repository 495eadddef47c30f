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

package leadsync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/onaiagency/leadsync/crm"
	"github.com/onaiagency/leadsync/model"
)

// MockCRMGateway is a mock implementation of CRMGateway.
type MockCRMGateway struct {
	mock.Mock
}

func (m *MockCRMGateway) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockCRMGateway) FindContact(ctx context.Context, query string) (*crm.Contact, error) {
	args := m.Called(ctx, query)
	contact, _ := args.Get(0).(*crm.Contact)
	return contact, args.Error(1)
}

func (m *MockCRMGateway) CreateContact(ctx context.Context, payload model.LeadPayload) (*crm.Contact, error) {
	args := m.Called(ctx, payload)
	contact, _ := args.Get(0).(*crm.Contact)
	return contact, args.Error(1)
}

func (m *MockCRMGateway) PatchContact(ctx context.Context, contactID int64, payload model.LeadPayload) error {
	args := m.Called(ctx, contactID, payload)
	return args.Error(0)
}

func (m *MockCRMGateway) CreateDeal(ctx context.Context, contactID int64, payload model.LeadPayload) (int64, error) {
	args := m.Called(ctx, contactID, payload)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditLogger is a mock implementation of AuditLogger.
type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) RecordIntegrationLog(ctx context.Context, entry *model.IntegrationLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// NoopAuditLogger discards every entry; for tests that do not assert on the
// audit trail.
type NoopAuditLogger struct{}

func (NoopAuditLogger) RecordIntegrationLog(ctx context.Context, entry *model.IntegrationLogEntry) error {
	return nil
}
