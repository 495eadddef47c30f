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
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onaiagency/leadsync/crm"
	"github.com/onaiagency/leadsync/internal/syncerror"
	"github.com/onaiagency/leadsync/model"
)

const crmServiceName = "amocrm"

// CRMGateway is the surface of the CRM client the pipeline depends on,
// narrowed for testability.
type CRMGateway interface {
	IsConfigured() bool
	FindContact(ctx context.Context, query string) (*crm.Contact, error)
	CreateContact(ctx context.Context, payload model.LeadPayload) (*crm.Contact, error)
	PatchContact(ctx context.Context, contactID int64, payload model.LeadPayload) error
	CreateDeal(ctx context.Context, contactID int64, payload model.LeadPayload) (int64, error)
}

// AuditLogger records integration log entries. The postgres repository
// satisfies this in production.
type AuditLogger interface {
	RecordIntegrationLog(ctx context.Context, entry *model.IntegrationLogEntry) error
}

// SyncPipeline executes the two-step sync for one lead: resolve or create
// the contact, then create the deal attached to it. Every external call is
// audited. The pipeline is stateless; all coordination lives in the queue.
type SyncPipeline struct {
	crm   CRMGateway
	audit AuditLogger
}

// NewSyncPipeline initializes a SyncPipeline.
//
// Parameters:
// - gateway CRMGateway: The CRM client.
// - audit AuditLogger: Sink for integration audit records.
//
// Returns:
// - *SyncPipeline: A pointer to the newly created SyncPipeline instance.
func NewSyncPipeline(gateway CRMGateway, audit AuditLogger) *SyncPipeline {
	return &SyncPipeline{crm: gateway, audit: audit}
}

// Process pushes one lead through the pipeline. Contact resolution prefers
// email, then normalized phone; an existing contact gets a best-effort field
// refresh whose failure never fails the job. Duplicate deals after a crash
// are accepted, missed deals are not.
func (p *SyncPipeline) Process(ctx context.Context, job *model.SyncJob) (*model.SyncResult, error) {
	ctx, span := otel.Tracer("leadsync.pipeline").Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("job.id", job.JobID),
			attribute.String("run.id", job.RunID),
			attribute.Int("job.attempt", job.Attempts),
		))
	defer span.End()

	if !p.crm.IsConfigured() {
		return nil, syncerror.New(syncerror.Permanent, "crm_unconfigured", "CRM credentials are not configured")
	}

	payload := job.Payload
	if err := payload.Validate(); err != nil {
		return nil, syncerror.Wrap(syncerror.Permanent, err)
	}

	contact, isNew, err := p.resolveContact(ctx, job)
	if err != nil {
		return nil, err
	}

	dealID, err := p.createDeal(ctx, job, contact.ID)
	if err != nil {
		return nil, err
	}

	return &model.SyncResult{
		ContactID:    contact.ID,
		DealID:       dealID,
		IsNewContact: isNew,
	}, nil
}

// resolveContact finds an existing contact by email then phone, refreshing
// its fields when found, or creates a new one.
func (p *SyncPipeline) resolveContact(ctx context.Context, job *model.SyncJob) (*crm.Contact, bool, error) {
	payload := job.Payload

	for _, query := range []string{payload.Email, payload.NormalizedPhone()} {
		if query == "" {
			continue
		}
		started := time.Now()
		contact, err := p.crm.FindContact(ctx, query)
		p.recordCall(ctx, job, "find_contact", started, err)
		if err != nil {
			return nil, false, err
		}
		if contact == nil {
			continue
		}

		// Refresh is best effort: the contact's fields are nice to have,
		// the deal is the thing that must not be lost.
		started = time.Now()
		if err := p.crm.PatchContact(ctx, contact.ID, payload); err != nil {
			p.recordCall(ctx, job, "patch_contact", started, err)
			logrus.WithFields(logrus.Fields{
				"job_id":     job.JobID,
				"contact_id": contact.ID,
			}).WithError(err).Warn("contact refresh failed, continuing")
		} else {
			p.recordCall(ctx, job, "patch_contact", started, nil)
		}
		return contact, false, nil
	}

	started := time.Now()
	contact, err := p.crm.CreateContact(ctx, payload)
	p.recordCall(ctx, job, "create_contact", started, err)
	if err != nil {
		return nil, false, err
	}
	return contact, true, nil
}

func (p *SyncPipeline) createDeal(ctx context.Context, job *model.SyncJob, contactID int64) (int64, error) {
	started := time.Now()
	dealID, err := p.crm.CreateDeal(ctx, contactID, job.Payload)
	p.recordCall(ctx, job, "create_deal", started, err)
	if err != nil {
		return 0, err
	}
	return dealID, nil
}

// recordCall appends one audit entry. Audit failures are logged and
// swallowed; the audit trail never blocks the sync itself.
func (p *SyncPipeline) recordCall(ctx context.Context, job *model.SyncJob, action string, started time.Time, callErr error) {
	entry := &model.IntegrationLogEntry{
		LogID:             model.GenerateUUIDWithSuffix("ilog"),
		ServiceName:       crmServiceName,
		Action:            action,
		Status:            model.LogStatusSuccess,
		RelatedEntityType: "lead",
		RelatedEntityID:   job.Payload.LeadID,
		DurationMs:        time.Since(started).Milliseconds(),
		RetryCount:        job.Attempts - 1,
		CreatedAt:         time.Now(),
	}
	if callErr != nil {
		entry.Status = model.LogStatusFailed
		entry.ErrorMessage = callErr.Error()
		var se *syncerror.SyncError
		if errors.As(callErr, &se) {
			entry.ErrorCode = se.Code
		}
	}

	if err := p.audit.RecordIntegrationLog(ctx, entry); err != nil {
		logrus.WithError(err).WithField("action", action).Error("failed to record integration log")
	}
}
