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
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/onaiagency/leadsync/model"
)

// CreateRunLead is one lead in a run-creation request.
type CreateRunLead struct {
	LeadID        string            `json:"lead_id,omitempty"`
	Name          string            `json:"name"`
	Email         string            `json:"email,omitempty"`
	Phone         string            `json:"phone"`
	CampaignSlug  string            `json:"campaign_slug,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	UTMParams     map[string]string `json:"utm_params,omitempty"`
}

// CreateRun is the body of POST /sync/runs.
type CreateRun struct {
	Leads []CreateRunLead `json:"leads"`
}

func (r *CreateRun) ValidateCreateRun() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Leads, validation.Required, validation.Length(1, 10000)),
	)
}

// ToLeadPayloads converts the request into domain payloads. Per-lead
// validation happens downstream so the caller gets a precise error index.
func (r *CreateRun) ToLeadPayloads() []model.LeadPayload {
	payloads := make([]model.LeadPayload, 0, len(r.Leads))
	for _, lead := range r.Leads {
		payloads = append(payloads, model.LeadPayload{
			LeadID:        lead.LeadID,
			Name:          lead.Name,
			Email:         lead.Email,
			Phone:         lead.Phone,
			CampaignSlug:  lead.CampaignSlug,
			PaymentMethod: lead.PaymentMethod,
			Amount:        lead.Amount,
			UTMParams:     lead.UTMParams,
		})
	}
	return payloads
}
