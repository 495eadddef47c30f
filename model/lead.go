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
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// LeadPayload is the record handed to the sync pipeline. It mirrors the
// columns of the leads table plus the marketing attribution captured on the
// landing page.
type LeadPayload struct {
	LeadID        string            `json:"lead_id"`
	Name          string            `json:"name"`
	Email         string            `json:"email,omitempty"`
	Phone         string            `json:"phone"`
	CampaignSlug  string            `json:"campaign_slug,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	UTMParams     map[string]string `json:"utm_params,omitempty"`
	CreatedAt     time.Time         `json:"created_at,omitempty"`
}

// Validate checks the payload before any network call is made. A validation
// error here is permanent: retrying the same payload can never succeed, so
// the job fails fast without consuming retry budget.
func (l LeadPayload) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&l.Phone, validation.Required, validation.Length(5, 32)),
		validation.Field(&l.Email, is.EmailFormat),
	)
}

// NormalizedPhone strips every non-digit character from the phone number.
// The contact-resolution step searches by this exact normalization, so it
// must stay stable across releases for the pipeline to stay idempotent.
func (l LeadPayload) NormalizedPhone() string {
	return NormalizePhone(l.Phone)
}

// NormalizePhone removes everything except ASCII digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
