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

package crm

import (
	"fmt"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/model"
)

// CustomFieldValue is one value of a CRM custom field.
type CustomFieldValue struct {
	Value    interface{} `json:"value"`
	EnumCode string      `json:"enum_code,omitempty"`
}

// CustomField addresses a CRM custom field either by account-specific id or
// by a well-known field code (EMAIL, PHONE).
type CustomField struct {
	FieldID   int64              `json:"field_id,omitempty"`
	FieldCode string             `json:"field_code,omitempty"`
	Values    []CustomFieldValue `json:"values"`
}

// FieldMap is the declared mapping from logical payload fields to the CRM
// account's custom-field ids. The mapping is fixed at construction; fields
// whose id is not configured are dropped from outgoing requests entirely,
// never sent as zero or null.
type FieldMap struct {
	ids config.CRMFieldIDs
}

func NewFieldMap(ids config.CRMFieldIDs) FieldMap {
	return FieldMap{ids: ids}
}

// ContactFields builds the email/phone custom fields for a contact write.
// These use the CRM's standard field codes rather than account ids.
func ContactFields(payload model.LeadPayload) []CustomField {
	var fields []CustomField
	if payload.Email != "" {
		fields = append(fields, CustomField{
			FieldCode: "EMAIL",
			Values:    []CustomFieldValue{{Value: payload.Email, EnumCode: "WORK"}},
		})
	}
	if payload.Phone != "" {
		fields = append(fields, CustomField{
			FieldCode: "PHONE",
			Values:    []CustomFieldValue{{Value: payload.Phone, EnumCode: "WORK"}},
		})
	}
	return fields
}

// DealFields builds the attribution custom fields for a deal write from the
// payload's UTM parameters and payment method.
func (m FieldMap) DealFields(payload model.LeadPayload) []CustomField {
	var fields []CustomField

	utm := func(key string, fieldID int64) {
		if fieldID == 0 {
			return
		}
		value, ok := payload.UTMParams[key]
		if !ok || value == "" {
			return
		}
		fields = append(fields, CustomField{
			FieldID: fieldID,
			Values:  []CustomFieldValue{{Value: value}},
		})
	}

	utm("utm_source", m.ids.UTMSource)
	utm("utm_medium", m.ids.UTMMedium)
	utm("utm_campaign", m.ids.UTMCampaign)
	utm("utm_content", m.ids.UTMContent)
	utm("utm_term", m.ids.UTMTerm)

	if payload.PaymentMethod != "" && m.ids.PaymentMethod != 0 {
		fields = append(fields, CustomField{
			FieldID: m.ids.PaymentMethod,
			Values:  []CustomFieldValue{{Value: payload.PaymentMethod}},
		})
	}

	return fields
}

// DealName renders the deal title shown to sales managers.
func DealName(payload model.LeadPayload) string {
	source := payload.CampaignSlug
	if source == "" {
		source = "landing"
	}
	return fmt.Sprintf("%s - %s", payload.Name, source)
}
