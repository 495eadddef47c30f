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

// Package crm is the HTTP client for the external CRM's v4 API. Every call
// is funneled through the shared rate-limit scheduler; the client itself
// never retries, that is the job queue's responsibility.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/internal/ratelimit"
	"github.com/onaiagency/leadsync/internal/request"
	"github.com/onaiagency/leadsync/internal/syncerror"
	"github.com/onaiagency/leadsync/model"
)

// Contact is the subset of the CRM contact the pipeline needs.
type Contact struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type contactEmbed struct {
	Embedded struct {
		Contacts []Contact `json:"contacts"`
	} `json:"_embedded"`
}

type dealEmbed struct {
	Embedded struct {
		Leads []struct {
			ID int64 `json:"id"`
		} `json:"leads"`
	} `json:"_embedded"`
}

// Client talks to one CRM account. Construct once per process and share; the
// limiter guarantees the account's request budget across all callers.
type Client struct {
	baseURL         string
	token           string
	pipelineID      int64
	initialStatusID int64
	fields          FieldMap
	http            *http.Client
	limiter         *ratelimit.Limiter
}

// NewClient builds a CRM client from configuration. The limiter is injected
// so workers, the API layer and tests share (or isolate) the budget
// explicitly instead of through a package-level singleton.
func NewClient(conf config.CRMConfig, limiter *ratelimit.Limiter) *Client {
	return &Client{
		baseURL:         fmt.Sprintf("https://%s.amocrm.ru/api/v4", conf.Domain),
		token:           conf.AccessToken,
		pipelineID:      conf.PipelineID,
		initialStatusID: conf.InitialStatusID,
		fields:          NewFieldMap(conf.Fields),
		http: &http.Client{
			Timeout: time.Duration(conf.RateLimit.RequestTimeoutSec) * time.Second,
		},
		limiter: limiter,
	}
}

// IsConfigured reports whether the client has enough configuration to make
// calls. An unconfigured client fails jobs permanently rather than hammering
// the provider with unauthorized requests.
func (c *Client) IsConfigured() bool {
	return c.token != "" && c.pipelineID != 0
}

// HTTPClient exposes the underlying client for tests to intercept.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// LimiterStats returns the scheduler's {running, queued} snapshot.
func (c *Client) LimiterStats() ratelimit.Stats {
	return c.limiter.Stats()
}

// FindContact searches the CRM by a free-form query (email or normalized
// phone). Returns nil when no contact matches; that is not an error.
func (c *Client) FindContact(ctx context.Context, query string) (*Contact, error) {
	if query == "" {
		return nil, nil
	}

	var result contactEmbed
	path := fmt.Sprintf("/contacts?query=%s&limit=1", url.QueryEscape(query))
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Embedded.Contacts) == 0 {
		return nil, nil
	}
	contact := result.Embedded.Contacts[0]
	return &contact, nil
}

// CreateContact creates a new contact with the payload's name, email and
// phone. The CRM accepts batch creates; we always send a batch of one.
func (c *Client) CreateContact(ctx context.Context, payload model.LeadPayload) (*Contact, error) {
	body := []map[string]interface{}{{
		"name":                 payload.Name,
		"custom_fields_values": ContactFields(payload),
	}}

	var result contactEmbed
	if err := c.do(ctx, http.MethodPost, "/contacts", body, &result); err != nil {
		return nil, err
	}
	if len(result.Embedded.Contacts) == 0 {
		return nil, syncerror.New(syncerror.Transient, "", "contact create returned empty response")
	}
	contact := result.Embedded.Contacts[0]
	return &contact, nil
}

// PatchContact refreshes an existing contact's email/phone fields. Contact
// fields are not authoritative, so callers treat a failure here as
// non-fatal.
func (c *Client) PatchContact(ctx context.Context, contactID int64, payload model.LeadPayload) error {
	body := map[string]interface{}{
		"custom_fields_values": ContactFields(payload),
	}
	path := fmt.Sprintf("/contacts/%d", contactID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// CreateDeal creates the deal attached to contactID, with the pipeline and
// initial stage from configuration and the attribution custom fields from
// the payload.
func (c *Client) CreateDeal(ctx context.Context, contactID int64, payload model.LeadPayload) (int64, error) {
	body := []map[string]interface{}{{
		"name":        DealName(payload),
		"pipeline_id": c.pipelineID,
		"status_id":   c.initialStatusID,
		"price":       payload.Amount.Round(0).IntPart(),
		"_embedded": map[string]interface{}{
			"contacts": []map[string]int64{{"id": contactID}},
		},
		"custom_fields_values": c.fields.DealFields(payload),
	}}

	var result dealEmbed
	if err := c.do(ctx, http.MethodPost, "/leads", body, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Leads) == 0 {
		return 0, syncerror.New(syncerror.Transient, "", "deal create returned empty response")
	}
	return result.Embedded.Leads[0].ID, nil
}

// do schedules one HTTP call through the rate limiter and classifies the
// response. Network failures are transient; 4xx responses other than
// timeouts and throttles are permanent.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	return c.limiter.Schedule(ctx, func() error {
		var body io.Reader
		if payload != nil {
			buf, err := request.ToJsonReq(payload)
			if err != nil {
				return syncerror.Wrap(syncerror.Permanent, err)
			}
			body = buf
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return syncerror.Wrap(syncerror.Permanent, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := request.Call(c.http, req, nil)
		if err != nil {
			return syncerror.Wrap(syncerror.Transient, err)
		}

		raw, _ := io.ReadAll(resp.Body)
		if se := syncerror.FromHTTPStatus(resp.StatusCode, string(raw)); se != nil {
			return se
		}

		// The CRM answers 204 with an empty body when a search matches
		// nothing.
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return syncerror.Wrap(syncerror.Transient, err)
		}
		return nil
	})
}
