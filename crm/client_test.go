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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/internal/ratelimit"
	"github.com/onaiagency/leadsync/internal/syncerror"
	"github.com/onaiagency/leadsync/model"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	limiter := ratelimit.New(ratelimit.Options{MaxConcurrent: 2})
	t.Cleanup(limiter.Close)

	client := NewClient(config.CRMConfig{
		Domain:          "onaiagencykz",
		AccessToken:     "test-token",
		PipelineID:      10350882,
		InitialStatusID: 71918746,
		Fields: config.CRMFieldIDs{
			UTMSource:   100,
			UTMCampaign: 101,
		},
	}, limiter)

	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func testPayload() model.LeadPayload {
	return model.LeadPayload{
		LeadID:        "lead_1",
		Name:          "Aigerim",
		Email:         "aigerim@example.kz",
		Phone:         "+7 (777) 123-45-67",
		CampaignSlug:  "spring-intensive",
		PaymentMethod: "kaspi",
		Amount:        decimal.NewFromInt(45000),
		UTMParams:     map[string]string{"utm_source": "facebook", "utm_campaign": "spring"},
	}
}

func TestFindContactFound(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://onaiagencykz\.amocrm\.ru/api/v4/contacts\?.*`,
		httpmock.NewStringResponder(200, `{"_embedded":{"contacts":[{"id":42,"name":"Aigerim"}]}}`))

	contact, err := client.FindContact(context.Background(), "aigerim@example.kz")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, int64(42), contact.ID)
}

func TestFindContactNoMatchReturnsNil(t *testing.T) {
	client := newTestClient(t)

	// The CRM answers 204 with an empty body on an empty search result.
	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://onaiagencykz\.amocrm\.ru/api/v4/contacts\?.*`,
		httpmock.NewStringResponder(204, ""))

	contact, err := client.FindContact(context.Background(), "nobody@example.kz")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestFindContactEmptyQuerySkipsCall(t *testing.T) {
	client := newTestClient(t)

	contact, err := client.FindContact(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, contact)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestCreateContact(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost,
		"https://onaiagencykz.amocrm.ru/api/v4/contacts",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			var batch []map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &batch))
			require.Len(t, batch, 1)
			assert.Equal(t, "Aigerim", batch[0]["name"])
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(200, `{"_embedded":{"contacts":[{"id":77}]}}`), nil
		})

	contact, err := client.CreateContact(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, int64(77), contact.ID)
}

func TestCreateDealSendsConfiguredFieldsOnly(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost,
		"https://onaiagencykz.amocrm.ru/api/v4/leads",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			var batch []map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &batch))
			require.Len(t, batch, 1)

			deal := batch[0]
			assert.Equal(t, "Aigerim - spring-intensive", deal["name"])
			assert.Equal(t, float64(10350882), deal["pipeline_id"])
			assert.Equal(t, float64(45000), deal["price"])

			fields := deal["custom_fields_values"].([]interface{})
			var ids []float64
			for _, f := range fields {
				ids = append(ids, f.(map[string]interface{})["field_id"].(float64))
			}
			// utm_source and utm_campaign are configured; payment method and
			// the other UTM fields have no external id and must be dropped.
			assert.ElementsMatch(t, []float64{100, 101}, ids)

			return httpmock.NewStringResponse(200, `{"_embedded":{"leads":[{"id":555}]}}`), nil
		})

	dealID, err := client.CreateDeal(context.Background(), 77, testPayload())
	require.NoError(t, err)
	assert.Equal(t, int64(555), dealID)
}

func TestServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost,
		"https://onaiagencykz.amocrm.ru/api/v4/contacts",
		httpmock.NewStringResponder(502, "bad gateway"))

	_, err := client.CreateContact(context.Background(), testPayload())
	require.Error(t, err)
	assert.Equal(t, syncerror.Transient, syncerror.Classify(err))
}

func TestValidationRejectionIsPermanent(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost,
		"https://onaiagencykz.amocrm.ru/api/v4/leads",
		httpmock.NewStringResponder(400, `{"title":"Bad Request"}`))

	_, err := client.CreateDeal(context.Background(), 77, testPayload())
	require.Error(t, err)
	assert.Equal(t, syncerror.Permanent, syncerror.Classify(err))
}

func TestIsConfigured(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Options{MaxConcurrent: 1})
	defer limiter.Close()

	assert.False(t, NewClient(config.CRMConfig{}, limiter).IsConfigured())
	assert.True(t, NewClient(config.CRMConfig{
		AccessToken: "t", PipelineID: 1,
	}, limiter).IsConfigured())
}
