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

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/onaiagency/leadsync"
	model2 "github.com/onaiagency/leadsync/api/model"
	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/database/mocks"
	"github.com/onaiagency/leadsync/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		err := json.NewDecoder(resp.Body).Decode(&s.Response)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *leadsync.LeadSync, *mocks.MockDataSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		ProjectName: "LeadSync",
		Redis:       config.RedisConfig{Dns: mr.Addr()},
		DataSource:  config.DataSourceConfig{Dns: "postgres://postgres:@localhost:5432/leadsync?sslmode=disable"},
	})

	datasource := new(mocks.MockDataSource)
	engine, err := leadsync.NewLeadSync(datasource)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown("test teardown") })

	router := NewAPI(engine).Router()
	return router, engine, datasource
}

func fakeRunBody(n int) io.Reader {
	run := model2.CreateRun{}
	for i := 0; i < n; i++ {
		run.Leads = append(run.Leads, model2.CreateRunLead{
			Name:   gofakeit.Name(),
			Email:  gofakeit.Email(),
			Phone:  gofakeit.Phone(),
			Amount: decimal.NewFromInt(int64(gofakeit.Number(1000, 90000))),
		})
	}
	data, _ := json.Marshal(run)
	return bytes.NewReader(data)
}

func TestCreateRunAPI(t *testing.T) {
	router, _, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  fakeRunBody(3),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sync/runs",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.NotEmpty(t, response["run_id"])
	assert.Equal(t, float64(3), response["total"])
}

func TestCreateRunEmptyBodyRejected(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewReader([]byte(`{"leads":[]}`)),
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/sync/runs",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateRunInvalidLeadRejected(t *testing.T) {
	router, _, _ := setupRouter(t)

	body := `{"leads":[{"name":"","phone":"123"}]}`
	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewReader([]byte(body)),
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/sync/runs",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetRunAPI(t *testing.T) {
	router, engine, _ := setupRouter(t)

	var created map[string]interface{}
	_, err := SetUpTestRequest(TestRequest{
		Payload:  fakeRunBody(2),
		Router:   router,
		Response: &created,
		Method:   http.MethodPost,
		Route:    "/sync/runs",
	})
	require.NoError(t, err)
	runID := created["run_id"].(string)

	var progress model.RunProgress
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &progress,
		Method:   http.MethodGet,
		Route:    fmt.Sprintf("/sync/runs/%s", runID),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(2), progress.Total)
	assert.Equal(t, int64(2), progress.Pending)

	_ = engine
}

func TestGetRunNotFound(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/sync/runs/run_missing",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestQueueDepthAPI(t *testing.T) {
	router, _, _ := setupRouter(t)

	_, err := SetUpTestRequest(TestRequest{
		Payload: fakeRunBody(4),
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/sync/runs",
	})
	require.NoError(t, err)

	var depth map[string]float64
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &depth,
		Method:   http.MethodGet,
		Route:    "/queue/depth",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(4), depth["ready"])
	assert.Equal(t, float64(0), depth["leased"])
}

func TestLimiterStatsAPI(t *testing.T) {
	router, _, _ := setupRouter(t)

	var stats map[string]float64
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &stats,
		Method:   http.MethodGet,
		Route:    "/limiter/stats",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, stats["running"])
	assert.Zero(t, stats["queued"])
}

func TestRecentFailuresAPI(t *testing.T) {
	router, _, datasource := setupRouter(t)

	datasource.On("GetRecentFailures", mock.Anything, 20).Return([]model.IntegrationLogEntry{
		{LogID: "ilog_1", ServiceName: "amocrm", Action: "create_deal", Status: model.LogStatusFailed},
	}, nil)

	var entries []model.IntegrationLogEntry
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &entries,
		Method:   http.MethodGet,
		Route:    "/integration-logs/failures",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, entries, 1)
	assert.Equal(t, "create_deal", entries[0].Action)
}

func TestServiceStatsAPI(t *testing.T) {
	router, _, datasource := setupRouter(t)

	datasource.On("GetServiceStats", mock.Anything, 24).Return([]model.ServiceStats{
		{ServiceName: "amocrm", TotalCalls: 10, Succeeded: 9, Failed: 1},
	}, nil)

	var stats []model.ServiceStats
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &stats,
		Method:   http.MethodGet,
		Route:    "/integration-logs/stats",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(10), stats[0].TotalCalls)
}
