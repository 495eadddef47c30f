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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "leadsync.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"project_name": "LeadSync Test",
		"data_source": {"dns": "postgres://localhost:5432/leadsync?sslmode=disable"},
		"redis": {"dns": "localhost:6379"},
		"crm": {"domain": "onaiagencykz", "access_token": "token"}
	}`)

	require.NoError(t, InitConfig(path))

	cnf, err := Fetch()
	require.NoError(t, err)

	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, DefaultMaxAttempts, cnf.Queue.MaxAttempts)
	assert.Equal(t, DefaultBackoffBaseMs, cnf.Queue.BackoffBaseMs)
	assert.Equal(t, DefaultWorkerCount, cnf.Queue.WorkerCount)
	assert.Equal(t, DefaultRequestsPerSecond, cnf.CRM.RateLimit.RequestsPerSecond)
	assert.Equal(t, DefaultMaxConcurrent, cnf.CRM.RateLimit.MaxConcurrent)
	assert.Equal(t, DefaultReservoirCapacity, cnf.CRM.RateLimit.ReservoirCapacity)
	assert.Equal(t, 30*time.Second, cnf.Queue.DrainTimeout())
	assert.Equal(t, time.Second/7, cnf.CRM.RateLimit.MinInterval())
}

func TestInitConfigMissingDataSource(t *testing.T) {
	path := writeConfigFile(t, `{"redis": {"dns": "localhost:6379"}}`)
	assert.Error(t, InitConfig(path))
}

func TestInitConfigMissingRedis(t *testing.T) {
	path := writeConfigFile(t, `{"data_source": {"dns": "postgres://localhost/leadsync"}}`)
	assert.Error(t, InitConfig(path))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LEADSYNC_QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("LEADSYNC_CRM_RPS", "3")

	path := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost/leadsync"},
		"redis": {"dns": "localhost:6379"}
	}`)

	require.NoError(t, InitConfig(path))
	cnf, err := Fetch()
	require.NoError(t, err)

	assert.Equal(t, 5, cnf.Queue.MaxAttempts)
	assert.Equal(t, 3, cnf.CRM.RateLimit.RequestsPerSecond)
}

func TestInboundRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := &Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost/leadsync"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		RateLimit:  RateLimitConfig{RequestsPerSecond: &rps},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
}
