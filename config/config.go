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
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// Lease, backoff and rate constants are required explicit configuration.
	// The values below are the documented defaults applied when a field is
	// left unset; they mirror the external CRM's stated request budget
	// (7 req/s, 500 req/min) and a 3-attempt retry schedule of 2s, 4s, 8s.
	DefaultMaxAttempts          = 3
	DefaultBackoffBaseMs        = 2000
	DefaultBackoffCapMs         = 60000
	DefaultLeaseDurationMs      = 30000
	DefaultReaperIntervalMs     = 5000
	DefaultPollIntervalMs       = 500
	DefaultWorkerCount          = 4
	DefaultDrainTimeoutMs       = 30000
	DefaultProgressTTLHours     = 24
	DefaultRequestsPerSecond    = 7
	DefaultMaxConcurrent        = 2
	DefaultReservoirCapacity    = 500
	DefaultReservoirRefillMs    = 60000
	DefaultCRMRequestTimeoutSec = 30
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"LEADSYNC_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"LEADSYNC_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"LEADSYNC_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"LEADSYNC_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"LEADSYNC_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"LEADSYNC_REDIS_SKIP_TLS_VERIFY"`
}

// CRMFieldIDs is the declared mapping from logical payload fields to the
// external CRM's custom-field ids. A zero id means "not configured for this
// account": the field is dropped from the outgoing request, never sent as
// zero or null.
type CRMFieldIDs struct {
	UTMSource     int64 `json:"utm_source" envconfig:"LEADSYNC_CRM_FIELD_UTM_SOURCE"`
	UTMMedium     int64 `json:"utm_medium" envconfig:"LEADSYNC_CRM_FIELD_UTM_MEDIUM"`
	UTMCampaign   int64 `json:"utm_campaign" envconfig:"LEADSYNC_CRM_FIELD_UTM_CAMPAIGN"`
	UTMContent    int64 `json:"utm_content" envconfig:"LEADSYNC_CRM_FIELD_UTM_CONTENT"`
	UTMTerm       int64 `json:"utm_term" envconfig:"LEADSYNC_CRM_FIELD_UTM_TERM"`
	PaymentMethod int64 `json:"payment_method" envconfig:"LEADSYNC_CRM_FIELD_PAYMENT_METHOD"`
}

// CRMRateLimit holds the shared outbound budget. All workers funnel through
// one scheduler built from these numbers, so the aggregate call rate never
// exceeds the provider's budget regardless of worker count.
type CRMRateLimit struct {
	RequestsPerSecond int `json:"requests_per_second" envconfig:"LEADSYNC_CRM_RPS"`
	MaxConcurrent     int `json:"max_concurrent" envconfig:"LEADSYNC_CRM_MAX_CONCURRENT"`
	ReservoirCapacity int `json:"reservoir_capacity" envconfig:"LEADSYNC_CRM_RESERVOIR"`
	ReservoirRefillMs int `json:"reservoir_refill_ms" envconfig:"LEADSYNC_CRM_RESERVOIR_REFILL_MS"`
	RequestTimeoutSec int `json:"request_timeout_sec" envconfig:"LEADSYNC_CRM_TIMEOUT_SEC"`
}

type CRMConfig struct {
	Domain          string       `json:"domain" envconfig:"LEADSYNC_CRM_DOMAIN"`
	AccessToken     string       `json:"access_token" envconfig:"LEADSYNC_CRM_ACCESS_TOKEN"`
	PipelineID      int64        `json:"pipeline_id" envconfig:"LEADSYNC_CRM_PIPELINE_ID"`
	InitialStatusID int64        `json:"initial_status_id" envconfig:"LEADSYNC_CRM_INITIAL_STATUS_ID"`
	Fields          CRMFieldIDs  `json:"fields"`
	RateLimit       CRMRateLimit `json:"rate_limit"`
}

type QueueConfig struct {
	MaxAttempts      int `json:"max_attempts" envconfig:"LEADSYNC_QUEUE_MAX_ATTEMPTS"`
	BackoffBaseMs    int `json:"backoff_base_ms" envconfig:"LEADSYNC_QUEUE_BACKOFF_BASE_MS"`
	BackoffCapMs     int `json:"backoff_cap_ms" envconfig:"LEADSYNC_QUEUE_BACKOFF_CAP_MS"`
	LeaseDurationMs  int `json:"lease_duration_ms" envconfig:"LEADSYNC_QUEUE_LEASE_DURATION_MS"`
	ReaperIntervalMs int `json:"reaper_interval_ms" envconfig:"LEADSYNC_QUEUE_REAPER_INTERVAL_MS"`
	PollIntervalMs   int `json:"poll_interval_ms" envconfig:"LEADSYNC_QUEUE_POLL_INTERVAL_MS"`
	WorkerCount      int `json:"worker_count" envconfig:"LEADSYNC_QUEUE_WORKER_COUNT"`
	DrainTimeoutMs   int `json:"drain_timeout_ms" envconfig:"LEADSYNC_QUEUE_DRAIN_TIMEOUT_MS"`
	ProgressTTLHours int `json:"progress_ttl_hours" envconfig:"LEADSYNC_QUEUE_PROGRESS_TTL_HOURS"`
}

// RateLimitConfig throttles inbound HTTP requests on the API surface.
// Disabled by default (both fields nil).
type RateLimitConfig struct {
	RequestsPerSecond *float64 `json:"requests_per_second" envconfig:"LEADSYNC_RATE_LIMIT_RPS"`
	Burst             *int     `json:"burst" envconfig:"LEADSYNC_RATE_LIMIT_BURST"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"LEADSYNC_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"LEADSYNC_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"LEADSYNC_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	CRM             CRMConfig        `json:"crm"`
	Queue           QueueConfig      `json:"queue"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Notification    Notification     `json:"notification"`
}

// LeaseDuration returns the lease TTL as a time.Duration.
func (q QueueConfig) LeaseDuration() time.Duration {
	return time.Duration(q.LeaseDurationMs) * time.Millisecond
}

// DrainTimeout bounds how long shutdown waits for in-flight jobs.
func (q QueueConfig) DrainTimeout() time.Duration {
	return time.Duration(q.DrainTimeoutMs) * time.Millisecond
}

// MinInterval is the minimum spacing between dispatched CRM calls derived
// from the per-second budget.
func (r CRMRateLimit) MinInterval() time.Duration {
	if r.RequestsPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(r.RequestsPerSecond)
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("leadsync", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called leadsync.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "LeadSync"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.CRM.Domain = strings.TrimSpace(cnf.CRM.Domain)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	applyQueueDefaults(&cnf.Queue)
	applyCRMRateDefaults(&cnf.CRM.RateLimit)

	// Inbound rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	return nil
}

func applyQueueDefaults(q *QueueConfig) {
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = DefaultMaxAttempts
	}
	if q.BackoffBaseMs <= 0 {
		q.BackoffBaseMs = DefaultBackoffBaseMs
	}
	if q.BackoffCapMs <= 0 {
		q.BackoffCapMs = DefaultBackoffCapMs
	}
	if q.LeaseDurationMs <= 0 {
		q.LeaseDurationMs = DefaultLeaseDurationMs
	}
	if q.ReaperIntervalMs <= 0 {
		q.ReaperIntervalMs = DefaultReaperIntervalMs
	}
	if q.PollIntervalMs <= 0 {
		q.PollIntervalMs = DefaultPollIntervalMs
	}
	if q.WorkerCount <= 0 {
		q.WorkerCount = DefaultWorkerCount
	}
	if q.DrainTimeoutMs <= 0 {
		q.DrainTimeoutMs = DefaultDrainTimeoutMs
	}
	if q.ProgressTTLHours <= 0 {
		q.ProgressTTLHours = DefaultProgressTTLHours
	}
}

func applyCRMRateDefaults(r *CRMRateLimit) {
	if r.RequestsPerSecond <= 0 {
		r.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = DefaultMaxConcurrent
	}
	if r.ReservoirCapacity <= 0 {
		r.ReservoirCapacity = DefaultReservoirCapacity
	}
	if r.ReservoirRefillMs <= 0 {
		r.ReservoirRefillMs = DefaultReservoirRefillMs
	}
	if r.RequestTimeoutSec <= 0 {
		r.RequestTimeoutSec = DefaultCRMRequestTimeoutSec
	}
}

// MockConfig sets a mock configuration for testing purposes. Queue and CRM
// rate defaults are still applied so tests get the documented values.
func MockConfig(mockConfig *Configuration) {
	applyQueueDefaults(&mockConfig.Queue)
	applyCRMRateDefaults(&mockConfig.CRM.RateLimit)
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
