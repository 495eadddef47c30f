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
	"embed"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/crm"
	"github.com/onaiagency/leadsync/database"
	redlock "github.com/onaiagency/leadsync/internal/lock"
	"github.com/onaiagency/leadsync/internal/ratelimit"
	redis_db "github.com/onaiagency/leadsync/internal/redis-db"
	"github.com/onaiagency/leadsync/model"
)

const enqueueLockKey = "leadsync:enqueue-lock"

//go:embed sql/*.sql
var SQLFiles embed.FS

// ErrRunNotFound is returned when a run id is unknown or has expired.
var ErrRunNotFound = errors.New("run not found")

// LeadSync is the main struct wiring the sync engine together: the durable
// queue, the rate-limited CRM client, the progress tracker and the postgres
// datasource. Everything is injected; there are no ambient singletons beyond
// the process configuration.
type LeadSync struct {
	queue       *JobQueue
	tracker     *ProgressTracker
	crm         *crm.Client
	limiter     *ratelimit.Limiter
	audit       *AsyncAuditLogger
	redis       redis.UniversalClient
	datasource  database.IDataSource
	coordinator *ShutdownCoordinator
	pool        *WorkerPool
}

// NewLeadSync initializes a new LeadSync instance with the provided database
// datasource. It fetches the configuration and builds the redis client, the
// CRM rate limiter and the worker machinery.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *LeadSync: A pointer to the newly created LeadSync instance.
// - error: An error if any of the initialization steps fail.
func NewLeadSync(db database.IDataSource) (*LeadSync, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient(configuration.Redis.Dns, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Options{
		MinInterval:       configuration.CRM.RateLimit.MinInterval(),
		MaxConcurrent:     configuration.CRM.RateLimit.MaxConcurrent,
		ReservoirCapacity: configuration.CRM.RateLimit.ReservoirCapacity,
		ReservoirRefill:   time.Duration(configuration.CRM.RateLimit.ReservoirRefillMs) * time.Millisecond,
	})

	crmClient := crm.NewClient(configuration.CRM, limiter)
	audit := NewAsyncAuditLogger(db)
	queue := NewJobQueue(redisClient.Client(), configuration.Queue)
	tracker := NewProgressTracker(redisClient.Client(), configuration.Queue)
	coordinator := NewShutdownCoordinator(configuration.Queue.DrainTimeout())
	// The audit sink flushes before the limiter releases its waiters; both
	// wait until the workers have drained.
	coordinator.OnStop(audit.Close)
	coordinator.OnStop(limiter.Close)
	pipeline := NewSyncPipeline(crmClient, audit)
	pool := NewWorkerPool(queue, pipeline, tracker, coordinator, db, configuration.Queue)

	return &LeadSync{
		queue:       queue,
		tracker:     tracker,
		crm:         crmClient,
		limiter:     limiter,
		audit:       audit,
		redis:       redisClient.Client(),
		datasource:  db,
		coordinator: coordinator,
		pool:        pool,
	}, nil
}

// EnqueueRun validates and enqueues one batch of leads as a new run. Returns
// the run id. Invalid payloads are rejected up front so the run only ever
// contains jobs that can at least be attempted.
func (l *LeadSync) EnqueueRun(ctx context.Context, payloads []model.LeadPayload) (string, error) {
	if len(payloads) == 0 {
		return "", errors.New("cannot enqueue an empty run")
	}

	runID := model.GenerateUUIDWithSuffix("run")
	jobs := make([]*model.SyncJob, 0, len(payloads))
	for i, payload := range payloads {
		if err := payload.Validate(); err != nil {
			return "", errors.Wrapf(err, "payload %d invalid", i)
		}
		if payload.LeadID == "" {
			payload.LeadID = model.GenerateUUIDWithSuffix("lead")
		}
		jobs = append(jobs, &model.SyncJob{
			JobID:   model.GenerateUUIDWithSuffix("job"),
			RunID:   runID,
			Payload: payload,
		})
	}

	if err := l.tracker.InitRun(ctx, runID, len(jobs)); err != nil {
		return "", err
	}
	if err := l.queue.Enqueue(ctx, jobs); err != nil {
		// Roll the registration back so the run does not linger as
		// forever-pending.
		if delErr := l.tracker.DeleteRun(ctx, runID); delErr != nil {
			logrus.WithError(delErr).WithField("run_id", runID).Warn("failed to roll back run registration")
		}
		return "", err
	}

	logrus.WithFields(logrus.Fields{"run_id": runID, "jobs": len(jobs)}).Info("run enqueued")
	return runID, nil
}

// EnqueueFromStore pulls up to limit unsynced leads from postgres and
// enqueues them as a run. A redis lock serializes invocations so two
// processes cannot enqueue the same leads twice.
func (l *LeadSync) EnqueueFromStore(ctx context.Context, limit int) (string, int, error) {
	locker := redlock.NewLocker(l.redis, enqueueLockKey, model.GenerateUUIDWithSuffix("holder"))
	if err := locker.WaitLock(ctx, 30*time.Second, 10*time.Second); err != nil {
		return "", 0, err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.WithError(err).Warn("failed to release enqueue lock")
		}
	}()

	leads, err := l.datasource.FetchUnsyncedLeads(ctx, limit)
	if err != nil {
		return "", 0, err
	}
	if len(leads) == 0 {
		return "", 0, nil
	}

	leadIDs := make([]string, 0, len(leads))
	for _, lead := range leads {
		leadIDs = append(leadIDs, lead.LeadID)
	}
	if err := l.datasource.MarkLeadsSyncing(ctx, leadIDs); err != nil {
		return "", 0, err
	}

	runID, err := l.EnqueueRun(ctx, leads)
	if err != nil {
		return "", 0, err
	}
	return runID, len(leads), nil
}

// GetRunStatus returns the run's progress snapshot. ErrRunNotFound
// distinguishes an unknown run from one with zero progress.
func (l *LeadSync) GetRunStatus(ctx context.Context, runID string) (*model.RunProgress, error) {
	progress, err := l.tracker.GetProgress(ctx, runID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, ErrRunNotFound
	}
	return progress, nil
}

// StreamRunStatus streams progress snapshots until the run completes or ctx
// is canceled.
func (l *LeadSync) StreamRunStatus(ctx context.Context, runID string) (<-chan model.RunProgress, error) {
	return l.tracker.Subscribe(ctx, runID)
}

// LimiterStats reports the CRM scheduler's {running, queued} snapshot.
func (l *LeadSync) LimiterStats() ratelimit.Stats {
	return l.limiter.Stats()
}

// QueueDepth reports ready and leased job counts.
func (l *LeadSync) QueueDepth(ctx context.Context) (ready, leased int64, err error) {
	return l.queue.Depth(ctx)
}

// RecentFailures returns the newest failed integration log entries.
func (l *LeadSync) RecentFailures(ctx context.Context, limit int) ([]model.IntegrationLogEntry, error) {
	return l.datasource.GetRecentFailures(ctx, limit)
}

// ServiceStats aggregates integration call stats over the window.
func (l *LeadSync) ServiceStats(ctx context.Context, windowHours int) ([]model.ServiceStats, error) {
	return l.datasource.GetServiceStats(ctx, windowHours)
}

// StartWorkers launches the worker pool and the lease reaper.
func (l *LeadSync) StartWorkers(ctx context.Context) {
	l.pool.Start(ctx)
}

// Shutdown drains the workers and runs the registered cleanup callbacks
// (audit flush, limiter release). Safe to call more than once.
func (l *LeadSync) Shutdown(reason string) bool {
	return l.pool.Stop(reason)
}

// Coordinator exposes the shutdown coordinator for signal wiring in cmd.
func (l *LeadSync) Coordinator() *ShutdownCoordinator {
	return l.coordinator
}
