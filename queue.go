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
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/internal/syncerror"
	"github.com/onaiagency/leadsync/model"
)

const (
	readyKey  = "leadsync:queue:ready"
	leasedKey = "leadsync:queue:leased"
	jobKeyFmt = "leadsync:job:%s"
)

// leaseScript atomically claims the oldest eligible job: it pops the head of
// the ready set (scored by next-eligible time) and parks it in the leased set
// scored by lease expiry. Atomicity here is what makes concurrent workers
// safe; everything after the claim touches a job only its leaseholder owns.
var leaseScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
redis.call('ZREM', KEYS[1], ids[1])
redis.call('ZADD', KEYS[2], ARGV[2], ids[1])
return ids[1]
`)

// reapScript moves every job whose lease expired back into the ready set,
// immediately eligible. Returns the ids moved so the caller can fix up the
// job records.
var reapScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('ZADD', KEYS[1], ARGV[1], id)
end
return ids
`)

// JobQueue is the durable queue backing the sync workers. Jobs live in redis:
// the payload under its own key, membership in one of two sorted sets. A job
// is delivered at least once; a crashed worker's lease expires and the reaper
// hands the job to someone else.
type JobQueue struct {
	redis redis.UniversalClient
	conf  config.QueueConfig
}

// NewJobQueue initializes a JobQueue on the provided redis client.
//
// Parameters:
// - client redis.UniversalClient: The redis client to use.
// - conf config.QueueConfig: Lease, retry and backoff settings.
//
// Returns:
// - *JobQueue: A pointer to the newly created JobQueue instance.
func NewJobQueue(client redis.UniversalClient, conf config.QueueConfig) *JobQueue {
	return &JobQueue{redis: client, conf: conf}
}

func jobKey(jobID string) string {
	return fmt.Sprintf(jobKeyFmt, jobID)
}

// Enqueue persists the jobs and makes them immediately eligible. The write is
// pipelined in a transaction so a run is either fully enqueued or not at all.
func (q *JobQueue) Enqueue(ctx context.Context, jobs []*model.SyncJob) error {
	if len(jobs) == 0 {
		return nil
	}

	now := time.Now()
	_, err := q.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			job.Status = model.StatusQueued
			job.CreatedAt = now
			job.UpdatedAt = now

			data, err := json.Marshal(job)
			if err != nil {
				return errors.Wrap(err, "failed to marshal job")
			}
			pipe.Set(ctx, jobKey(job.JobID), data, 0)
			pipe.ZAdd(ctx, readyKey, redis.Z{
				Score:  float64(now.UnixMilli()),
				Member: job.JobID,
			})
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to enqueue jobs")
	}

	logrus.WithField("count", len(jobs)).Info("jobs enqueued")
	return nil
}

// Lease claims the oldest eligible job for workerID, or returns (nil, nil)
// when nothing is eligible. The claimed job's attempt counter is incremented
// here: an attempt is counted when a worker picks the job up, not when it
// finishes.
func (q *JobQueue) Lease(ctx context.Context, workerID string) (*model.SyncJob, error) {
	now := time.Now()
	expiry := now.Add(q.conf.LeaseDuration())

	result, err := leaseScript.Run(ctx, q.redis,
		[]string{readyKey, leasedKey},
		now.UnixMilli(), expiry.UnixMilli(),
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to lease job")
	}

	jobID, ok := result.(string)
	if !ok || jobID == "" {
		return nil, nil
	}

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// Record vanished between claim and load. Drop the orphaned lease.
		q.redis.ZRem(ctx, leasedKey, jobID)
		return nil, nil
	}

	job.Status = model.StatusLeased
	job.Attempts++
	job.LeaseExpiresAt = &expiry
	job.NextEligibleAt = nil
	job.UpdatedAt = now
	if err := q.saveJob(ctx, job, 0); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"job_id":  job.JobID,
		"worker":  workerID,
		"attempt": job.Attempts,
	}).Debug("job leased")
	return job, nil
}

// AckSuccess marks the job succeeded and releases its lease. The record is
// kept around for the run's inspection window and then expires.
func (q *JobQueue) AckSuccess(ctx context.Context, job *model.SyncJob) error {
	job.Status = model.StatusSucceeded
	job.LeaseExpiresAt = nil
	job.LastError = ""
	job.UpdatedAt = time.Now()

	if err := q.saveJob(ctx, job, q.retentionTTL()); err != nil {
		return err
	}
	if err := q.redis.ZRem(ctx, leasedKey, job.JobID).Err(); err != nil {
		return errors.Wrap(err, "failed to release lease")
	}
	return nil
}

// AckFailure records a failed attempt. Transient failures below the attempt
// ceiling re-enter the ready set after an exponential backoff delay;
// permanent failures and exhausted jobs go terminal immediately.
func (q *JobQueue) AckFailure(ctx context.Context, job *model.SyncJob, cause error) error {
	now := time.Now()
	job.LeaseExpiresAt = nil
	job.LastError = cause.Error()
	job.UpdatedAt = now

	if syncerror.IsPermanent(cause) || job.Attempts >= q.conf.MaxAttempts {
		job.Status = model.StatusFailed
		job.NextEligibleAt = nil

		if err := q.saveJob(ctx, job, q.retentionTTL()); err != nil {
			return err
		}
		if err := q.redis.ZRem(ctx, leasedKey, job.JobID).Err(); err != nil {
			return errors.Wrap(err, "failed to release lease")
		}
		logrus.WithFields(logrus.Fields{
			"job_id":   job.JobID,
			"attempts": job.Attempts,
			"error":    cause.Error(),
		}).Warn("job failed terminally")
		return nil
	}

	eligible := now.Add(q.backoffDelay(job.Attempts))
	job.Status = model.StatusRetrying
	job.NextEligibleAt = &eligible

	if err := q.saveJob(ctx, job, 0); err != nil {
		return err
	}
	_, err := q.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, leasedKey, job.JobID)
		pipe.ZAdd(ctx, readyKey, redis.Z{
			Score:  float64(eligible.UnixMilli()),
			Member: job.JobID,
		})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to requeue job")
	}

	logrus.WithFields(logrus.Fields{
		"job_id":      job.JobID,
		"attempt":     job.Attempts,
		"eligible_at": eligible,
		"error":       cause.Error(),
	}).Info("job scheduled for retry")
	return nil
}

// ReapExpired returns expired leases to the ready set and reports how many
// jobs were recovered. Attempt counters are untouched; the next lease counts
// the retry.
func (q *JobQueue) ReapExpired(ctx context.Context) (int, error) {
	now := time.Now()
	result, err := reapScript.Run(ctx, q.redis,
		[]string{readyKey, leasedKey},
		now.UnixMilli(),
	).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to reap expired leases")
	}

	ids, ok := result.([]interface{})
	if !ok || len(ids) == 0 {
		return 0, nil
	}

	for _, raw := range ids {
		jobID, ok := raw.(string)
		if !ok {
			continue
		}
		job, err := q.GetJob(ctx, jobID)
		if err != nil || job == nil {
			continue
		}
		job.Status = model.StatusQueued
		job.LeaseExpiresAt = nil
		job.UpdatedAt = now
		if err := q.saveJob(ctx, job, 0); err != nil {
			logrus.WithError(err).WithField("job_id", jobID).Error("failed to reset reaped job")
		}
	}

	logrus.WithField("count", len(ids)).Warn("expired leases reclaimed")
	return len(ids), nil
}

// GetJob loads a job record, or nil when it does not exist.
func (q *JobQueue) GetJob(ctx context.Context, jobID string) (*model.SyncJob, error) {
	data, err := q.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load job")
	}

	var job model.SyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal job")
	}
	return &job, nil
}

// Depth reports the number of ready and leased jobs.
func (q *JobQueue) Depth(ctx context.Context) (ready, leased int64, err error) {
	ready, err = q.redis.ZCard(ctx, readyKey).Result()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to read queue depth")
	}
	leased, err = q.redis.ZCard(ctx, leasedKey).Result()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to read queue depth")
	}
	return ready, leased, nil
}

func (q *JobQueue) saveJob(ctx context.Context, job *model.SyncJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}
	if err := q.redis.Set(ctx, jobKey(job.JobID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save job")
	}
	return nil
}

// backoffDelay computes base * 2^(attempts-1), capped.
func (q *JobQueue) backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := float64(q.conf.BackoffBaseMs) * math.Pow(2, float64(attempts-1))
	if ceiling := float64(q.conf.BackoffCapMs); delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay) * time.Millisecond
}

func (q *JobQueue) retentionTTL() time.Duration {
	return time.Duration(q.conf.ProgressTTLHours) * time.Hour
}
