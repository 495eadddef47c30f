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
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/model"
)

const (
	progressKeyFmt     = "leadsync:run:%s:progress"
	progressChannelFmt = "leadsync:run:%s:events"
)

// ProgressTracker maintains per-run counters in a redis hash and broadcasts
// every change on the run's pub/sub channel. Counters are advanced with
// HINCRBY so concurrent workers never lose an update, and
// succeeded + failed + pending always equals total.
type ProgressTracker struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewProgressTracker initializes a ProgressTracker.
//
// Parameters:
// - client redis.UniversalClient: The redis client to use.
// - conf config.QueueConfig: Supplies the run retention window.
//
// Returns:
// - *ProgressTracker: A pointer to the newly created ProgressTracker instance.
func NewProgressTracker(client redis.UniversalClient, conf config.QueueConfig) *ProgressTracker {
	return &ProgressTracker{
		redis: client,
		ttl:   time.Duration(conf.ProgressTTLHours) * time.Hour,
	}
}

func progressKey(runID string) string {
	return fmt.Sprintf(progressKeyFmt, runID)
}

func progressChannel(runID string) string {
	return fmt.Sprintf(progressChannelFmt, runID)
}

// InitRun registers a run of total jobs with zeroed counters. The record
// expires after the retention window.
func (p *ProgressTracker) InitRun(ctx context.Context, runID string, total int) error {
	now := time.Now()
	key := progressKey(runID)

	_, err := p.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"total", total,
			"succeeded", 0,
			"failed", 0,
			"started_at", now.Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to init run progress")
	}

	logrus.WithFields(logrus.Fields{"run_id": runID, "total": total}).Info("run registered")
	return p.publish(ctx, runID)
}

// DeleteRun removes the run's progress record. Used to roll back a
// registration whose jobs never made it into the queue.
func (p *ProgressTracker) DeleteRun(ctx context.Context, runID string) error {
	if err := p.redis.Del(ctx, progressKey(runID)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete run progress")
	}
	return nil
}

// RecordSuccess advances the run's succeeded counter.
func (p *ProgressTracker) RecordSuccess(ctx context.Context, runID string) error {
	return p.increment(ctx, runID, "succeeded")
}

// RecordFailure advances the run's failed counter. Only terminal failures
// count; a retry in flight is still pending.
func (p *ProgressTracker) RecordFailure(ctx context.Context, runID string) error {
	return p.increment(ctx, runID, "failed")
}

func (p *ProgressTracker) increment(ctx context.Context, runID, field string) error {
	if err := p.redis.HIncrBy(ctx, progressKey(runID), field, 1).Err(); err != nil {
		return errors.Wrapf(err, "failed to increment %s", field)
	}
	return p.publish(ctx, runID)
}

// GetProgress returns the run's current snapshot, or nil when the run is
// unknown or has expired.
func (p *ProgressTracker) GetProgress(ctx context.Context, runID string) (*model.RunProgress, error) {
	fields, err := p.redis.HGetAll(ctx, progressKey(runID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load run progress")
	}
	if len(fields) == 0 {
		return nil, nil
	}

	progress := &model.RunProgress{RunID: runID, UpdatedAt: time.Now()}
	progress.Total, _ = strconv.ParseInt(fields["total"], 10, 64)
	progress.Succeeded, _ = strconv.ParseInt(fields["succeeded"], 10, 64)
	progress.Failed, _ = strconv.ParseInt(fields["failed"], 10, 64)
	if raw, ok := fields["started_at"]; ok {
		progress.StartedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	progress.Finalize()
	return progress, nil
}

// Subscribe streams progress snapshots for the run until ctx is canceled or
// the run completes. The current snapshot is always delivered first so late
// subscribers see the latest state immediately.
func (p *ProgressTracker) Subscribe(ctx context.Context, runID string) (<-chan model.RunProgress, error) {
	current, err := p.GetProgress(ctx, runID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.New("unknown run: " + runID)
	}

	sub := p.redis.Subscribe(ctx, progressChannel(runID))
	out := make(chan model.RunProgress, 16)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		out <- *current
		if current.Complete() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var progress model.RunProgress
				if err := json.Unmarshal([]byte(msg.Payload), &progress); err != nil {
					logrus.WithError(err).Warn("failed to decode progress event")
					continue
				}
				select {
				case out <- progress:
				case <-ctx.Done():
					return
				}
				if progress.Complete() {
					return
				}
			}
		}
	}()

	return out, nil
}

func (p *ProgressTracker) publish(ctx context.Context, runID string) error {
	progress, err := p.GetProgress(ctx, runID)
	if err != nil || progress == nil {
		return err
	}

	data, err := json.Marshal(progress)
	if err != nil {
		return errors.Wrap(err, "failed to marshal progress event")
	}
	if err := p.redis.Publish(ctx, progressChannel(runID), data).Err(); err != nil {
		return errors.Wrap(err, "failed to publish progress event")
	}
	return nil
}
