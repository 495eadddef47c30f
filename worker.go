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
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/database"
	"github.com/onaiagency/leadsync/internal/syncerror"
	"github.com/onaiagency/leadsync/model"
)

// WorkerPool runs the sync workers and the lease reaper. Each worker is a
// poll loop: lease, process, acknowledge. A panic inside the pipeline fails
// that one job and the worker keeps going; the pool only stops when told to
// drain.
type WorkerPool struct {
	queue       *JobQueue
	pipeline    *SyncPipeline
	tracker     *ProgressTracker
	coordinator *ShutdownCoordinator
	store       database.IDataSource
	conf        config.QueueConfig

	wg sync.WaitGroup
}

// NewWorkerPool initializes a WorkerPool.
//
// Parameters:
// - queue *JobQueue: The durable job queue.
// - pipeline *SyncPipeline: Executes each job.
// - tracker *ProgressTracker: Run counters.
// - coordinator *ShutdownCoordinator: Drain control.
// - store database.IDataSource: Lead write-back target; nil disables it.
// - conf config.QueueConfig: Worker count and poll cadence.
//
// Returns:
// - *WorkerPool: A pointer to the newly created WorkerPool instance.
func NewWorkerPool(queue *JobQueue, pipeline *SyncPipeline, tracker *ProgressTracker, coordinator *ShutdownCoordinator, store database.IDataSource, conf config.QueueConfig) *WorkerPool {
	return &WorkerPool{
		queue:       queue,
		pipeline:    pipeline,
		tracker:     tracker,
		coordinator: coordinator,
		store:       store,
		conf:        conf,
	}
}

// Start launches the workers and the reaper. Non-blocking; call Stop to
// drain.
func (w *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.conf.WorkerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		w.wg.Add(1)
		go w.runWorker(ctx, workerID)
	}

	w.wg.Add(1)
	go w.runReaper(ctx)

	logrus.WithField("workers", w.conf.WorkerCount).Info("worker pool started")
}

// Stop initiates the drain and waits for in-flight jobs up to the configured
// window. Returns true when the pool drained cleanly.
func (w *WorkerPool) Stop(reason string) bool {
	w.coordinator.Initiate(reason)
	return w.coordinator.AwaitDrain(&w.wg)
}

func (w *WorkerPool) runWorker(ctx context.Context, workerID string) {
	defer w.wg.Done()
	log := logrus.WithField("worker", workerID)
	poll := time.Duration(w.conf.PollIntervalMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.coordinator.Done():
			return
		default:
		}

		job, err := w.queue.Lease(ctx, workerID)
		if err != nil {
			log.WithError(err).Error("lease failed")
			w.sleep(ctx, poll)
			continue
		}
		if job == nil {
			w.sleep(ctx, poll)
			continue
		}

		w.processJob(ctx, job, log)
	}
}

// processJob runs one leased job through the pipeline and acknowledges the
// outcome. Terminal outcomes advance the run's progress counters exactly
// once.
func (w *WorkerPool) processJob(ctx context.Context, job *model.SyncJob, log *logrus.Entry) {
	result, err := w.runPipeline(ctx, job)
	if err != nil {
		if ackErr := w.queue.AckFailure(ctx, job, err); ackErr != nil {
			log.WithError(ackErr).Error("failed to acknowledge failure")
			return
		}
		if job.Status == model.StatusFailed {
			if trackErr := w.tracker.RecordFailure(ctx, job.RunID); trackErr != nil {
				log.WithError(trackErr).Error("failed to record run failure")
			}
			if w.store != nil {
				if dbErr := w.store.UpdateLeadSyncFailed(ctx, job.Payload.LeadID, job.Attempts, job.LastError); dbErr != nil {
					log.WithError(dbErr).Warn("lead failure write-back failed")
				}
			}
		}
		return
	}

	if ackErr := w.queue.AckSuccess(ctx, job); ackErr != nil {
		log.WithError(ackErr).Error("failed to acknowledge success")
		return
	}
	if trackErr := w.tracker.RecordSuccess(ctx, job.RunID); trackErr != nil {
		log.WithError(trackErr).Error("failed to record run success")
	}

	// Write-back is best effort: the deal already exists in the CRM, a
	// failed row update must not fail the job.
	if w.store != nil {
		if dbErr := w.store.UpdateLeadSynced(ctx, job.Payload.LeadID, result); dbErr != nil {
			log.WithError(dbErr).Warn("lead sync write-back failed")
		}
	}

	log.WithFields(logrus.Fields{
		"job_id":     job.JobID,
		"contact_id": result.ContactID,
		"deal_id":    result.DealID,
	}).Info("lead synced")
}

// runPipeline contains a pipeline panic to the job it was processing. The
// panicking job fails permanently; the worker survives.
func (w *WorkerPool) runPipeline(ctx context.Context, job *model.SyncJob) (result *model.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"job_id": job.JobID,
				"panic":  r,
			}).Error(string(debug.Stack()))
			err = syncerror.New(syncerror.Permanent, "panic", fmt.Sprintf("pipeline panic: %v", r))
		}
	}()
	return w.pipeline.Process(ctx, job)
}

func (w *WorkerPool) runReaper(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(time.Duration(w.conf.ReaperIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.coordinator.Done():
			return
		case <-ticker.C:
			if _, err := w.queue.ReapExpired(ctx); err != nil {
				logrus.WithError(err).Error("reaper pass failed")
			}
		}
	}
}

func (w *WorkerPool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-w.coordinator.Done():
	case <-time.After(d):
	}
}
