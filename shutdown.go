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
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onaiagency/leadsync/internal/notification"
)

// Shutdown states. Transitions are one-way: running -> draining -> stopped.
const (
	StateRunning int32 = iota
	StateDraining
	StateStopped
)

// ShutdownCoordinator owns the drain sequence. Workers stop picking up new
// jobs the moment draining begins; in-flight jobs get the drain window to
// finish, after that their leases are abandoned for the reaper to recover.
type ShutdownCoordinator struct {
	state        atomic.Int32
	quit         chan struct{}
	once         sync.Once
	drainTimeout time.Duration

	mu          sync.Mutex
	cleanup     []func()
	cleanupOnce sync.Once
}

// NewShutdownCoordinator initializes a coordinator with the given drain
// window.
func NewShutdownCoordinator(drainTimeout time.Duration) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		quit:         make(chan struct{}),
		drainTimeout: drainTimeout,
	}
}

// State returns the current shutdown state.
func (s *ShutdownCoordinator) State() int32 {
	return s.state.Load()
}

// Draining reports whether shutdown has begun.
func (s *ShutdownCoordinator) Draining() bool {
	return s.state.Load() != StateRunning
}

// Done is closed when shutdown begins. Workers select on it in their poll
// loops.
func (s *ShutdownCoordinator) Done() <-chan struct{} {
	return s.quit
}

// Initiate begins the drain. Idempotent: repeated signals and fatal errors
// all funnel into one transition.
func (s *ShutdownCoordinator) Initiate(reason string) {
	s.once.Do(func() {
		s.state.Store(StateDraining)
		logrus.WithField("reason", reason).Info("shutdown initiated, draining workers")
		close(s.quit)
	})
}

// Fatal reports an unrecoverable error, notifies operators and begins the
// drain. The process stays alive long enough to finish in-flight jobs.
func (s *ShutdownCoordinator) Fatal(err error) {
	logrus.WithError(err).Error("fatal error, shutting down")
	notification.NotifyError(err)
	s.Initiate("fatal: " + err.Error())
}

// OnStop registers a cleanup callback to run after the workers have drained.
// Callbacks run exactly once, in registration order.
func (s *ShutdownCoordinator) OnStop(fn func()) {
	s.mu.Lock()
	s.cleanup = append(s.cleanup, fn)
	s.mu.Unlock()
}

// AwaitDrain blocks until wg finishes or the drain window closes, then runs
// the registered cleanup callbacks. Returns true when every worker exited in
// time.
func (s *ShutdownCoordinator) AwaitDrain(wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drained := false
	select {
	case <-done:
		drained = true
	case <-time.After(s.drainTimeout):
		logrus.Warn("drain window elapsed with jobs still in flight, abandoning leases")
	}
	s.runCleanup()
	s.state.Store(StateStopped)
	return drained
}

func (s *ShutdownCoordinator) runCleanup() {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		callbacks := append([]func(){}, s.cleanup...)
		s.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	})
}
