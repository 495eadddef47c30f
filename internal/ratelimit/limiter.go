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

// Package ratelimit implements the shared admission scheduler in front of the
// external CRM. Every outbound call from every worker goes through one
// Limiter, so the aggregate rate honors the provider budget no matter how
// many workers run concurrently.
//
// A call is dispatched only when all three hold:
//   - fewer than maxConcurrent calls are in flight,
//   - at least minInterval has elapsed since the last dispatch,
//   - the rolling reservoir is not exhausted.
//
// Calls are admitted strictly in submission order. The scheduler only ever
// delays a call; it never drops one or times it out on its own.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLimiterClosed is returned to calls still waiting for admission when the
// limiter shuts down.
var ErrLimiterClosed = errors.New("rate limiter closed")

const (
	stateQueued int32 = iota
	stateDispatched
	stateCanceled
)

// Options configures a Limiter. Zero fields fall back to permissive values
// so a partially configured limiter still dispatches.
type Options struct {
	MinInterval   time.Duration
	MaxConcurrent int
	// Reservoir is the number of calls allowed per refill window. The
	// reservoir refills to capacity on a fixed timer, independent of call
	// activity, matching the provider's rolling per-minute quota.
	ReservoirCapacity int
	ReservoirRefill   time.Duration
}

// Stats is the operational snapshot exposed to the API layer.
type Stats struct {
	Running int `json:"running"`
	Queued  int `json:"queued"`
}

type call struct {
	ready chan struct{}
	state atomic.Int32
}

// Limiter is a FIFO admission gate. Construct once per process with New and
// share the instance; per-test instances keep tests isolated.
type Limiter struct {
	opts Options

	submit  chan *call
	release chan struct{}
	stop    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	running int
	queued  int
}

func New(opts Options) *Limiter {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.ReservoirCapacity <= 0 {
		opts.ReservoirCapacity = int(^uint(0) >> 1)
	}
	if opts.ReservoirRefill <= 0 {
		opts.ReservoirRefill = time.Minute
	}

	l := &Limiter{
		opts:    opts,
		submit:  make(chan *call),
		release: make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go l.loop()
	return l
}

// Schedule blocks until the budget permits dispatch, runs fn, and returns
// its error unchanged. Blocking one caller never blocks the others. The
// context only covers the waiting phase; once dispatched, fn runs to
// completion with its own timeout semantics.
func (l *Limiter) Schedule(ctx context.Context, fn func() error) error {
	c := &call{ready: make(chan struct{})}

	select {
	case l.submit <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrLimiterClosed
	}

	select {
	case <-c.ready:
	case <-ctx.Done():
		if c.state.CompareAndSwap(stateQueued, stateCanceled) {
			return ctx.Err()
		}
		// Lost the race: the dispatcher already admitted this call, so the
		// in-flight slot must be handed back before returning. The stop case
		// covers a dispatcher that has already exited.
		<-c.ready
		select {
		case l.release <- struct{}{}:
		case <-l.stop:
		}
		return ctx.Err()
	case <-l.stop:
		return ErrLimiterClosed
	}

	err := fn()
	select {
	case l.release <- struct{}{}:
	case <-l.stop:
	}
	return err
}

// Stats returns the number of in-flight calls and calls waiting for
// admission.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Running: l.running, Queued: l.queued}
}

// Close stops the dispatcher. Calls waiting for admission are released with
// ErrLimiterClosed; in-flight calls finish normally.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) loop() {
	var pending []*call
	reservoir := l.opts.ReservoirCapacity
	running := 0
	var lastDispatch time.Time

	ticker := time.NewTicker(l.opts.ReservoirRefill)
	defer ticker.Stop()

	for {
		// Drop canceled waiters from the head before computing eligibility.
		for len(pending) > 0 && pending[0].state.Load() == stateCanceled {
			pending = pending[1:]
		}

		var spacing <-chan time.Time
		if len(pending) > 0 && running < l.opts.MaxConcurrent && reservoir > 0 {
			wait := l.opts.MinInterval - time.Since(lastDispatch)
			if wait <= 0 {
				head := pending[0]
				if head.state.CompareAndSwap(stateQueued, stateDispatched) {
					pending = pending[1:]
					reservoir--
					running++
					lastDispatch = time.Now()
					close(head.ready)
				} else {
					pending = pending[1:]
				}
				l.setStats(running, len(pending))
				continue
			}
			spacing = time.After(wait)
		}

		select {
		case c := <-l.submit:
			pending = append(pending, c)
		case <-l.release:
			running--
		case <-ticker.C:
			reservoir = l.opts.ReservoirCapacity
		case <-spacing:
		case <-l.stop:
			return
		}
		l.setStats(running, len(pending))
	}
}

func (l *Limiter) setStats(running, queued int) {
	l.mu.Lock()
	l.running = running
	l.queued = queued
	l.mu.Unlock()
}
