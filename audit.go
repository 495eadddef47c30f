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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onaiagency/leadsync/model"
)

const auditBufferSize = 256

// AsyncAuditLogger decouples audit writes from the hot path. Entries go into
// a bounded buffer drained by one writer goroutine; when the buffer is full
// the entry is dropped with a log line rather than blocking a worker.
type AsyncAuditLogger struct {
	sink    AuditLogger
	entries chan *model.IntegrationLogEntry
	done    chan struct{}
	once    sync.Once
}

// NewAsyncAuditLogger starts the writer goroutine over the given sink.
func NewAsyncAuditLogger(sink AuditLogger) *AsyncAuditLogger {
	a := &AsyncAuditLogger{
		sink:    sink,
		entries: make(chan *model.IntegrationLogEntry, auditBufferSize),
		done:    make(chan struct{}),
	}
	go a.drain()
	return a
}

// RecordIntegrationLog enqueues the entry for background persistence. Never
// blocks and never returns an error to the caller.
func (a *AsyncAuditLogger) RecordIntegrationLog(_ context.Context, entry *model.IntegrationLogEntry) error {
	select {
	case a.entries <- entry:
	default:
		logrus.WithField("action", entry.Action).Warn("audit buffer full, entry dropped")
	}
	return nil
}

// Close flushes buffered entries and stops the writer.
func (a *AsyncAuditLogger) Close() {
	a.once.Do(func() {
		close(a.entries)
		<-a.done
	})
}

func (a *AsyncAuditLogger) drain() {
	defer close(a.done)
	for entry := range a.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.sink.RecordIntegrationLog(ctx, entry); err != nil {
			logrus.WithError(err).Error("failed to persist integration log")
		}
		cancel()
	}
}
