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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/model"
)

func TestEnqueueRunRollsBackProgressOnQueueFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// The queue talks to a redis that is already gone, so the enqueue fails
	// after the run has been registered.
	deadMr, err := miniredis.Run()
	require.NoError(t, err)
	deadClient := redis.NewClient(&redis.Options{Addr: deadMr.Addr()})
	deadMr.Close()

	conf := config.QueueConfig{ProgressTTLHours: 24}
	engine := &LeadSync{
		queue:   NewJobQueue(deadClient, conf),
		tracker: NewProgressTracker(client, conf),
	}

	_, err = engine.EnqueueRun(context.Background(), []model.LeadPayload{{
		Name:  "Aigerim",
		Phone: "77771234567",
	}})
	require.Error(t, err)

	assert.Empty(t, mr.Keys(), "no progress record should survive a failed enqueue")
}

func TestEnqueueRunRejectsEmptyBatch(t *testing.T) {
	engine := &LeadSync{}

	_, err := engine.EnqueueRun(context.Background(), nil)
	assert.Error(t, err)
}
