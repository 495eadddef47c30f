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
package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/onaiagency/leadsync"
	model2 "github.com/onaiagency/leadsync/api/model"
	"github.com/onaiagency/leadsync/internal/syncerror"
)

// CreateRun enqueues a batch of leads as a new sync run.
func (a Api) CreateRun(c *gin.Context) {
	var req model2.CreateRun
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateCreateRun(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID, err := a.engine.EnqueueRun(c.Request.Context(), req.ToLeadPayloads())
	if err != nil {
		c.JSON(syncerror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run_id": runID,
		"total":  len(req.Leads),
	})
}

// GetRun returns the run's progress snapshot.
func (a Api) GetRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /sync/runs/:id"})
		return
	}

	progress, err := a.engine.GetRunStatus(c.Request.Context(), id)
	if errors.Is(err, leadsync.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(syncerror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// StreamRun streams progress snapshots over SSE until the run completes or
// the client disconnects.
func (a Api) StreamRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /sync/runs/:id/stream"})
		return
	}

	events, err := a.engine.StreamRunStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		progress, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("progress", progress)
		return true
	})
}

// GetLimiterStats reports the CRM scheduler's snapshot.
func (a Api) GetLimiterStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.engine.LimiterStats())
}

// GetQueueDepth reports ready and leased job counts.
func (a Api) GetQueueDepth(c *gin.Context) {
	ready, leased, err := a.engine.QueueDepth(c.Request.Context())
	if err != nil {
		c.JSON(syncerror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": ready, "leased": leased})
}

// GetRecentFailures returns the newest failed integration log entries.
func (a Api) GetRecentFailures(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	entries, err := a.engine.RecentFailures(c.Request.Context(), limit)
	if err != nil {
		c.JSON(syncerror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetServiceStats aggregates integration call stats over a rolling window.
func (a Api) GetServiceStats(c *gin.Context) {
	window, err := strconv.Atoi(c.DefaultQuery("window_hours", "24"))
	if err != nil || window <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window_hours must be a positive integer"})
		return
	}

	stats, err := a.engine.ServiceStats(c.Request.Context(), window)
	if err != nil {
		c.JSON(syncerror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
