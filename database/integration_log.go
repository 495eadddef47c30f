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

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/onaiagency/leadsync/model"
)

const serviceStatsCacheTTL = time.Minute

// RecordIntegrationLog appends one audit entry. Entries are immutable; there
// is no update path.
func (d Datasource) RecordIntegrationLog(ctx context.Context, entry *model.IntegrationLogEntry) error {
	if entry.LogID == "" {
		entry.LogID = model.GenerateUUIDWithSuffix("ilog")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO integration_logs
			(log_id, service_name, action, status, related_entity_type,
			 related_entity_id, duration_ms, error_message, error_code,
			 retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.LogID, entry.ServiceName, entry.Action, entry.Status,
		entry.RelatedEntityType, entry.RelatedEntityID, entry.DurationMs,
		entry.ErrorMessage, entry.ErrorCode, entry.RetryCount, entry.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to record integration log")
	}
	return nil
}

// GetRecentFailures returns the newest failed entries, newest first.
func (d Datasource) GetRecentFailures(ctx context.Context, limit int) ([]model.IntegrationLogEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT log_id, service_name, action, status,
		       COALESCE(related_entity_type, ''), COALESCE(related_entity_id, ''),
		       duration_ms, COALESCE(error_message, ''), COALESCE(error_code, ''),
		       retry_count, created_at
		FROM integration_logs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, model.LogStatusFailed, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch recent failures")
	}
	defer rows.Close()

	entries := []model.IntegrationLogEntry{}
	for rows.Next() {
		var entry model.IntegrationLogEntry
		err = rows.Scan(&entry.LogID, &entry.ServiceName, &entry.Action, &entry.Status,
			&entry.RelatedEntityType, &entry.RelatedEntityID, &entry.DurationMs,
			&entry.ErrorMessage, &entry.ErrorCode, &entry.RetryCount, &entry.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan integration log")
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating integration logs")
	}
	return entries, nil
}

// GetServiceStats aggregates per-service call stats over the window. The
// aggregation is cached briefly; operators poll this from dashboards.
func (d Datasource) GetServiceStats(ctx context.Context, windowHours int) ([]model.ServiceStats, error) {
	cacheKey := fmt.Sprintf("leadsync:stats:services:%dh", windowHours)
	if d.Cache != nil {
		var cached []model.ServiceStats
		if err := d.Cache.Get(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT service_name,
		       COUNT(*) AS total_calls,
		       COUNT(*) FILTER (WHERE status = $1) AS succeeded,
		       COUNT(*) FILTER (WHERE status = $2) AS failed,
		       COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM integration_logs
		WHERE created_at > NOW() - make_interval(hours => $3)
		GROUP BY service_name
		ORDER BY service_name
	`, model.LogStatusSuccess, model.LogStatusFailed, windowHours)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate service stats")
	}
	defer rows.Close()

	stats := []model.ServiceStats{}
	for rows.Next() {
		var s model.ServiceStats
		if err := rows.Scan(&s.ServiceName, &s.TotalCalls, &s.Succeeded, &s.Failed, &s.AvgDurationMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan service stats")
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating service stats")
	}

	if d.Cache != nil && len(stats) > 0 {
		if err := d.Cache.Set(ctx, cacheKey, stats, serviceStatsCacheTTL); err != nil {
			return stats, nil
		}
	}
	return stats, nil
}
