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

package model

import (
	"math"
	"time"
)

// RunProgress is the aggregate state of one sync run. Total, Succeeded and
// Failed are the stored counters; Pending and Percentage are derived so the
// invariant succeeded + failed + pending == total holds by construction.
type RunProgress struct {
	RunID      string    `json:"run_id"`
	Total      int64     `json:"total"`
	Succeeded  int64     `json:"succeeded"`
	Failed     int64     `json:"failed"`
	Pending    int64     `json:"pending"`
	Percentage int       `json:"percentage"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Finalize recomputes the derived fields from the stored counters.
func (p *RunProgress) Finalize() {
	p.Pending = p.Total - p.Succeeded - p.Failed
	if p.Pending < 0 {
		p.Pending = 0
	}
	if p.Total == 0 {
		p.Percentage = 0
		return
	}
	p.Percentage = int(math.Round(float64(p.Succeeded+p.Failed) / float64(p.Total) * 100))
}

// Complete reports whether every job in the run has reached a terminal state.
func (p *RunProgress) Complete() bool {
	return p.Total > 0 && p.Succeeded+p.Failed >= p.Total
}
