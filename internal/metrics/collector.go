// Package metrics provides collection and aggregation of pipeline stage
// measurements.
package metrics

import (
	"sync"
	"time"
)

// StageResult records one pipeline stage execution.
type StageResult struct {
	Stage         string        `json:"stage"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	Duration      time.Duration `json:"duration"`
	RowsIn        int           `json:"rows_in"`
	RowsOut       int           `json:"rows_out"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Summary aggregates the stages of a full run.
type Summary struct {
	Stages        int           `json:"stages"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	TotalDuration time.Duration `json:"total_duration"`
	SlowestStage  string        `json:"slowest_stage,omitempty"`
}

// Collector gathers stage results as the pipeline runs.
type Collector struct {
	mu      sync.RWMutex
	results []StageResult
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		results: make([]StageResult, 0),
	}
}

// Add appends a stage result.
func (c *Collector) Add(r StageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

// Results returns a copy of all recorded stage results in execution order.
func (c *Collector) Results() []StageResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results := make([]StageResult, len(c.results))
	copy(results, c.results)
	return results
}

// Summarize aggregates the recorded stages.
func (c *Collector) Summarize() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := Summary{Stages: len(c.results)}
	var slowest time.Duration

	for _, r := range c.results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.TotalDuration += r.Duration
		if r.Duration > slowest {
			slowest = r.Duration
			summary.SlowestStage = r.Stage
		}
	}

	return summary
}
