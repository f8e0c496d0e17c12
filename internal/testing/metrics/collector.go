// Package metrics collects per-call API metrics for a run and reduces them into
// per-endpoint latency statistics.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CallMetric captures one observed HTTP call.
type CallMetric struct {
	TestID        string   `json:"test_id"`
	Endpoint      string   `json:"endpoint"`
	Method        string   `json:"method"`
	Status        int      `json:"status"`
	ElapsedMS     *float64 `json:"elapsed_ms"`
	Success       bool     `json:"success"`
	SizeBytes     int64    `json:"size_bytes"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// IsSuccess reports whether status falls in the [200, 400) range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 400
}

// Key returns the grouping key "METHOD path".
func (m *CallMetric) Key() string {
	return m.Method + " " + m.Endpoint
}

// Collector accumulates call metrics for a run. Implementations are safe for
// concurrent use; per-worker collectors can be combined with Merge.
type Collector interface {
	Start(ctx context.Context) error
	Stop() error
	Record(metric CallMetric)
	Merge(other Collector)
	Metrics() []CallMetric
	Len() int
	Reset()
	Started() time.Time
}

// collector implements Collector interface
type collector struct {
	log       logrus.FieldLogger
	mu        sync.RWMutex
	metrics   []CallMetric
	startTime time.Time
}

// NewCollector creates a new metrics collector
func NewCollector(log logrus.FieldLogger) Collector {
	return &collector{
		log:     log.WithField("component", "metrics_collector"),
		metrics: make([]CallMetric, 0, 64),
	}
}

func (c *collector) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()

	c.log.Debug("metrics collector started")

	return nil
}

func (c *collector) Stop() error {
	c.log.WithField("calls", c.Len()).Debug("metrics collector stopped")

	return nil
}

func (c *collector) Record(metric CallMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, metric)
}

// Merge appends every metric of other. Order across collectors carries no
// meaning beyond grouping.
func (c *collector) Merge(other Collector) {
	if other == nil || other == Collector(c) {
		return
	}

	incoming := other.Metrics()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, incoming...)
}

func (c *collector) Metrics() []CallMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	// Return copy to avoid race conditions
	result := make([]CallMetric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

func (c *collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metrics)
}

func (c *collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = c.metrics[:0]
}

func (c *collector) Started() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startTime
}

// Compile-time interface compliance check
var _ Collector = (*collector)(nil)
