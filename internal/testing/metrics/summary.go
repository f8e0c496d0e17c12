package metrics

import (
	"math"
	"sort"
	"time"
)

// EndpointSummary holds latency statistics for one "METHOD path" group.
// Timing fields are nil when no call in the group carried an elapsed time.
type EndpointSummary struct {
	Endpoint string   `json:"endpoint"`
	Count    int      `json:"count"`
	AvgMS    *float64 `json:"avg_ms"`
	P95MS    *float64 `json:"p95_ms"`
	MinMS    *float64 `json:"min_ms"`
	MaxMS    *float64 `json:"max_ms"`
}

// RunSummary is the run-level reduction of every recorded call.
type RunSummary struct {
	RunID         string            `json:"run_id"`
	GeneratedAt   time.Time         `json:"generated_at"`
	TotalRequests int               `json:"total_requests"`
	Success       int               `json:"success"`
	Failed        int               `json:"failed"`
	SuccessRate   float64           `json:"success_rate"`
	Endpoints     []EndpointSummary `json:"endpoints"`
}

// Percentile returns the p-th percentile (0..1) of values using linear
// interpolation between closest ranks. ok is false for an empty input.
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	k := float64(n-1) * p
	f := int(math.Floor(k))
	c := f + 1
	if c > n-1 {
		c = n - 1
	}

	if f == c {
		idx := int(math.Round(k))
		if idx > n-1 {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		return sorted[idx], true
	}

	return sorted[f] + (sorted[c]-sorted[f])*(k-float64(f)), true
}

// Summarize reduces metrics into a RunSummary. ok is false when there is
// nothing to summarize.
func Summarize(runID string, metrics []CallMetric) (*RunSummary, bool) {
	if len(metrics) == 0 {
		return nil, false
	}

	summary := &RunSummary{
		RunID:         runID,
		GeneratedAt:   time.Now().UTC(),
		TotalRequests: len(metrics),
	}

	groups := make(map[string][]float64)
	counts := make(map[string]int)

	for i := range metrics {
		m := &metrics[i]
		if IsSuccess(m.Status) {
			summary.Success++
		}

		key := m.Key()
		counts[key]++
		if m.ElapsedMS != nil {
			groups[key] = append(groups[key], *m.ElapsedMS)
		}
	}

	summary.Failed = summary.TotalRequests - summary.Success
	if summary.TotalRequests > 0 {
		summary.SuccessRate = round2(float64(summary.Success) / float64(summary.TotalRequests) * 100)
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	summary.Endpoints = make([]EndpointSummary, 0, len(keys))
	for _, key := range keys {
		summary.Endpoints = append(summary.Endpoints, summarizeEndpoint(key, counts[key], groups[key]))
	}

	return summary, true
}

func summarizeEndpoint(key string, count int, elapsed []float64) EndpointSummary {
	es := EndpointSummary{Endpoint: key, Count: count}
	if len(elapsed) == 0 {
		return es
	}

	var (
		total = 0.0
		lo    = elapsed[0]
		hi    = elapsed[0]
	)

	for _, v := range elapsed {
		total += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	avg := round2(total / float64(len(elapsed)))
	es.AvgMS = &avg
	es.MinMS = &lo
	es.MaxMS = &hi

	if p95, ok := Percentile(elapsed, 0.95); ok {
		p95 = round2(p95)
		es.P95MS = &p95
	}

	return es
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
