// Package metrics provides a process-wide, thread-safe recorder of call
// counts, durations, and recent errors per named operation. Percentiles are
// computed on demand from a bounded window of retained samples, so
// long-running processes do not grow memory without bound.
package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultMaxSamples is the per-operation duration sample retention bound.
	DefaultMaxSamples = 1000
	// DefaultMaxRecentErrors is the per-operation error retention bound.
	DefaultMaxRecentErrors = 10
)

// sample is one recorded call.
type sample struct {
	duration time.Duration
	at       time.Time
	success  bool
}

// ErrorSample is one retained error occurrence.
type ErrorSample struct {
	At      time.Time `json:"timestamp"`
	Message string    `json:"message"`
}

// operation accumulates stats for one operation name. Samples are a bounded
// FIFO: once maxSamples is reached the oldest sample is evicted.
type operation struct {
	samples      []sample
	recentErrors []ErrorSample
	successTotal int64
	errorTotal   int64
}

// Collector records operation timings from many concurrent pipeline runs.
type Collector struct {
	mu              sync.RWMutex
	ops             map[string]*operation
	maxSamples      int
	maxRecentErrors int
}

// NewCollector creates a collector with the given retention bounds.
// Non-positive bounds fall back to the defaults.
func NewCollector(maxSamples, maxRecentErrors int) *Collector {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if maxRecentErrors <= 0 {
		maxRecentErrors = DefaultMaxRecentErrors
	}
	return &Collector{
		ops:             make(map[string]*operation),
		maxSamples:      maxSamples,
		maxRecentErrors: maxRecentErrors,
	}
}

// Record stores one call outcome for the named operation.
func (c *Collector) Record(op string, d time.Duration, success bool, errMsg string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	o := c.ops[op]
	if o == nil {
		o = &operation{}
		c.ops[op] = o
	}

	o.samples = append(o.samples, sample{duration: d, at: now, success: success})
	if len(o.samples) > c.maxSamples {
		o.samples = o.samples[1:]
	}

	if success {
		o.successTotal++
	} else {
		o.errorTotal++
		o.recentErrors = append(o.recentErrors, ErrorSample{At: now, Message: errMsg})
		if len(o.recentErrors) > c.maxRecentErrors {
			o.recentErrors = o.recentErrors[1:]
		}
	}
}

// Observe records the elapsed time since start for op. It is a convenience
// for deferring at the top of an instrumented call.
func (c *Collector) Observe(op string, start time.Time, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.Record(op, time.Since(start), err == nil, msg)
}

// Report summarizes one operation at report time. Durations are seconds.
type Report struct {
	Operation    string        `json:"operation"`
	Found        bool          `json:"found"`
	TotalCalls   int64         `json:"total_calls"`
	SuccessCount int64         `json:"success_count"`
	ErrorCount   int64         `json:"error_count"`
	SuccessRate  float64       `json:"success_rate"`
	AvgSeconds   float64       `json:"avg_duration"`
	MinSeconds   float64       `json:"min_duration"`
	MaxSeconds   float64       `json:"max_duration"`
	P50Seconds   float64       `json:"p50_duration"`
	P95Seconds   float64       `json:"p95_duration"`
	P99Seconds   float64       `json:"p99_duration"`
	RecentErrors []ErrorSample `json:"recent_errors,omitempty"`
}

// ReportFor returns the stats for one operation. An unknown operation name
// yields a zero-valued report with Found=false rather than an error.
func (c *Collector) ReportFor(op string) Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reportLocked(op)
}

// ReportAll returns stats for every tracked operation.
func (c *Collector) ReportAll() map[string]Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Report, len(c.ops))
	for name := range c.ops {
		out[name] = c.reportLocked(name)
	}
	return out
}

func (c *Collector) reportLocked(op string) Report {
	o := c.ops[op]
	if o == nil {
		return Report{Operation: op}
	}

	r := Report{
		Operation:    op,
		Found:        true,
		TotalCalls:   o.successTotal + o.errorTotal,
		SuccessCount: o.successTotal,
		ErrorCount:   o.errorTotal,
		RecentErrors: append([]ErrorSample(nil), o.recentErrors...),
	}
	if r.TotalCalls > 0 {
		r.SuccessRate = float64(r.SuccessCount) / float64(r.TotalCalls)
	}

	durations := make([]float64, 0, len(o.samples))
	for _, s := range o.samples {
		if s.success {
			durations = append(durations, s.duration.Seconds())
		}
	}
	if len(durations) == 0 {
		return r
	}

	sort.Float64s(durations)
	var sum float64
	for _, d := range durations {
		sum += d
	}
	r.AvgSeconds = sum / float64(len(durations))
	r.MinSeconds = durations[0]
	r.MaxSeconds = durations[len(durations)-1]
	r.P50Seconds = percentile(durations, 0.50)
	r.P95Seconds = percentile(durations, 0.95)
	r.P99Seconds = percentile(durations, 0.99)
	return r
}

// percentile uses nearest-rank selection over the pre-sorted sample set.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// Reset clears the stats for one operation. Unknown names are a no-op.
func (c *Collector) Reset(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ops, op)
}

// ResetAll clears every operation's stats.
func (c *Collector) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = make(map[string]*operation)
}
