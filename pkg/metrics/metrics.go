// Package metrics collects buffer pool operation counters and timings for
// the admin surface's /stats and /metrics endpoints.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates fetch/flush/eviction counters and latency
// histograms for a single buffer pool instance.
type Collector struct {
	fetchesExecuted uint64
	fetchesFailed   uint64
	totalFetchTime  uint64 // nanoseconds

	flushesExecuted uint64
	flushesFailed   uint64
	totalFlushTime  uint64 // nanoseconds

	evictions uint64

	fetchTimings *TimingHistogram
	flushTimings *TimingHistogram

	startTime time.Time
}

// NewCollector creates a metrics collector with fresh histograms and a
// start time used for uptime reporting.
func NewCollector() *Collector {
	return &Collector{
		fetchTimings: NewTimingHistogram(1000),
		flushTimings: NewTimingHistogram(1000),
		startTime:    time.Now(),
	}
}

// RecordFetch records one FetchPageRead/FetchPageWrite call.
func (c *Collector) RecordFetch(duration time.Duration, success bool) {
	atomic.AddUint64(&c.fetchesExecuted, 1)
	if !success {
		atomic.AddUint64(&c.fetchesFailed, 1)
	}
	atomic.AddUint64(&c.totalFetchTime, uint64(duration.Nanoseconds()))
	c.fetchTimings.Record(duration)
}

// RecordFlush records one FlushPage/FlushAll call.
func (c *Collector) RecordFlush(duration time.Duration, success bool) {
	atomic.AddUint64(&c.flushesExecuted, 1)
	if !success {
		atomic.AddUint64(&c.flushesFailed, 1)
	}
	atomic.AddUint64(&c.totalFlushTime, uint64(duration.Nanoseconds()))
	c.flushTimings.Record(duration)
}

// RecordEviction records one frame reclaimed by the eviction policy.
func (c *Collector) RecordEviction() {
	atomic.AddUint64(&c.evictions, 1)
}

// GetMetrics returns a snapshot of all collected metrics.
func (c *Collector) GetMetrics() map[string]interface{} {
	fetchesExecuted := atomic.LoadUint64(&c.fetchesExecuted)
	fetchesFailed := atomic.LoadUint64(&c.fetchesFailed)
	totalFetchTime := atomic.LoadUint64(&c.totalFetchTime)

	flushesExecuted := atomic.LoadUint64(&c.flushesExecuted)
	flushesFailed := atomic.LoadUint64(&c.flushesFailed)
	totalFlushTime := atomic.LoadUint64(&c.totalFlushTime)

	evictions := atomic.LoadUint64(&c.evictions)

	var avgFetchMs, avgFlushMs float64
	if fetchesExecuted > 0 {
		avgFetchMs = float64(totalFetchTime) / float64(fetchesExecuted) / 1e6
	}
	if flushesExecuted > 0 {
		avgFlushMs = float64(totalFlushTime) / float64(flushesExecuted) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.startTime).Seconds(),
		"fetches": map[string]interface{}{
			"total":              fetchesExecuted,
			"failed":             fetchesFailed,
			"success_rate":       successRate(fetchesExecuted, fetchesFailed),
			"avg_duration_ms":    avgFetchMs,
			"timing_histogram":   c.fetchTimings.GetBuckets(),
			"timing_percentiles": c.fetchTimings.GetPercentiles(),
		},
		"flushes": map[string]interface{}{
			"total":              flushesExecuted,
			"failed":             flushesFailed,
			"success_rate":       successRate(flushesExecuted, flushesFailed),
			"avg_duration_ms":    avgFlushMs,
			"timing_histogram":   c.flushTimings.GetBuckets(),
			"timing_percentiles": c.flushTimings.GetPercentiles(),
		},
		"evictions": evictions,
	}
}

// Reset zeroes all counters and histograms and restarts the uptime clock.
func (c *Collector) Reset() {
	atomic.StoreUint64(&c.fetchesExecuted, 0)
	atomic.StoreUint64(&c.fetchesFailed, 0)
	atomic.StoreUint64(&c.totalFetchTime, 0)
	atomic.StoreUint64(&c.flushesExecuted, 0)
	atomic.StoreUint64(&c.flushesFailed, 0)
	atomic.StoreUint64(&c.totalFlushTime, 0)
	atomic.StoreUint64(&c.evictions, 0)

	c.fetchTimings = NewTimingHistogram(1000)
	c.flushTimings = NewTimingHistogram(1000)
	c.startTime = time.Now()
}

func successRate(total, failed uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-failed) / float64(total) * 100
}

// TimingHistogram stores timing data in fixed latency buckets plus a
// bounded window of recent samples for percentile estimation.
type TimingHistogram struct {
	bucket0_1ms      uint64
	bucket1_10ms     uint64
	bucket10_100ms   uint64
	bucket100_1000ms uint64
	bucket1000ms     uint64

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewTimingHistogram creates a histogram retaining at most maxRecent
// samples for percentile calculation.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// Record adds a duration to the histogram.
func (th *TimingHistogram) Record(duration time.Duration) {
	ms := duration.Milliseconds()
	switch {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, duration)
}

// GetBuckets returns the histogram bucket counts.
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// GetPercentiles calculates P50, P95, P99 from recent samples.
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	return map[string]time.Duration{
		"p50": sorted[len(sorted)*50/100],
		"p95": sorted[len(sorted)*95/100],
		"p99": sorted[len(sorted)*99/100],
	}
}
