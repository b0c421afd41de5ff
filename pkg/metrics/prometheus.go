package metrics

import (
	"fmt"
	"io"
)

// PrometheusExporter renders a Collector's metrics (plus a live
// *storage.BufferPool snapshot supplied by the caller) in Prometheus text
// exposition format: https://prometheus.io/docs/instrumenting/exposition_formats/
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates an exporter over collector.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		namespace: "pagecache",
	}
}

// SetNamespace overrides the default metric name prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes the collector's counters, plus the pool stats passed
// in poolStats (as produced by BufferPool.Stats/ShardedBufferPool.Stats),
// to w.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer, poolStats map[string]interface{}) error {
	m := pe.collector.GetMetrics()

	if err := pe.writeGauge(w, "uptime_seconds", "Process uptime in seconds", m["uptime_seconds"].(float64)); err != nil {
		return err
	}

	fetches := m["fetches"].(map[string]interface{})
	if err := pe.writeCounter(w, "fetches_total", "Total FetchPageRead/FetchPageWrite calls", fetches["total"].(uint64)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "fetches_failed_total", "Total failed fetch calls", fetches["failed"].(uint64)); err != nil {
		return err
	}
	if err := pe.writeHistogram(w, "fetch_duration_seconds", "Fetch latency histogram", pe.collector.fetchTimings); err != nil {
		return err
	}

	flushes := m["flushes"].(map[string]interface{})
	if err := pe.writeCounter(w, "flushes_total", "Total FlushPage/FlushAll calls", flushes["total"].(uint64)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "flushes_failed_total", "Total failed flush calls", flushes["failed"].(uint64)); err != nil {
		return err
	}
	if err := pe.writeHistogram(w, "flush_duration_seconds", "Flush latency histogram", pe.collector.flushTimings); err != nil {
		return err
	}

	if err := pe.writeCounter(w, "evictions_total", "Total frames reclaimed by the eviction policy", m["evictions"].(uint64)); err != nil {
		return err
	}

	for name, help := range map[string]string{
		"capacity":    "Buffer pool capacity in frames",
		"resident":    "Pages currently resident in the pool",
		"hits":        "Page table hits",
		"misses":      "Page table misses",
		"queue_depth": "Disk scheduler queue depth",
	} {
		v, ok := poolStats[name]
		if !ok {
			continue
		}
		if err := pe.writeGauge(w, name, help, toFloat64(v)); err != nil {
			return err
		}
	}

	return nil
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case uint64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeHistogram writes cumulative Prometheus-style histogram buckets from
// a TimingHistogram's fixed latency buckets.
func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name

	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	buckets := th.GetBuckets()
	var cumulative uint64

	for _, b := range []struct {
		key string
		le  string
	}{
		{"0-1ms", "0.001"},
		{"1-10ms", "0.01"},
		{"10-100ms", "0.1"},
		{"100-1000ms", "1.0"},
		{">1000ms", "+Inf"},
	} {
		cumulative += buckets[b.key]
		if _, err := fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", metricName, b.le, cumulative); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative)
	return err
}
