// Package monitoring keeps in-process metrics for motiondeck and exposes
// them as JSON at /api/metrics.
package monitoring

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents different types of metrics.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric represents a single metric measurement.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector collects and manages application metrics.
type MetricsCollector struct {
	metrics    map[string]*Metric
	counters   map[string]*int64
	gauges     map[string]*float64
	histograms map[string]*Histogram
	mutex      sync.RWMutex
	prefix     string
	collectors []MetricCollector
	started    time.Time
}

// MetricCollector is implemented by sources that compute metrics on demand.
type MetricCollector interface {
	Collect() []Metric
	Name() string
}

// Histogram tracks distribution of values.
type Histogram struct {
	bounds  []float64
	buckets []int64
	count   int64
	sum     float64
	mutex   sync.RWMutex
}

// DefaultHistogramBuckets are the bucket upper bounds in seconds.
var DefaultHistogramBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(prefix string) *MetricsCollector {
	return &MetricsCollector{
		metrics:    make(map[string]*Metric),
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*float64),
		histograms: make(map[string]*Histogram),
		prefix:     prefix,
		started:    time.Now(),
	}
}

// Counter increments a counter metric.
func (mc *MetricsCollector) Counter(name string, labels map[string]string) {
	mc.CounterAdd(name, 1, labels)
}

// CounterAdd adds a value to a counter metric.
func (mc *MetricsCollector) CounterAdd(name string, value int64, labels map[string]string) {
	if mc == nil {
		return
	}
	fullName := mc.getFullName(name)
	key := getKey(fullName, labels)

	mc.mutex.RLock()
	counter, exists := mc.counters[key]
	mc.mutex.RUnlock()
	if exists {
		atomic.AddInt64(counter, value)
		return
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if counter, exists := mc.counters[key]; exists {
		atomic.AddInt64(counter, value)
		return
	}
	v := value
	mc.counters[key] = &v
	mc.metrics[key] = &Metric{Name: fullName, Type: MetricTypeCounter, Labels: copyLabels(labels)}
}

// Gauge sets a gauge metric value.
func (mc *MetricsCollector) Gauge(name string, value float64, labels map[string]string) {
	if mc == nil {
		return
	}
	fullName := mc.getFullName(name)
	key := getKey(fullName, labels)

	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if gauge, exists := mc.gauges[key]; exists {
		*gauge = value
		return
	}
	v := value
	mc.gauges[key] = &v
	mc.metrics[key] = &Metric{Name: fullName, Type: MetricTypeGauge, Labels: copyLabels(labels)}
}

// Histogram observes a value in a histogram.
func (mc *MetricsCollector) Histogram(name string, value float64, labels map[string]string) {
	if mc == nil {
		return
	}
	fullName := mc.getFullName(name)
	key := getKey(fullName, labels)

	mc.mutex.Lock()
	hist, exists := mc.histograms[key]
	if !exists {
		hist = NewHistogram(DefaultHistogramBuckets)
		mc.histograms[key] = hist
		mc.metrics[key] = &Metric{Name: fullName, Type: MetricTypeHistogram, Labels: copyLabels(labels)}
	}
	mc.mutex.Unlock()

	hist.Observe(value)
}

// Timer measures an operation and records it as name_duration_seconds.
func (mc *MetricsCollector) Timer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		mc.Histogram(name+"_duration_seconds", time.Since(start).Seconds(), labels)
	}
}

// RegisterCollector adds a custom metric collector.
func (mc *MetricsCollector) RegisterCollector(collector MetricCollector) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.collectors = append(mc.collectors, collector)
}

// CounterValue returns the current value of a counter, or 0.
func (mc *MetricsCollector) CounterValue(name string, labels map[string]string) int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	if c, ok := mc.counters[getKey(mc.getFullName(name), labels)]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}

// GaugeValue returns the current value of a gauge, or 0.
func (mc *MetricsCollector) GaugeValue(name string, labels map[string]string) float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	if g, ok := mc.gauges[getKey(mc.getFullName(name), labels)]; ok {
		return *g
	}
	return 0
}

// HistogramCount returns the number of observations of a histogram, or 0.
func (mc *MetricsCollector) HistogramCount(name string, labels map[string]string) int64 {
	mc.mutex.RLock()
	h, ok := mc.histograms[getKey(mc.getFullName(name), labels)]
	mc.mutex.RUnlock()
	if !ok {
		return 0
	}
	return h.GetCount()
}

// GatherMetrics collects all current metrics sorted by name.
func (mc *MetricsCollector) GatherMetrics() []Metric {
	mc.mutex.RLock()
	now := time.Now()
	var all []Metric

	for key, counter := range mc.counters {
		m := *mc.metrics[key]
		m.Value = float64(atomic.LoadInt64(counter))
		m.Timestamp = now
		all = append(all, m)
	}

	for key, gauge := range mc.gauges {
		m := *mc.metrics[key]
		m.Value = *gauge
		m.Timestamp = now
		all = append(all, m)
	}

	for key, hist := range mc.histograms {
		base := *mc.metrics[key]
		base.Timestamp = now
		bounds, counts := hist.GetBuckets()
		for i, bound := range bounds {
			m := base
			m.Name += "_bucket"
			m.Labels = copyLabels(base.Labels)
			m.Labels["le"] = strconv.FormatFloat(bound, 'g', -1, 64)
			m.Value = float64(counts[i])
			all = append(all, m)
		}
		count := base
		count.Name += "_count"
		count.Value = float64(hist.GetCount())
		sum := base
		sum.Name += "_sum"
		sum.Value = hist.GetSum()
		all = append(all, count, sum)
	}

	collectors := append([]MetricCollector(nil), mc.collectors...)
	mc.mutex.RUnlock()

	for _, c := range collectors {
		all = append(all, c.Collect()...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return getKey("", all[i].Labels) < getKey("", all[j].Labels)
	})
	return all
}

// WriteJSON writes the gathered metrics plus runtime figures to w.
func (mc *MetricsCollector) WriteJSON(w io.Writer) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"timestamp":      time.Now(),
		"uptime_seconds": time.Since(mc.started).Seconds(),
		"metrics":        mc.GatherMetrics(),
		"system": map[string]interface{}{
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": mem.Alloc,
			"gc_runs":      mem.NumGC,
		},
	})
}

func (mc *MetricsCollector) getFullName(name string) string {
	if mc.prefix == "" {
		return name
	}
	return mc.prefix + "_" + name
}

// getKey is stable regardless of map iteration order.
func getKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, labels[k])
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// NewHistogram creates a new histogram with the given bucket upper bounds.
func NewHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &Histogram{bounds: b, buckets: make([]int64, len(b))}
}

// Observe adds an observation to the histogram. Buckets are cumulative.
func (h *Histogram) Observe(value float64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count++
	h.sum += value
	for i, bound := range h.bounds {
		if value <= bound {
			h.buckets[i]++
		}
	}
}

// GetBuckets returns the bucket bounds and their cumulative counts.
func (h *Histogram) GetBuckets() ([]float64, []int64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return append([]float64(nil), h.bounds...), append([]int64(nil), h.buckets...)
}

// GetCount returns the total observation count.
func (h *Histogram) GetCount() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// GetSum returns the sum of all observations.
func (h *Histogram) GetSum() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sum
}
