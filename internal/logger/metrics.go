package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "opencall"

// Metrics tracks operational metrics including counters, gauges, and timings.
// Each metric is registered lazily on first use in a private Prometheus registry.
// All operations are thread-safe.
//
// Names use dots as separators ("fetch.retries"); they are exported to Prometheus
// as opencall_fetch_retries.
type Metrics struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
	extremes   map[string]*extreme
}

// extreme keeps the bounds a histogram does not expose.
type extreme struct {
	min, max time.Duration
}

var defaultMetrics *Metrics

func init() {
	defaultMetrics = NewMetrics()
}

// NewMetrics creates a metrics tracker backed by a fresh registry.
func NewMetrics() *Metrics {
	return &Metrics{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
		extremes:   make(map[string]*extreme),
	}
}

// Registry exposes the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// metricName converts "store.add_event.ok" into "store_add_event_ok".
func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// IncrCounter increments a counter by 1, creating it on first use.
func (m *Metrics) IncrCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds n to a counter, creating it on first use. Negative values are ignored.
func (m *Metrics) AddCounter(name string, n float64) {
	if n < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      metricName(name),
			Help:      fmt.Sprintf("Counter %s.", name),
		})
		m.register(name, c)
		m.counters[name] = c
	}
	c.Add(n)
}

// SetGauge sets a gauge to the specified value, overwriting any previous value.
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      metricName(name),
			Help:      fmt.Sprintf("Gauge %s.", name),
		})
		m.register(name, g)
		m.gauges[name] = g
	}
	g.Set(value)
}

// RecordTiming records a duration measurement in a histogram measured in seconds.
// Statistics (count, total, average, min, max) are computed in GetSnapshot.
func (m *Metrics) RecordTiming(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      metricName(name) + "_seconds",
			Help:      fmt.Sprintf("Duration of %s in seconds.", name),
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		})
		m.register(name, h)
		m.histograms[name] = h
		m.extremes[name] = &extreme{min: duration, max: duration}
	}
	h.Observe(duration.Seconds())

	e := m.extremes[name]
	if duration < e.min {
		e.min = duration
	}
	if duration > e.max {
		e.max = duration
	}
}

// register adds a collector, tolerating a name clash between metric kinds by
// leaving the clashing collector unregistered. Callers hold m.mu.
func (m *Metrics) register(name string, c prometheus.Collector) {
	if err := m.registry.Register(c); err != nil {
		Warn("metric not exported", Fields{"metric": name, "reason": err.Error()})
	}
}

// GetSnapshot returns a snapshot of all metrics as a map containing:
//   - "counters": map of counter names to values
//   - "gauges": map of gauge names to values
//   - "timings": map of timing names to statistics (count, total, average, min, max)
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]interface{})

	counters := make(map[string]int64)
	for name, c := range m.counters {
		var pb dto.Metric
		if err := c.Write(&pb); err == nil {
			counters[name] = int64(pb.GetCounter().GetValue())
		}
	}
	snapshot["counters"] = counters

	gauges := make(map[string]float64)
	for name, g := range m.gauges {
		var pb dto.Metric
		if err := g.Write(&pb); err == nil {
			gauges[name] = pb.GetGauge().GetValue()
		}
	}
	snapshot["gauges"] = gauges

	timings := make(map[string]map[string]interface{})
	for name, h := range m.histograms {
		var pb dto.Metric
		if err := h.Write(&pb); err != nil {
			continue
		}
		count := pb.GetHistogram().GetSampleCount()
		if count == 0 {
			continue
		}
		total := time.Duration(pb.GetHistogram().GetSampleSum() * float64(time.Second))
		e := m.extremes[name]

		timings[name] = map[string]interface{}{
			"count":   int(count),
			"total":   total.Round(time.Microsecond).String(),
			"average": (total / time.Duration(count)).Round(time.Microsecond).String(),
			"min":     e.min.String(),
			"max":     e.max.String(),
		}
	}
	snapshot["timings"] = timings

	return snapshot
}

// WriteTextfile writes every registered metric in the Prometheus text format to
// path, for collection by the node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Package-level metrics functions using the default metrics tracker

// SetDefaultMetrics replaces the package-level metrics tracker.
func SetDefaultMetrics(m *Metrics) {
	defaultMetrics = m
}

// DefaultMetrics returns the package-level metrics tracker.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

// IncrCounter increments a counter on the default metrics tracker.
func IncrCounter(name string) {
	defaultMetrics.IncrCounter(name)
}

// SetGauge sets a gauge on the default metrics tracker.
func SetGauge(name string, value float64) {
	defaultMetrics.SetGauge(name, value)
}

// RecordTiming records a timing on the default metrics tracker.
func RecordTiming(name string, duration time.Duration) {
	defaultMetrics.RecordTiming(name, duration)
}

// GetMetricsSnapshot returns a snapshot of all metrics from the default tracker.
func GetMetricsSnapshot() map[string]interface{} {
	return defaultMetrics.GetSnapshot()
}
