package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts sync round trips. A nil *Metrics records nothing.
type Metrics struct {
	pollsTotal   *prometheus.CounterVec
	pushesTotal  *prometheus.CounterVec
	deletesTotal *prometheus.CounterVec
	mergedTotal  *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
}

// NewMetrics creates the sync metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "station_sync_polls_total",
			Help: "Total number of polls against the coordination service",
		}, []string{"kind", "result"}),
		pushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "station_sync_pushes_total",
			Help: "Total number of entry and fault pushes",
		}, []string{"kind", "result"}),
		deletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "station_sync_deletes_total",
			Help: "Total number of remote delete requests",
		}, []string{"kind", "result"}),
		mergedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "station_sync_merged_total",
			Help: "Total number of records merged from the coordination service",
		}, []string{"kind"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "station_sync_poll_duration_seconds",
			Help:    "Time taken by a poll round trip",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.pollsTotal.Describe(ch)
	m.pushesTotal.Describe(ch)
	m.deletesTotal.Describe(ch)
	m.mergedTotal.Describe(ch)
	m.pollDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.pollsTotal.Collect(ch)
	m.pushesTotal.Collect(ch)
	m.deletesTotal.Collect(ch)
	m.mergedTotal.Collect(ch)
	m.pollDuration.Collect(ch)
}

func (m *Metrics) RecordPoll(kind, result string, seconds float64) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(kind, result).Inc()
	m.pollDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) RecordPush(kind, result string) {
	if m == nil {
		return
	}
	m.pushesTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordDelete(kind, result string) {
	if m == nil {
		return
	}
	m.deletesTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordMerged(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mergedTotal.WithLabelValues(kind).Add(float64(n))
}
