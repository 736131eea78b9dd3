package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector backs MetricsCollector with real counters
// and histograms, registered against a caller-supplied registry and
// exposed by the api package's /metrics handler via promhttp.
type PrometheusMetricsCollector struct {
	opTotal     *prometheus.CounterVec
	opErrors    *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	searchK     prometheus.Histogram
}

// NewPrometheusMetricsCollector creates and registers the collector's
// metrics against reg.
func NewPrometheusMetricsCollector(reg prometheus.Registerer) *PrometheusMetricsCollector {
	c := &PrometheusMetricsCollector{
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecdb",
			Name:      "operations_total",
			Help:      "Total number of service operations by kind.",
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecdb",
			Name:      "operation_errors_total",
			Help:      "Total number of failed service operations by kind.",
		}, []string{"op"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vecdb",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		searchK: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vecdb",
			Name:      "search_k",
			Help:      "Requested neighbor count per search.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
	reg.MustRegister(c.opTotal, c.opErrors, c.opDuration, c.searchK)
	return c
}

func (c *PrometheusMetricsCollector) record(op string, duration time.Duration, err error) {
	c.opTotal.WithLabelValues(op).Inc()
	c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		c.opErrors.WithLabelValues(op).Inc()
	}
}

func (c *PrometheusMetricsCollector) RecordUpsert(duration time.Duration, err error) {
	c.record("upsert", duration, err)
}

func (c *PrometheusMetricsCollector) RecordDelete(duration time.Duration, err error) {
	c.record("delete", duration, err)
}

func (c *PrometheusMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	c.record("search", duration, err)
	c.searchK.Observe(float64(k))
}

func (c *PrometheusMetricsCollector) RecordCreateCollection(err error) {
	c.record("create_collection", 0, err)
}

func (c *PrometheusMetricsCollector) RecordDropCollection(err error) {
	c.record("drop_collection", 0, err)
}

func (c *PrometheusMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	c.record("snapshot", duration, err)
}
