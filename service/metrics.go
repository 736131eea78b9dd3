package service

import "time"

// MetricsCollector records operational metrics for every façade
// operation. Implement this to integrate with a monitoring system; the
// default is NoopMetricsCollector so embedding the service never forces
// a metrics dependency.
type MetricsCollector interface {
	RecordUpsert(duration time.Duration, err error)
	RecordDelete(duration time.Duration, err error)
	RecordSearch(k int, duration time.Duration, err error)
	RecordCreateCollection(err error)
	RecordDropCollection(err error)
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector discards every recorded metric.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(time.Duration, error)          {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)          {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordCreateCollection(error)               {}
func (NoopMetricsCollector) RecordDropCollection(error)                 {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)        {}
