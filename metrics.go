package vectora

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    insertCounter  prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(queries, k int, duration time.Duration, err error) {
//	    p.queryHistogram.Observe(duration.Seconds())
//	    // ... record error state, etc.
//	}
type MetricsCollector interface {
	// RecordInsert is called after each bulk insert.
	// inserted/failed are record counts, duration is the total time taken.
	RecordInsert(inserted, failed int, duration time.Duration, err error)

	// RecordTraining is called when a training job finishes.
	RecordTraining(duration time.Duration, err error)

	// RecordQuery is called after each similarity query.
	// queries is the number of query inputs, k the neighbor count requested.
	RecordQuery(queries, k int, duration time.Duration, err error)

	// RecordDelete is called after each dataset or raw-data deletion.
	RecordDelete(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save or load.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordTraining(time.Duration, error)         {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)           {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount        atomic.Int64
	InsertRecords      atomic.Int64
	InsertFailed       atomic.Int64
	InsertErrors       atomic.Int64
	TrainingCount      atomic.Int64
	TrainingErrors     atomic.Int64
	TrainingTotalNanos atomic.Int64
	QueryCount         atomic.Int64
	QueryInputs        atomic.Int64
	QueryErrors        atomic.Int64
	QueryTotalNanos    atomic.Int64
	DeleteCount        atomic.Int64
	DeleteErrors       atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(inserted, failed int, duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertRecords.Add(int64(inserted))
	b.InsertFailed.Add(int64(failed))
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordTraining implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTraining(duration time.Duration, err error) {
	b.TrainingCount.Add(1)
	b.TrainingTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TrainingErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(queries, k int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryInputs.Add(int64(queries))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:      b.InsertCount.Load(),
		InsertRecords:    b.InsertRecords.Load(),
		InsertFailed:     b.InsertFailed.Load(),
		InsertErrors:     b.InsertErrors.Load(),
		TrainingCount:    b.TrainingCount.Load(),
		TrainingErrors:   b.TrainingErrors.Load(),
		TrainingAvgNanos: b.avgTrainingNanos(),
		QueryCount:       b.QueryCount.Load(),
		QueryInputs:      b.QueryInputs.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryAvgNanos:    b.avgQueryNanos(),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgTrainingNanos() int64 {
	count := b.TrainingCount.Load()
	if count == 0 {
		return 0
	}
	return b.TrainingTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) avgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount      int64
	InsertRecords    int64
	InsertFailed     int64
	InsertErrors     int64
	TrainingCount    int64
	TrainingErrors   int64
	TrainingAvgNanos int64
	QueryCount       int64
	QueryInputs      int64
	QueryErrors      int64
	QueryAvgNanos    int64
	DeleteCount      int64
	DeleteErrors     int64
	SnapshotCount    int64
	SnapshotErrors   int64
}
