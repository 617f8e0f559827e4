package vectora

import (
	"log/slog"

	"github.com/hupe1980/vectora/blobstore"
	"github.com/hupe1980/vectora/codec"
	"github.com/hupe1980/vectora/record"
	"github.com/hupe1980/vectora/resource"
)

type options struct {
	codec            codec.Codec
	store            blobstore.BlobStore
	metricsCollector MetricsCollector
	logger           *Logger
	resourceConfig   *resource.Config
	batchSize        int
	maxRecords       int
	queryWorkers     int
}

// Option configures Service construction.
type Option func(*options)

// WithCodec configures the codec used for snapshot payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithBlobStore configures the blob store used by SaveDataset and
// LoadDataset. Without one, snapshot operations fail with ErrNoBlobStore.
//
// Example with the local filesystem backend:
//
//	store, err := blobstore.NewLocalStore("./data")
//	svc := vectora.New(vectora.WithBlobStore(store))
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithResourceLimits configures process-wide limits for training concurrency,
// index memory, and embedding throughput. Without it, only training
// concurrency is bounded (to one job at a time).
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = &cfg
	}
}

// WithDefaultBatchSize configures the chunk size for bulk inserts when the
// caller passes none. Defaults to record.DefaultBatchSize.
func WithDefaultBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxRecords configures the maximum number of records a single dataset
// may hold. Inserts past the limit fail with CapacityError. Zero means
// unlimited.
func WithMaxRecords(n int) Option {
	return func(o *options) {
		o.maxRecords = n
	}
}

// WithQueryWorkers configures the size of the shared worker pool that fans
// out batched queries. If not set, it defaults to GOMAXPROCS.
func WithQueryWorkers(n int) Option {
	return func(o *options) {
		o.queryWorkers = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vectora.BasicMetricsCollector{}
//	svc := vectora.New(vectora.WithMetricsCollector(metrics))
//	// ... use svc ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := vectora.NewJSONLogger(slog.LevelInfo)
//	svc := vectora.New(vectora.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		batchSize:        record.DefaultBatchSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
