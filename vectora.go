// Package vectora provides a managed text-embedding and similarity-search
// service for Go.
//
// Vectora manages named datasets through a full lifecycle with
// production-ready features including:
//
//   - Buffered bulk insertion of (id, text) records with per-record failures
//   - Asynchronous training jobs with polling, waiting, and cancellation
//   - Trainable FastText-style and pre-trained hashing text encoders
//   - Exact top-k nearest-neighbor queries by record ID or by raw text
//   - Process-wide resource limits: training slots, index memory, embed rate
//   - Snapshots to pluggable blob stores (local disk, in-memory, S3, MinIO)
//   - Structured logging (slog) and pluggable metrics collection
//
// # Dataset Lifecycle
//
// A dataset moves through Empty, DataLoaded, Training, Ready, and Failed.
// Records are inserted while Empty or DataLoaded, training is requested with
// SetupDatabase, and queries are answered once the dataset is Ready. Deleting
// a dataset removes it entirely; its name becomes reusable.
//
// # Quick Start
//
//	ctx := context.Background()
//	svc := vectora.New()
//	defer svc.Close()
//
//	_, err := svc.InsertTexts(ctx, "products", []string{
//	    "red running shoe",
//	    "blue running shoe",
//	    "green tea kettle",
//	})
//	if err != nil {
//	    panic(err)
//	}
//
//	j, err := svc.SetupDatabase(ctx, "products")
//	if err != nil {
//	    panic(err)
//	}
//	if _, err := j.Wait(ctx); err != nil {
//	    panic(err)
//	}
//
//	results, err := svc.Similar("products").
//	    IDs(0).
//	    TopK(2).
//	    Execute(ctx)
package vectora

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/vectora/blobstore"
	"github.com/hupe1980/vectora/codec"
	"github.com/hupe1980/vectora/embed"
	"github.com/hupe1980/vectora/index/flat"
	"github.com/hupe1980/vectora/internal/pool"
	"github.com/hupe1980/vectora/job"
	"github.com/hupe1980/vectora/record"
	"github.com/hupe1980/vectora/resource"
)

// ErrNoTrainingJob is returned when a job status is requested for a dataset
// that never had a training job submitted.
var ErrNoTrainingJob = errors.New("dataset has no training job")

// Service is a managed collection of datasets sharing one job tracker, one
// resource controller, and one query worker pool.
type Service struct {
	mu       sync.RWMutex
	datasets map[string]*dataset
	closed   bool

	codec   codec.Codec
	store   blobstore.BlobStore
	ctrl    *resource.Controller
	tracker *job.Tracker
	pool    *pool.WorkerPool

	metrics    MetricsCollector
	logger     *Logger
	batchSize  int
	maxRecords int
}

// New creates a Service. Without WithResourceLimits, training jobs are
// serialized and memory/embedding throughput are unbounded.
func New(optFns ...Option) *Service {
	o := applyOptions(optFns)

	cfg := resource.Config{}
	if o.resourceConfig != nil {
		cfg = *o.resourceConfig
	}
	ctrl := resource.NewController(cfg)

	return &Service{
		datasets:   make(map[string]*dataset),
		codec:      o.codec,
		store:      o.store,
		ctrl:       ctrl,
		tracker:    job.NewTracker(ctrl),
		pool:       pool.New(o.queryWorkers),
		metrics:    o.metricsCollector,
		logger:     o.logger,
		batchSize:  o.batchSize,
		maxRecords: o.maxRecords,
	}
}

// getOrCreate returns the dataset, creating it in state Empty on first use.
func (s *Service) getOrCreate(name string) (*dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	ds, ok := s.datasets[name]
	if !ok {
		ds = newDataset(name)
		s.datasets[name] = ds
	}
	return ds, nil
}

// lookup returns an existing dataset or UnknownDatasetError.
func (s *Service) lookup(name string) (*dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	ds, ok := s.datasets[name]
	if !ok {
		return nil, &UnknownDatasetError{Dataset: name}
	}
	return ds, nil
}

// Insert writes records into the dataset, creating it on first use. Records
// are written in chunks; IDs that collide with existing records fail
// individually without aborting the rest (see record.InsertResult).
//
// Inserting is rejected while the dataset is Training. Inserting after
// training succeeds does not change query results until the next retrain.
func (s *Service) Insert(ctx context.Context, name string, records []record.Record) (record.InsertResult, error) {
	start := time.Now()

	result, err := s.insert(ctx, name, records)

	s.metrics.RecordInsert(result.Inserted, len(result.Failed), time.Since(start), err)
	s.logger.LogInsert(ctx, name, result.Inserted, len(result.Failed), err)

	return result, err
}

// InsertTexts inserts raw texts with implicit sequential IDs, continuing
// after the dataset's current highest ID.
func (s *Service) InsertTexts(ctx context.Context, name string, texts []string) (record.InsertResult, error) {
	start := time.Now()

	result, err := s.insertTexts(ctx, name, texts)

	s.metrics.RecordInsert(result.Inserted, len(result.Failed), time.Since(start), err)
	s.logger.LogInsert(ctx, name, result.Inserted, len(result.Failed), err)

	return result, err
}

func (s *Service) insert(ctx context.Context, name string, records []record.Record) (record.InsertResult, error) {
	ds, err := s.getOrCreate(name)
	if err != nil {
		return record.InsertResult{}, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	return s.insertLocked(ctx, ds, records)
}

func (s *Service) insertTexts(ctx context.Context, name string, texts []string) (record.InsertResult, error) {
	ds, err := s.getOrCreate(name)
	if err != nil {
		return record.InsertResult{}, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	next := uint64(0)
	if ids := ds.records.IDs(); len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}

	records := make([]record.Record, len(texts))
	for i, text := range texts {
		records[i] = record.Record{ID: next + uint64(i), Text: text}
	}

	return s.insertLocked(ctx, ds, records)
}

// insertLocked requires ds.mu to be held.
func (s *Service) insertLocked(ctx context.Context, ds *dataset, records []record.Record) (record.InsertResult, error) {
	if ds.state == StateTraining {
		return record.InsertResult{}, &InvalidStateError{Dataset: ds.name, State: ds.state, Op: "insert"}
	}
	if s.maxRecords > 0 && ds.records.Len()+len(records) > s.maxRecords {
		return record.InsertResult{}, &CapacityError{Dataset: ds.name, Limit: s.maxRecords, Requested: len(records)}
	}

	result, err := ds.records.Insert(ctx, records, s.batchSize)

	if ds.state == StateEmpty && ds.records.Len() > 0 {
		ds.state = StateDataLoaded
	}
	return result, err
}

// SetupOptions configure SetupDatabase.
type SetupOptions struct {
	// ModelKind selects the embedding model family. Defaults to FastText.
	ModelKind embed.ModelKind

	// Force allows retraining a dataset that is already Ready. The previous
	// index keeps serving queries until the new one is swapped in, and stays
	// in place if the retrain fails.
	Force bool
}

// SetupDatabase submits an asynchronous training job for the dataset and
// returns its handle immediately. The job embeds all raw records, builds a
// fresh index, and moves the dataset to Ready.
//
// The job is detached from ctx: it keeps running after this call returns and
// stops only through Job.Cancel or dataset deletion. A second submission
// while one is active fails with job.AlreadyRunningError; submitting for a
// Ready dataset without Force fails with AlreadySetUpError.
func (s *Service) SetupDatabase(ctx context.Context, name string, optFns ...func(o *SetupOptions)) (*job.Job, error) {
	opts := SetupOptions{ModelKind: embed.ModelKindFastText}
	for _, fn := range optFns {
		fn(&opts)
	}

	ds, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	switch {
	case ds.state == StateTraining:
		ds.mu.Unlock()
		return nil, &job.AlreadyRunningError{Dataset: name}
	case ds.state == StateReady && !opts.Force:
		ds.mu.Unlock()
		return nil, &AlreadySetUpError{Dataset: name}
	case ds.state != StateDataLoaded && ds.state != StateReady:
		state := ds.state
		ds.mu.Unlock()
		return nil, &InvalidStateError{Dataset: name, State: state, Op: "train"}
	case ds.records.Len() == 0:
		state := ds.state
		ds.mu.Unlock()
		return nil, &InvalidStateError{Dataset: name, State: state, Op: "train without records"}
	}

	prev := ds.state
	ds.state = StateTraining

	// Snapshot the corpus under the lock so concurrent deletes of raw data
	// cannot shear the training input.
	corpus := ds.records.All()
	ds.mu.Unlock()

	j, err := s.tracker.Submit(name, func(jobCtx context.Context) error {
		return s.train(jobCtx, ds, corpus, opts.ModelKind)
	})
	if err != nil {
		ds.mu.Lock()
		if ds.state == StateTraining {
			ds.state = prev
		}
		ds.mu.Unlock()
		return nil, err
	}

	s.logger.LogSetupSubmitted(ctx, name, opts.ModelKind.String(), len(corpus))

	return j, nil
}

// train runs inside the job goroutine and owns the Training -> terminal
// state transition.
func (s *Service) train(ctx context.Context, ds *dataset, corpus []record.Record, kind embed.ModelKind) error {
	start := time.Now()

	err := s.buildIndex(ctx, ds, corpus, kind)

	ds.mu.Lock()
	if !ds.deleted {
		switch {
		case err == nil:
			ds.state = StateReady
			ds.failure = nil
		case ds.built != nil:
			// A failed or canceled retrain keeps the previous index serving.
			ds.state = StateReady
			ds.failure = err
		case errors.Is(err, context.Canceled):
			if ds.records.Len() > 0 {
				ds.state = StateDataLoaded
			} else {
				ds.state = StateEmpty
			}
		default:
			ds.state = StateFailed
			ds.failure = err
		}
	}
	ds.mu.Unlock()

	s.metrics.RecordTraining(time.Since(start), err)
	s.logger.LogSetupFinished(ctx, ds.name, time.Since(start), err)

	return err
}

func (s *Service) buildIndex(ctx context.Context, ds *dataset, corpus []record.Record, kind embed.ModelKind) error {
	ids := make([]uint64, len(corpus))
	texts := make([]string, len(corpus))
	for i, r := range corpus {
		ids[i] = r.ID
		texts[i] = r.Text
	}

	embedder, err := embed.New(kind)
	if err != nil {
		return err
	}

	if trainable, ok := embedder.(embed.Trainable); ok {
		if err := trainable.Train(ctx, texts); err != nil {
			return fmt.Errorf("train %s model: %w", kind, err)
		}
	}

	if err := s.ctrl.WaitEmbed(ctx, len(texts)); err != nil {
		return err
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}

	bytes := int64(len(vectors)) * int64(embedder.Dimension()) * 4
	if err := s.ctrl.AcquireMemory(ctx, bytes); err != nil {
		return err
	}

	idx, err := flat.Build(embedder.Dimension(), ids, vectors)
	if err != nil {
		s.ctrl.ReleaseMemory(bytes)
		return fmt.Errorf("build index: %w", err)
	}

	if err := ctx.Err(); err != nil {
		s.ctrl.ReleaseMemory(bytes)
		return err
	}

	ds.mu.Lock()
	if ds.deleted {
		ds.mu.Unlock()
		s.ctrl.ReleaseMemory(bytes)
		return context.Canceled
	}
	old := ds.built
	ds.built = &builtIndex{
		idx:       idx,
		embedder:  embedder,
		kind:      kind,
		corpus:    corpus,
		bytes:     bytes,
		trainedAt: time.Now().UTC(),
	}
	ds.mu.Unlock()

	if old != nil {
		s.ctrl.ReleaseMemory(old.bytes)
	}
	return nil
}

// SetupStatus returns the status of the latest training job without blocking.
func (s *Service) SetupStatus(name string) (job.Status, error) {
	if _, err := s.lookup(name); err != nil {
		return 0, err
	}

	j, ok := s.tracker.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoTrainingJob, name)
	}
	return j.Status(), nil
}

// PollSetup blocks up to timeout for the latest training job to finish. If
// the job is still active at the deadline, it returns the current status
// together with job.ErrTimeout; repeated polling is always safe.
func (s *Service) PollSetup(name string, timeout time.Duration) (job.Status, error) {
	if _, err := s.lookup(name); err != nil {
		return 0, err
	}

	j, ok := s.tracker.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoTrainingJob, name)
	}
	return j.Poll(timeout)
}

// WaitSetup blocks until the latest training job finishes or ctx is canceled.
func (s *Service) WaitSetup(ctx context.Context, name string) (job.Status, error) {
	if _, err := s.lookup(name); err != nil {
		return 0, err
	}

	j, ok := s.tracker.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoTrainingJob, name)
	}
	return j.Wait(ctx)
}

// DeleteRawData drops the buffered raw records of the dataset. The trained
// index, if any, keeps serving queries; a DataLoaded dataset falls back to
// Empty. Deleting raw data from an empty dataset is a no-op.
func (s *Service) DeleteRawData(ctx context.Context, name string) error {
	start := time.Now()

	err := s.deleteRawData(name)

	s.metrics.RecordDelete(time.Since(start), err)
	s.logger.LogDelete(ctx, name, "raw data", err)

	return err
}

func (s *Service) deleteRawData(name string) error {
	ds, err := s.lookup(name)
	if err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.state == StateTraining {
		return &InvalidStateError{Dataset: name, State: ds.state, Op: "delete raw data"}
	}

	ds.records.Clear()
	if ds.state == StateDataLoaded {
		ds.state = StateEmpty
	}
	return nil
}

// DeleteDatabase removes the dataset entirely, canceling any active training
// job. The name becomes immediately reusable; an in-flight job observes the
// deletion and never publishes its index.
func (s *Service) DeleteDatabase(ctx context.Context, name string) error {
	start := time.Now()

	err := s.deleteDatabase(name)

	s.metrics.RecordDelete(time.Since(start), err)
	s.logger.LogDelete(ctx, name, "dataset", err)

	return err
}

func (s *Service) deleteDatabase(name string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	ds, ok := s.datasets[name]
	if !ok {
		s.mu.Unlock()
		return &UnknownDatasetError{Dataset: name}
	}
	delete(s.datasets, name)
	s.mu.Unlock()

	s.tracker.Cancel(name)
	s.tracker.Forget(name)

	ds.mu.Lock()
	ds.deleted = true
	built := ds.built
	ds.built = nil
	ds.records.Clear()
	ds.mu.Unlock()

	if built != nil {
		s.ctrl.ReleaseMemory(built.bytes)
	}
	return nil
}

// Names returns all dataset names in ascending order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns a point-in-time description of the dataset.
func (s *Service) Info(name string) (DatasetInfo, error) {
	ds, err := s.lookup(name)
	if err != nil {
		return DatasetInfo{}, err
	}
	return ds.snapshotState(), nil
}

// Status returns the lifecycle state of the dataset.
func (s *Service) Status(name string) (State, error) {
	ds, err := s.lookup(name)
	if err != nil {
		return 0, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.state, nil
}

// IsValid reports whether the dataset exists and is Ready for queries.
func (s *Service) IsValid(name string) bool {
	ds, err := s.lookup(name)
	if err != nil {
		return false
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.state == StateReady
}

// MemoryUsage returns the managed memory currently reserved for indexes.
func (s *Service) MemoryUsage() int64 {
	return s.ctrl.MemoryUsage()
}
