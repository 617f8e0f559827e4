package vectora

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/vectora/blobstore"
	"github.com/hupe1980/vectora/embed"
	"github.com/hupe1980/vectora/index/flat"
	"github.com/hupe1980/vectora/record"
	"github.com/hupe1980/vectora/snapshot"
)

// latestPointer is the per-dataset blob that names the most recent snapshot.
// Commit-aware blob stores (blobstore/s3) route writes to it through
// conditional commits.
const latestPointer = "LATEST"

// SaveDataset writes a snapshot of the dataset to the configured blob store
// and advances the dataset's LATEST pointer to it. It returns the blob name
// of the snapshot.
//
// The snapshot carries the raw records, the training corpus, and (for
// trained datasets) the indexed vectors, so LoadDataset restores queries
// without re-embedding.
func (s *Service) SaveDataset(ctx context.Context, name string) (string, error) {
	start := time.Now()

	blobName, err := s.saveDataset(ctx, name)

	s.metrics.RecordSnapshot(time.Since(start), err)
	s.logger.LogSnapshot(ctx, name, blobName, err)

	return blobName, err
}

func (s *Service) saveDataset(ctx context.Context, name string) (string, error) {
	if s.store == nil {
		return "", ErrNoBlobStore
	}

	ds, err := s.lookup(name)
	if err != nil {
		return "", err
	}

	ds.mu.RLock()
	if ds.state == StateTraining {
		state := ds.state
		ds.mu.RUnlock()
		return "", &InvalidStateError{Dataset: name, State: state, Op: "snapshot"}
	}

	snap := &snapshot.Snapshot{
		Dataset:   name,
		CreatedAt: time.Now().UTC(),
		Records:   make(map[uint64]string),
	}
	for _, r := range ds.records.All() {
		snap.Records[r.ID] = r.Text
	}

	if built := ds.built; built != nil {
		snap.ModelKind = built.kind.String()
		snap.Dimension = built.idx.Dimension()

		// The training corpus travels with the snapshot so the embedder can
		// be rebuilt on load even after DeleteRawData.
		for _, r := range built.corpus {
			snap.Records[r.ID] = r.Text
		}

		snap.IDs = make([]uint64, len(built.corpus))
		snap.Vectors = make([][]float32, len(built.corpus))
		for i, r := range built.corpus {
			vec, ok := built.idx.Vector(r.ID)
			if !ok {
				ds.mu.RUnlock()
				return "", fmt.Errorf("index is missing vector for id %d", r.ID)
			}
			snap.IDs[i] = r.ID
			snap.Vectors[i] = vec
		}
	}
	ds.mu.RUnlock()

	blobName := path.Join(name, fmt.Sprintf("%020d.snap", snap.CreatedAt.UnixNano()))
	if err := snapshot.Save(ctx, s.store, blobName, snap, func(o *snapshot.Options) {
		o.Codec = s.codec
	}); err != nil {
		return "", fmt.Errorf("save snapshot %q: %w", blobName, err)
	}

	if err := s.store.Put(ctx, path.Join(name, latestPointer), []byte(blobName)); err != nil {
		return "", fmt.Errorf("advance %s pointer: %w", latestPointer, err)
	}

	return blobName, nil
}

// LoadDataset restores the dataset named by its LATEST pointer from the
// configured blob store. The name must not be in use; load a replacement
// under a fresh name or delete the old dataset first.
func (s *Service) LoadDataset(ctx context.Context, name string) error {
	start := time.Now()

	err := s.loadDataset(ctx, name)

	s.metrics.RecordSnapshot(time.Since(start), err)
	s.logger.LogSnapshot(ctx, name, path.Join(name, latestPointer), err)

	return err
}

func (s *Service) loadDataset(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoBlobStore
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	if _, exists := s.datasets[name]; exists {
		s.mu.RUnlock()
		return fmt.Errorf("%w: %q", ErrDatasetExists, name)
	}
	s.mu.RUnlock()

	blobName, err := s.resolveLatest(ctx, name)
	if err != nil {
		return err
	}

	snap, err := snapshot.Load(ctx, s.store, blobName)
	if err != nil {
		return fmt.Errorf("load snapshot %q: %w", blobName, err)
	}
	if snap.Dataset != "" && snap.Dataset != name {
		return fmt.Errorf("snapshot %q belongs to dataset %q, not %q", blobName, snap.Dataset, name)
	}

	ds, err := s.restoreDataset(ctx, name, snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.releaseBuilt(ds)
		return ErrClosed
	}
	if _, exists := s.datasets[name]; exists {
		s.releaseBuilt(ds)
		return fmt.Errorf("%w: %q", ErrDatasetExists, name)
	}
	s.datasets[name] = ds
	return nil
}

func (s *Service) resolveLatest(ctx context.Context, name string) (string, error) {
	blob, err := s.store.Open(ctx, path.Join(name, latestPointer))
	if err != nil {
		return "", fmt.Errorf("resolve %s pointer for %q: %w", latestPointer, name, err)
	}
	defer func() { _ = blob.Close() }()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return "", err
	}

	blobName := strings.TrimSpace(string(data))
	if blobName == "" {
		return "", fmt.Errorf("%s pointer for %q is empty", latestPointer, name)
	}
	return blobName, nil
}

func (s *Service) restoreDataset(ctx context.Context, name string, snap *snapshot.Snapshot) (*dataset, error) {
	ds := newDataset(name)

	ids := make([]uint64, 0, len(snap.Records))
	for id := range snap.Records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]record.Record, len(ids))
	for i, id := range ids {
		records[i] = record.Record{ID: id, Text: snap.Records[id]}
	}

	if _, err := ds.records.Insert(ctx, records, s.batchSize); err != nil {
		return nil, err
	}
	if ds.records.Len() > 0 {
		ds.state = StateDataLoaded
	}

	if !snap.Trained() {
		return ds, nil
	}

	kind, err := embed.ParseModelKind(snap.ModelKind)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(kind)
	if err != nil {
		return nil, err
	}

	corpus := make([]record.Record, len(snap.IDs))
	texts := make([]string, len(snap.IDs))
	for i, id := range snap.IDs {
		text, ok := snap.Records[id]
		if !ok {
			return nil, fmt.Errorf("snapshot is missing the text of indexed id %d", id)
		}
		corpus[i] = record.Record{ID: id, Text: text}
		texts[i] = text
	}

	// Training is deterministic per corpus, so retraining reproduces the
	// embedder that generated the stored vectors.
	if trainable, ok := embedder.(embed.Trainable); ok {
		if err := trainable.Train(ctx, texts); err != nil {
			return nil, fmt.Errorf("restore %s model: %w", kind, err)
		}
	}
	if embedder.Dimension() != snap.Dimension {
		return nil, fmt.Errorf("snapshot dimension %d does not match %s model dimension %d", snap.Dimension, kind, embedder.Dimension())
	}

	memBytes := int64(len(snap.Vectors)) * int64(snap.Dimension) * 4
	if err := s.ctrl.AcquireMemory(ctx, memBytes); err != nil {
		return nil, err
	}

	idx, err := flat.Build(snap.Dimension, snap.IDs, snap.Vectors)
	if err != nil {
		s.ctrl.ReleaseMemory(memBytes)
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	ds.built = &builtIndex{
		idx:       idx,
		embedder:  embedder,
		kind:      kind,
		corpus:    corpus,
		bytes:     memBytes,
		trainedAt: snap.CreatedAt,
	}
	ds.state = StateReady

	return ds, nil
}

func (s *Service) releaseBuilt(ds *dataset) {
	if ds.built != nil {
		s.ctrl.ReleaseMemory(ds.built.bytes)
		ds.built = nil
	}
}
