package vectora

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vectora/index"
)

const (
	// DefaultTopK is the neighbor count used when the caller sets none.
	DefaultTopK = 5

	// DefaultQueryBatchSize is the chunk size for batched query processing.
	DefaultQueryBatchSize = 1024
)

// QueryOptions configure similarity queries.
type QueryOptions struct {
	// TopK is the number of nearest neighbors per query. Defaults to
	// DefaultTopK. A TopK larger than the index returns all entries.
	TopK int

	// BatchSize is the chunk size for processing many queries. Defaults to
	// DefaultQueryBatchSize.
	BatchSize int
}

func applyQueryOptions(optFns []func(o *QueryOptions)) QueryOptions {
	opts := QueryOptions{
		TopK:      DefaultTopK,
		BatchSize: DefaultQueryBatchSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultQueryBatchSize
	}
	return opts
}

// Similarity holds the neighbors of one query input.
type Similarity struct {
	// Query identifies the input: the record ID for ID queries, the input
	// position for text queries.
	Query uint64

	// Neighbors are sorted by ascending distance, ties broken by ascending
	// ID. An indexed record queried by its own ID appears first at
	// distance zero.
	Neighbors []index.SearchResult

	// Err carries a per-input failure, such as an unknown ID or an
	// embedding error. One broken input never aborts the other inputs of
	// the batch.
	Err error
}

// SimilarByIDs returns the top-k nearest neighbors for each of the given
// record IDs. The dataset must have a trained index; during a forced retrain
// the previous index keeps answering. IDs not present in the index fail per
// item with UnknownIDError in Similarity.Err; the remaining inputs are still
// answered.
func (s *Service) SimilarByIDs(ctx context.Context, name string, ids []uint64, optFns ...func(o *QueryOptions)) ([]Similarity, error) {
	opts := applyQueryOptions(optFns)
	start := time.Now()

	results, err := s.similarByIDs(ctx, name, ids, opts)

	s.metrics.RecordQuery(len(ids), opts.TopK, time.Since(start), err)
	s.logger.LogQuery(ctx, name, len(ids), opts.TopK, err)

	return results, err
}

func (s *Service) similarByIDs(ctx context.Context, name string, ids []uint64, opts QueryOptions) ([]Similarity, error) {
	built, err := s.readyIndex(name)
	if err != nil {
		return nil, err
	}

	results := make([]Similarity, len(ids))
	queries := make([][]float32, 0, len(ids))
	positions := make([]int, 0, len(ids))

	for i, id := range ids {
		results[i].Query = id

		vec, ok := built.idx.Vector(id)
		if !ok {
			results[i].Err = &UnknownIDError{Dataset: name, ID: id}
			continue
		}
		queries = append(queries, vec)
		positions = append(positions, i)
	}

	if len(queries) > 0 {
		neighbors, err := built.idx.BatchSearch(ctx, queries, opts.TopK, opts.BatchSize)
		if err != nil {
			return nil, err
		}
		for qi, pos := range positions {
			results[pos].Neighbors = neighbors[qi]
		}
	}
	return results, nil
}

// SimilarByData embeds the given texts with the dataset's trained model and
// returns the top-k nearest neighbors for each. Results are positional:
// results[i].Query == i.
//
// Texts are processed in chunks on the shared query worker pool. Embedding
// failures are reported per item in Similarity.Err, not fatally for the
// batch.
func (s *Service) SimilarByData(ctx context.Context, name string, texts []string, optFns ...func(o *QueryOptions)) ([]Similarity, error) {
	opts := applyQueryOptions(optFns)
	start := time.Now()

	results, err := s.similarByData(ctx, name, texts, opts)

	s.metrics.RecordQuery(len(texts), opts.TopK, time.Since(start), err)
	s.logger.LogQuery(ctx, name, len(texts), opts.TopK, err)

	return results, err
}

func (s *Service) similarByData(ctx context.Context, name string, texts []string, opts QueryOptions) ([]Similarity, error) {
	built, err := s.readyIndex(name)
	if err != nil {
		return nil, err
	}

	results := make([]Similarity, len(texts))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	setErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for chunkStart := 0; chunkStart < len(texts); chunkStart += opts.BatchSize {
		chunkEnd := min(chunkStart+opts.BatchSize, len(texts))
		offset, chunk := chunkStart, texts[chunkStart:chunkEnd]

		wg.Add(1)
		submitErr := s.pool.Submit(ctx, func() {
			defer wg.Done()

			if err := s.ctrl.WaitEmbed(ctx, len(chunk)); err != nil {
				setErr(err)
				return
			}

			vectors, err := built.embedder.Embed(ctx, chunk)
			if err != nil {
				if ctx.Err() != nil {
					setErr(ctx.Err())
					return
				}
				// Retry one by one so a single broken input carries its
				// own error instead of failing the whole chunk.
				for i, text := range chunk {
					results[offset+i] = s.embedAndSearch(ctx, built, uint64(offset+i), text, opts.TopK)
				}
				return
			}

			for i, vec := range vectors {
				results[offset+i] = searchOne(built, uint64(offset+i), vec, opts.TopK)
			}
		})
		if submitErr != nil {
			wg.Done()
			setErr(submitErr)
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (s *Service) embedAndSearch(ctx context.Context, built *builtIndex, query uint64, text string, k int) Similarity {
	vectors, err := built.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Similarity{Query: query, Err: fmt.Errorf("embed query: %w", err)}
	}
	return searchOne(built, query, vectors[0], k)
}

func searchOne(built *builtIndex, query uint64, vec []float32, k int) Similarity {
	neighbors, err := built.idx.KNNSearch(vec, k)
	if err != nil {
		return Similarity{Query: query, Err: err}
	}
	return Similarity{Query: query, Neighbors: neighbors}
}

// readyIndex returns the trained artifacts of a queryable dataset. A dataset
// stays queryable during a forced retrain: the previous index keeps serving
// until the successor is swapped in. The returned builtIndex is immutable, so
// the caller may use it after the lock is released.
func (s *Service) readyIndex(name string) (*builtIndex, error) {
	ds, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.built == nil {
		return nil, &InvalidStateError{Dataset: name, State: ds.state, Op: "query"}
	}
	return ds.built, nil
}

// Similar creates a new fluent query builder for the dataset.
//
// Example:
//
//	results, err := svc.Similar("products").
//	    Texts("running shoe").
//	    TopK(10).
//	    Execute(ctx)
func (s *Service) Similar(name string) *SimilarQuery {
	return &SimilarQuery{
		svc:       s,
		dataset:   name,
		topK:      DefaultTopK,
		batchSize: DefaultQueryBatchSize,
	}
}

// SimilarQuery is a fluent builder for similarity queries.
type SimilarQuery struct {
	svc     *Service
	dataset string

	ids   []uint64
	texts []string

	topK      int
	batchSize int
}

// IDs queries by existing record IDs.
func (q *SimilarQuery) IDs(ids ...uint64) *SimilarQuery {
	q.ids = ids
	return q
}

// Texts queries by raw texts, embedded with the dataset's trained model.
func (q *SimilarQuery) Texts(texts ...string) *SimilarQuery {
	q.texts = texts
	return q
}

// TopK sets the number of nearest neighbors per query.
func (q *SimilarQuery) TopK(k int) *SimilarQuery {
	q.topK = k
	return q
}

// BatchSize sets the chunk size for batched query processing.
func (q *SimilarQuery) BatchSize(n int) *SimilarQuery {
	q.batchSize = n
	return q
}

// Execute runs the query and returns one Similarity per input.
func (q *SimilarQuery) Execute(ctx context.Context) ([]Similarity, error) {
	withOpts := func(o *QueryOptions) {
		o.TopK = q.topK
		o.BatchSize = q.batchSize
	}

	switch {
	case len(q.ids) > 0 && len(q.texts) > 0:
		return nil, errors.New("query by either IDs or Texts, not both")
	case len(q.ids) > 0:
		return q.svc.SimilarByIDs(ctx, q.dataset, q.ids, withOpts)
	case len(q.texts) > 0:
		return q.svc.SimilarByData(ctx, q.dataset, q.texts, withOpts)
	default:
		return nil, errors.New("query needs IDs or Texts")
	}
}

// First runs the query and returns only the first input's neighbors.
func (q *SimilarQuery) First(ctx context.Context) ([]index.SearchResult, error) {
	results, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New("query returned no results")
	}
	return results[0].Neighbors, nil
}
