// Package flat provides an exact (exhaustive) nearest-neighbor index.
//
// A Flat index is immutable once built. Rebuilding a dataset produces a new
// Flat that the owner swaps in atomically; in-flight queries keep reading the
// old one. Memory is bounded by n x dimension float32 values plus the ID maps.
package flat

import (
	"context"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vectora/distance"
	"github.com/hupe1980/vectora/index"
)

// Compile-time check to ensure Flat satisfies the index contract.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// DistanceType selects the metric used for all searches.
	DistanceType index.DistanceType

	// Parallelism bounds the number of concurrent chunk workers used by
	// BatchSearch. Defaults to GOMAXPROCS.
	Parallelism int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	DistanceType: index.DistanceTypeEuclidean,
	Parallelism:  0,
}

// Flat is an exact nearest-neighbor index over a fixed set of vectors.
// All fields are immutable after Build, so reads need no locking.
type Flat struct {
	dimension    int
	distanceFunc distance.Func
	opts         Options

	ids     []uint64  // build order
	data    []float32 // n*dimension, row-major
	rows    map[uint64]int
	members *roaring64.Bitmap
}

// Build constructs a flat index from parallel slices of IDs and vectors.
// Every vector must have the given dimension and IDs must be unique.
func Build(dimension int, ids []uint64, vectors [][]float32, optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, &index.ErrInvalidDimension{Dimension: dimension}
	}
	if len(ids) == 0 {
		return nil, index.ErrEmptyIndex
	}
	if len(ids) != len(vectors) {
		return nil, &index.ErrDimensionMismatch{Expected: len(ids), Actual: len(vectors)}
	}

	distanceFunc := index.NewDistanceFunc(opts.DistanceType)
	if distanceFunc == nil {
		distanceFunc = distance.Euclidean
	}

	f := &Flat{
		dimension:    dimension,
		distanceFunc: distanceFunc,
		opts:         opts,
		ids:          make([]uint64, len(ids)),
		data:         make([]float32, len(ids)*dimension),
		rows:         make(map[uint64]int, len(ids)),
		members:      roaring64.New(),
	}

	for i, id := range ids {
		if len(vectors[i]) != dimension {
			return nil, &index.ErrDimensionMismatch{Expected: dimension, Actual: len(vectors[i])}
		}
		if _, ok := f.rows[id]; ok {
			return nil, &index.ErrDuplicateID{ID: id}
		}
		f.ids[i] = id
		f.rows[id] = i
		f.members.Add(id)
		copy(f.data[i*dimension:(i+1)*dimension], vectors[i])
	}

	return f, nil
}

// Dimension returns the fixed vector dimensionality of the index.
func (f *Flat) Dimension() int { return f.dimension }

// Len returns the number of vectors in the index.
func (f *Flat) Len() int { return len(f.ids) }

// Contains reports whether the given ID is present in the index.
func (f *Flat) Contains(id uint64) bool { return f.members.Contains(id) }

// IDs returns the member IDs in ascending order.
func (f *Flat) IDs() []uint64 { return f.members.ToArray() }

// Vector returns a copy of the stored vector for the given ID.
func (f *Flat) Vector(id uint64) ([]float32, bool) {
	row, ok := f.rows[id]
	if !ok {
		return nil, false
	}
	v := make([]float32, f.dimension)
	copy(v, f.data[row*f.dimension:(row+1)*f.dimension])
	return v, true
}

// KNNSearch returns the k nearest neighbors of q by exhaustive comparison.
// Results are sorted by ascending distance, ties broken by ascending ID.
// A k larger than the index size returns all entries.
func (f *Flat) KNNSearch(q []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != f.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(q)}
	}

	if k > len(f.ids) {
		k = len(f.ids)
	}

	h := newMaxHeap(k + 1)
	for i, id := range f.ids {
		d := f.distanceFunc(q, f.data[i*f.dimension:(i+1)*f.dimension])
		c := candidate{ID: id, Distance: d}
		if h.Len() < k {
			h.Push(c)
			continue
		}
		if top, _ := h.Top(); worse(top, c) {
			h.Pop()
			h.Push(c)
		}
	}

	// Drain the heap from worst to best.
	results := make([]index.SearchResult, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		c, _ := h.Pop()
		results[i] = index.SearchResult{ID: c.ID, Distance: c.Distance}
	}
	return results, nil
}

// BatchSearch runs KNNSearch for every query, processing queries in chunks of
// batchSize with bounded parallelism. Result order matches input order
// regardless of internal scheduling.
func (f *Flat) BatchSearch(ctx context.Context, queries [][]float32, k, batchSize int) ([][]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if batchSize <= 0 {
		batchSize = len(queries)
	}
	if len(queries) == 0 {
		return nil, nil
	}

	parallelism := f.opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([][]index.SearchResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for start := 0; start < len(queries); start += batchSize {
		start := start
		end := min(start+batchSize, len(queries))

		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := f.KNNSearch(queries[i], k)
				if err != nil {
					return err
				}
				results[i] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
