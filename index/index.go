// Package index provides interfaces and types for vector search indexes.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vectora/distance"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyIndex is returned when an index is built from zero vectors.
	ErrEmptyIndex = errors.New("index must contain at least one vector")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrDuplicateID indicates that the same ID was supplied twice during a build.
type ErrDuplicateID struct {
	ID uint64
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate id in build input: %d", e.ID)
}

// DistanceType represents the type of distance function used for calculating
// distances between vectors.
type DistanceType int

const (
	DistanceTypeEuclidean DistanceType = iota
	DistanceTypeSquaredL2
	DistanceTypeCosine
)

// String returns a string representation of the DistanceType.
func (dt DistanceType) String() string {
	switch dt {
	case DistanceTypeEuclidean:
		return "Euclidean"
	case DistanceTypeSquaredL2:
		return "SquaredL2"
	case DistanceTypeCosine:
		return "Cosine"
	default:
		return "Unknown"
	}
}

// NewDistanceFunc returns a distance function based on the specified distance type.
func NewDistanceFunc(dt DistanceType) distance.Func {
	switch dt {
	case DistanceTypeEuclidean:
		return distance.Euclidean
	case DistanceTypeSquaredL2:
		return distance.SquaredL2
	case DistanceTypeCosine:
		return distance.CosineDistance
	default:
		return nil
	}
}

// SearchResult represents a single nearest-neighbor match.
type SearchResult struct {
	// ID is the identifier of the matched vector.
	ID uint64

	// Distance is the distance between the query vector and the matched vector.
	Distance float32
}

// Index answers top-k nearest-neighbor queries over a built set of vectors.
//
// Implementations are immutable once built: a rebuild produces a fresh Index
// that the owner swaps in atomically, so readers never observe a
// partially-populated index.
type Index interface {
	// KNNSearch returns the k nearest neighbors of q, sorted by ascending
	// distance with ties broken by ascending ID. A k larger than the index
	// size returns all entries.
	KNNSearch(q []float32, k int) ([]SearchResult, error)

	// BatchSearch runs KNNSearch for every query, processing queries in
	// chunks of batchSize. Result order matches input order.
	BatchSearch(ctx context.Context, queries [][]float32, k, batchSize int) ([][]SearchResult, error)

	// Contains reports whether the given ID is present in the index.
	Contains(id uint64) bool

	// Vector returns the stored vector for the given ID.
	Vector(id uint64) ([]float32, bool)

	// Dimension returns the fixed vector dimensionality of the index.
	Dimension() int

	// Len returns the number of vectors in the index.
	Len() int
}
