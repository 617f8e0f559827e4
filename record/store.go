// Package record implements the raw record store backing a dataset.
//
// A Store holds the (id, text) pairs inserted into a single dataset before
// training. Writes are chunked so that a failing chunk reports its offending
// IDs without discarding chunks that already succeeded.
package record

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// DefaultBatchSize is the chunk size used when the caller passes none.
const DefaultBatchSize = 1024

// Record is a single (id, text) pair within a dataset.
type Record struct {
	ID   uint64
	Text string
}

// WithIDs pairs caller-supplied IDs with texts. Both slices must have the
// same length.
func WithIDs(ids []uint64, texts []string) ([]Record, error) {
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("record: ids/texts length mismatch: %d != %d", len(ids), len(texts))
	}
	records := make([]Record, len(texts))
	for i := range texts {
		records[i] = Record{ID: ids[i], Text: texts[i]}
	}
	return records, nil
}

// AssignIDs wraps raw texts into records with implicit positional IDs 0..n-1,
// in input order.
func AssignIDs(texts []string) []Record {
	records := make([]Record, len(texts))
	for i, text := range texts {
		records[i] = Record{ID: uint64(i), Text: text}
	}
	return records
}

// DuplicateIDError is returned per record when an explicit ID collides with
// one already present in the dataset (or earlier in the same insert call).
type DuplicateIDError struct {
	ID uint64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id: %d", e.ID)
}

// FailedRecord identifies a record that could not be written and why.
type FailedRecord struct {
	ID  uint64
	Err error
}

// InsertResult reports the outcome of a chunked insert. Failed records never
// abort the records that were written successfully.
type InsertResult struct {
	Inserted int
	Failed   []FailedRecord
}

// Store is the in-memory raw record store for one dataset.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	texts map[uint64]string
	ids   *roaring64.Bitmap
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{
		texts: make(map[uint64]string),
		ids:   roaring64.New(),
	}
}

// Insert writes records in chunks of batchSize. Records whose IDs collide
// with existing ones fail individually with DuplicateIDError; the remaining
// records of the chunk (and all other chunks) are still written.
//
// Context cancellation is observed between chunks; records written before
// cancellation stay written.
func (s *Store) Insert(ctx context.Context, records []Record, batchSize int) (InsertResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var result InsertResult
	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := min(start+batchSize, len(records))
		s.insertChunk(records[start:end], &result)
	}

	return result, nil
}

func (s *Store) insertChunk(chunk []Record, result *InsertResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range chunk {
		if s.ids.Contains(r.ID) {
			result.Failed = append(result.Failed, FailedRecord{ID: r.ID, Err: &DuplicateIDError{ID: r.ID}})
			continue
		}
		s.texts[r.ID] = r.Text
		s.ids.Add(r.ID)
		result.Inserted++
	}
}

// Get retrieves the text stored under the given ID.
func (s *Store) Get(id uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.texts[id]
	return text, ok
}

// Len returns the number of records currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.texts)
}

// IDs returns all record IDs in ascending order.
func (s *Store) IDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ids.ToArray()
}

// All returns every record ordered by ascending ID.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.texts))
	it := s.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		records = append(records, Record{ID: id, Text: s.texts[id]})
	}
	return records
}

// Clear removes all raw records. Idempotent: clearing an empty store is a
// no-op, not an error.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts = make(map[uint64]string)
	s.ids = roaring64.New()
}
