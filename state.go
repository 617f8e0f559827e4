package vectora

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vectora/embed"
	"github.com/hupe1980/vectora/index"
	"github.com/hupe1980/vectora/record"
)

// State is the lifecycle state of a dataset.
//
// Transitions:
//
//	Empty -> DataLoaded        (first record inserted)
//	DataLoaded -> Training     (setup submitted)
//	Training -> Ready          (training succeeded)
//	Training -> Failed         (first training failed)
//	Training -> Ready          (retrain failed, prior index kept)
//	DataLoaded -> Empty        (raw data deleted)
//
// Deletion is terminal in every state: the dataset is removed from the
// service and its name becomes reusable.
type State int

const (
	StateEmpty State = iota
	StateDataLoaded
	StateTraining
	StateReady
	StateFailed
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateDataLoaded:
		return "DataLoaded"
	case StateTraining:
		return "Training"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// builtIndex bundles the artifacts of one successful training run. It is
// immutable after construction and swapped in under the dataset lock, so
// queries either see the old run or the new one, never a mix.
type builtIndex struct {
	idx      index.Index
	embedder embed.Embedder
	kind     embed.ModelKind

	// corpus is the training input, kept so snapshots can restore the
	// embedder even after the raw records are deleted.
	corpus []record.Record

	bytes     int64 // managed memory reserved for the vectors
	trainedAt time.Time
}

// dataset is the per-name unit of isolation. All state transitions happen
// under mu; the record store has its own finer-grained lock for inserts.
type dataset struct {
	name string

	mu      sync.RWMutex
	state   State
	records *record.Store
	built   *builtIndex
	failure error // last training failure, nil once Ready again
	deleted bool  // set under mu when the dataset is removed
}

func newDataset(name string) *dataset {
	return &dataset{
		name:    name,
		state:   StateEmpty,
		records: record.NewStore(),
	}
}

// snapshotState reads the fields Info needs under a single lock acquisition.
func (ds *dataset) snapshotState() DatasetInfo {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	info := DatasetInfo{
		Name:    ds.name,
		State:   ds.state,
		Records: ds.records.Len(),
	}
	if ds.built != nil {
		info.ModelKind = ds.built.kind.String()
		info.Dimension = ds.built.idx.Dimension()
		info.IndexedVectors = ds.built.idx.Len()
		info.TrainedAt = ds.built.trainedAt
	}
	if ds.failure != nil {
		info.LastError = ds.failure.Error()
	}
	return info
}

// DatasetInfo is a point-in-time description of a dataset.
type DatasetInfo struct {
	Name    string
	State   State
	Records int

	// Set once the dataset has a trained index.
	ModelKind      string
	Dimension      int
	IndexedVectors int
	TrainedAt      time.Time

	// LastError carries the most recent training failure, if any.
	LastError string
}
