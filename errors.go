package vectora

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("service is closed")

	// ErrNoBlobStore is returned by SaveDataset/LoadDataset when the service
	// was created without WithBlobStore.
	ErrNoBlobStore = errors.New("no blob store configured")

	// ErrDatasetExists is returned by LoadDataset when the target name is
	// already in use.
	ErrDatasetExists = errors.New("dataset already exists")
)

// UnknownDatasetError is returned when an operation references a dataset name
// the service does not know. Deleted datasets are unknown, not tombstoned.
type UnknownDatasetError struct {
	Dataset string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset %q", e.Dataset)
}

// InvalidStateError is returned when an operation is not allowed in the
// dataset's current lifecycle state.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type InvalidStateError struct {
	Dataset string
	State   State
	Op      string
	cause   error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("dataset %q: cannot %s in state %s", e.Dataset, e.Op, e.State)
}

func (e *InvalidStateError) Unwrap() error { return e.cause }

// AlreadySetUpError is returned when setup is requested for a Ready dataset
// without forcing a retrain.
type AlreadySetUpError struct {
	Dataset string
}

func (e *AlreadySetUpError) Error() string {
	return fmt.Sprintf("dataset %q is already set up; use Force to retrain", e.Dataset)
}

// CapacityError is returned when an insert would push a dataset past the
// configured record limit.
type CapacityError struct {
	Dataset   string
	Limit     int
	Requested int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("dataset %q: inserting %d records exceeds the limit of %d", e.Dataset, e.Requested, e.Limit)
}

// UnknownIDError is returned when a query references a record ID that is not
// part of the trained index.
type UnknownIDError struct {
	Dataset string
	ID      uint64
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("dataset %q: unknown id %d", e.Dataset, e.ID)
}
