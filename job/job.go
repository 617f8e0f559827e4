// Package job tracks asynchronous training/indexing operations.
//
// A Job is the handle returned by Tracker.Submit: callers poll it with a
// timeout or block on Wait, from any number of goroutines. Polling never
// mutates job state.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned by Poll when the job is still pending or running at
// the deadline. It signals "not yet", not a job failure.
var ErrTimeout = errors.New("job still running: poll timed out")

// FailedError wraps the failure detail of a job that ended in StatusFailed.
type FailedError struct {
	Dataset string
	Cause   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("training job for dataset %q failed: %v", e.Dataset, e.Cause)
}

func (e *FailedError) Unwrap() error { return e.Cause }

// AlreadyRunningError is returned when a job is submitted for a dataset that
// already has an active one.
type AlreadyRunningError struct {
	Dataset string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("a job is already running for dataset %q", e.Dataset)
}

// Status is the lifecycle status of a job.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusCanceled
)

// String returns a string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// Active reports whether the status is Pending or Running.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Job represents one in-flight (or finished) training operation.
type Job struct {
	dataset   string
	startedAt time.Time

	status atomic.Int32
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Dataset returns the name of the dataset this job belongs to.
func (j *Job) Dataset() string { return j.dataset }

// StartedAt returns the submission time.
func (j *Job) StartedAt() time.Time { return j.startedAt }

// Status returns the current status without blocking.
func (j *Job) Status() Status {
	return Status(j.status.Load())
}

// Err returns the failure detail after the job left the active states.
// Returns nil for succeeded (and still-active) jobs.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.err
}

// Done returns a channel that is closed once the job leaves the active states.
func (j *Job) Done() <-chan struct{} { return j.done }

// Poll blocks up to timeout for the job to leave the active states and
// returns the status observed. If the job is still active at the deadline,
// it returns the current status together with ErrTimeout; repeated polling
// is always safe.
func (j *Job) Poll(timeout time.Duration) (Status, error) {
	select {
	case <-j.done:
		return j.finished()
	case <-time.After(timeout):
		status := j.Status()
		if status.Active() {
			return status, ErrTimeout
		}
		return j.finished()
	}
}

// Wait blocks until the job leaves the active states or ctx is canceled.
func (j *Job) Wait(ctx context.Context) (Status, error) {
	select {
	case <-j.done:
		return j.finished()
	case <-ctx.Done():
		return j.Status(), ctx.Err()
	}
}

// Cancel requests cancellation of a running job. Finished jobs ignore it.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) finished() (Status, error) {
	status := j.Status()
	if status == StatusFailed {
		return status, &FailedError{Dataset: j.dataset, Cause: j.Err()}
	}
	return status, nil
}

func (j *Job) setRunning() {
	j.status.CompareAndSwap(int32(StatusPending), int32(StatusRunning))
}

func (j *Job) finish(status Status, err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()

	j.status.Store(int32(status))
	close(j.done)
}
