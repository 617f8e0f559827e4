package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/vectora/resource"
)

// Fn is the unit of work a job runs. It must honor ctx cancellation: when a
// dataset is deleted mid-training, ctx is canceled and the function must
// return without committing any state.
type Fn func(ctx context.Context) error

// Tracker owns all jobs of a process. It enforces at most one active job per
// dataset and bounds global training concurrency through the resource
// controller.
type Tracker struct {
	mu   sync.Mutex
	jobs map[string]*Job // latest job per dataset

	ctrl *resource.Controller
}

// NewTracker creates a job tracker. ctrl may be nil, in which case training
// concurrency is unbounded.
func NewTracker(ctrl *resource.Controller) *Tracker {
	return &Tracker{
		jobs: make(map[string]*Job),
		ctrl: ctrl,
	}
}

// Submit registers and starts a job for the dataset and returns its handle
// immediately; fn runs on a background worker. A second submission while one
// is active fails with AlreadyRunningError.
//
// The job is detached from the caller's context: it keeps running after the
// submitting request returns and stops only via Job.Cancel or Tracker.Cancel.
func (t *Tracker) Submit(dataset string, fn Fn) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.jobs[dataset]; ok && prev.Status().Active() {
		return nil, &AlreadyRunningError{Dataset: dataset}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		dataset:   dataset,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	t.jobs[dataset] = j

	go t.run(ctx, j, fn)

	return j, nil
}

func (t *Tracker) run(ctx context.Context, j *Job, fn Fn) {
	defer j.cancel()

	if err := t.ctrl.AcquireTrainingSlot(ctx); err != nil {
		j.finish(StatusCanceled, err)
		return
	}
	defer t.ctrl.ReleaseTrainingSlot()

	j.setRunning()

	err := fn(ctx)
	switch {
	case err == nil:
		j.finish(StatusSucceeded, nil)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		j.finish(StatusCanceled, err)
	default:
		j.finish(StatusFailed, err)
	}
}

// Get returns the latest job for the dataset, if any.
func (t *Tracker) Get(dataset string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[dataset]
	return j, ok
}

// Cancel cancels the active job of the dataset, if any.
func (t *Tracker) Cancel(dataset string) {
	t.mu.Lock()
	j, ok := t.jobs[dataset]
	t.mu.Unlock()

	if ok && j.Status().Active() {
		j.Cancel()
	}
}

// Forget drops the latest job record for the dataset. Used when a dataset is
// deleted so its name can be reused.
func (t *Tracker) Forget(dataset string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.jobs, dataset)
}

// Statuses returns the latest status per dataset.
func (t *Tracker) Statuses() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	statuses := make(map[string]Status, len(t.jobs))
	for dataset, j := range t.jobs {
		statuses[dataset] = j.Status()
	}
	return statuses
}
