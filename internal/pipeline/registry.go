package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrRunDiscarded is the cancellation cause of a cancelled or superseded run.
	ErrRunDiscarded = errors.New("run discarded")
	// ErrRunNotFound is returned when cancelling a run that is not in flight.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunActive is returned when a run ID is already in flight.
	ErrRunActive = errors.New("run already active")
)

type activeRun struct {
	id         string
	documentID string
	cancel     context.CancelCauseFunc
}

// Registry tracks in-flight runs. At most one run per document is active:
// starting a new one discards the previous run through its context.
type Registry struct {
	mu    sync.Mutex
	runs  map[string]*activeRun
	byDoc map[string]*activeRun
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		runs:  make(map[string]*activeRun),
		byDoc: make(map[string]*activeRun),
	}
}

// Start registers a run for documentID. An empty runID is replaced by a new
// UUID. The returned done func must be called when the run ends.
func (r *Registry) Start(ctx context.Context, documentID, runID string) (context.Context, string, func(), error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	run := &activeRun{id: runID, documentID: documentID, cancel: cancel}

	r.mu.Lock()
	if _, ok := r.runs[runID]; ok {
		r.mu.Unlock()
		cancel(nil)
		return nil, "", nil, ErrRunActive
	}
	if prev, ok := r.byDoc[documentID]; ok {
		prev.cancel(ErrRunDiscarded)
		delete(r.runs, prev.id)
	}
	r.runs[runID] = run
	r.byDoc[documentID] = run
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		if r.runs[runID] == run {
			delete(r.runs, runID)
		}
		if r.byDoc[documentID] == run {
			delete(r.byDoc, documentID)
		}
		r.mu.Unlock()
		cancel(nil)
	}
	return runCtx, runID, done, nil
}

// Cancel discards an in-flight run. In-flight model calls are abandoned;
// the document index is kept.
func (r *Registry) Cancel(runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.cancel(ErrRunDiscarded)
	delete(r.runs, runID)
	if r.byDoc[run.documentID] == run {
		delete(r.byDoc, run.documentID)
	}
	return nil
}

// Active returns the number of in-flight runs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// Discarded reports whether ctx ended because its run was cancelled or superseded.
func Discarded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrRunDiscarded)
}
