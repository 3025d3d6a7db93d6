package parallex

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// minCompletionRatio gates ProjectedCompletion: early in a batch, the
// per-task average is too noisy to extrapolate from, so the projection
// reports zero (unknown) until at least this fraction of the batch has
// completed.
const minCompletionRatio = 0.1

// Worker owns one goroutine and the SecondaryAccessor half of a
// limit-access queue. It runs a small state machine driven entirely by
// the queue's state word: Run drains the queue applying fn to every
// item, Waiting spin-backs-off, Done exits the loop, Park blocks forever
// (no canonical scheduling path reaches it — see state.go), and
// Unwind/Panic exit carrying a failure.
//
// The controller and thread manager reach a worker's queue through the
// PrimaryAccessor returned by Primary; they never touch the worker's own
// goroutine or its SecondaryAccessor.
type Worker[V any, T any] struct {
	index     int
	name      Name
	primary   *PrimaryAccessor[V]
	secondary *SecondaryAccessor[V]
	fn        func(V) T
	collect   bool
	clock     clockz.Clock
	parkCh    chan struct{} // always nil: a receive on it blocks forever

	statsMu    sync.RWMutex
	batchStart time.Time
	batchLen   int

	outputs  []T
	panicVal any
}

// newWorker creates a worker with its own fresh limit-access queue. fn is
// applied to every popped item; when collect is false (a ForEach job)
// its return value is discarded rather than accumulated, so a job with
// no use for outputs doesn't pay for their storage.
func newWorker[V any, T any](index int, name Name, fn func(V) T, collect bool, clock clockz.Clock) *Worker[V, T] {
	primary, secondary := NewLimitAccessQueue[V]()
	return &Worker[V, T]{
		index:     index,
		name:      name,
		primary:   primary,
		secondary: secondary,
		fn:        fn,
		collect:   collect,
		clock:     clock,
	}
}

// Primary returns the controller-facing accessor for this worker's
// queue: push, replace, steal, and state transitions.
func (w *Worker[V, T]) Primary() *PrimaryAccessor[V] { return w.primary }

// Index returns this worker's position in the thread manager's table.
func (w *Worker[V, T]) Index() int { return w.index }

// BeginBatch records the batch's starting length and instant. Callers
// (the controller) must call this before transitioning the queue's state
// to Run, so the first statistics query after that transition is
// meaningful.
func (w *Worker[V, T]) BeginBatch(length int) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.batchStart = w.clock.Now()
	w.batchLen = length
}

// Elapsed reports time since the current batch began.
func (w *Worker[V, T]) Elapsed() time.Duration {
	w.statsMu.RLock()
	start := w.batchStart
	w.statsMu.RUnlock()
	if start.IsZero() {
		return 0
	}
	return w.clock.Now().Sub(start)
}

// AvgTimePerTask reports elapsed time divided by tasks completed so far
// in the current batch, plus one, matching the convention that avoids a
// division by zero on the very first completed task.
func (w *Worker[V, T]) AvgTimePerTask() time.Duration {
	w.statsMu.RLock()
	length := w.batchLen
	w.statsMu.RUnlock()
	remaining := w.primary.Len()
	denom := length - remaining + 1
	if denom <= 0 {
		denom = 1
	}
	return w.Elapsed() / time.Duration(denom)
}

// RemainingRatio reports the fraction of the current batch not yet
// completed, in [0, 1].
func (w *Worker[V, T]) RemainingRatio() float64 {
	w.statsMu.RLock()
	length := w.batchLen
	w.statsMu.RUnlock()
	if length == 0 {
		return 0
	}
	remaining := w.primary.Len()
	return float64(remaining) / float64(length)
}

// ProjectedCompletion estimates how much longer this worker's current
// batch will take, as AvgTimePerTask times tasks remaining. Before
// minCompletionRatio of the batch has completed the estimate is too
// noisy to trust, so it reports zero.
func (w *Worker[V, T]) ProjectedCompletion() time.Duration {
	w.statsMu.RLock()
	length := w.batchLen
	w.statsMu.RUnlock()
	if length == 0 {
		return 0
	}
	remaining := w.primary.Len()
	completed := length - remaining
	if float64(completed)/float64(length) < minCompletionRatio {
		return 0
	}
	return w.AvgTimePerTask() * time.Duration(remaining)
}

// Outputs returns this worker's accumulated results, in the insertion
// order they were produced across every batch it ever ran.
func (w *Worker[V, T]) Outputs() []T { return w.outputs }

// PanicValue returns the recovered panic value, if the worker's loop
// exited via StatePanic.
func (w *Worker[V, T]) PanicValue() any { return w.panicVal }

// Start launches the worker's loop in its own goroutine, registering it
// with wg so a join-all can wait for every worker to return. This is the
// Go analogue of the scoped-thread region the original implementation
// uses to statically guarantee every worker completes before the job's
// source and function are released.
func (w *Worker[V, T]) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.loop()
	}()
}

func (w *Worker[V, T]) loop() {
	for {
		switch w.secondary.State() {
		case StateRun:
			w.drainBatch()
			if w.secondary.State() == StateRun {
				w.secondary.SetState(StateWaiting)
			}
		case StateWaiting:
			spinUntil(func() bool { return w.secondary.State() != StateWaiting })
		case StateDone:
			return
		case StatePark:
			<-w.parkCh
		case StateUnwind, StatePanic:
			return
		}
	}
}

func (w *Worker[V, T]) drainBatch() {
	for {
		item, ok := w.secondary.Pop()
		if !ok {
			return
		}
		out, failed := w.applyOne(item)
		if failed {
			return
		}
		if w.collect {
			w.outputs = append(w.outputs, out)
		}
	}
}

// applyOne invokes fn on a single item, recovering a panic into the
// worker's Panic state rather than letting it cross the goroutine
// boundary and crash the whole process.
func (w *Worker[V, T]) applyOne(item V) (out T, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			w.panicVal = r
			w.secondary.SetState(StatePanic)
			failed = true
		}
	}()
	out = w.fn(item)
	return out, false
}
