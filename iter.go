package parallex

import (
	"context"

	"github.com/zoobzio/clockz"
)

// MapBuilder configures and runs a Map job: fn is applied to every item
// of a Dispenser's source and the results are gathered into a Collector.
type MapBuilder[V any, T any] struct {
	name    Name
	disp    Dispenser[V]
	fn      func(V) T
	workers int
	clock   clockz.Clock
}

// MapOp creates a MapBuilder over src, applying fn to every item. Call
// Threads to override the default worker cap, then Collect to run the
// job and gather results.
func MapOp[V any, T any](src Dispenser[V], fn func(V) T) *MapBuilder[V, T] {
	return &MapBuilder[V, T]{
		name:  "map",
		disp:  src,
		fn:    fn,
		clock: clockz.RealClock,
	}
}

// Named sets the job name used to tag observability signals and spans.
func (b *MapBuilder[V, T]) Named(name Name) *MapBuilder[V, T] {
	b.name = name
	return b
}

// Threads caps the number of worker goroutines the job may spawn. A
// non-positive value, or never calling Threads, falls back to the
// default cap of one worker per hardware thread.
func (b *MapBuilder[V, T]) Threads(n int) *MapBuilder[V, T] {
	b.workers = n
	return b
}

// WithClock injects a clock for testing; jobs default to clockz.RealClock.
func (b *MapBuilder[V, T]) WithClock(clock clockz.Clock) *MapBuilder[V, T] {
	b.clock = clock
	return b
}

// Collect runs the job to completion, gathering outputs into collector,
// and returns collector for convenient chaining, or an error if a worker
// panicked or failed to join.
func (b *MapBuilder[V, T]) Collect(collector Collector[T]) (Collector[T], error) {
	tm := NewThreadManager[V, T](b.name, clampWorkers(b.workers), b.fn, true, b.clock)
	ctrl := NewController[V, T](b.name, tm, b.disp, b.clock)
	defer tm.Close()
	if err := ctrl.Run(context.Background(), collector); err != nil {
		return collector, &JobError{Job: b.name, Cause: err}
	}
	return collector, nil
}

// ForEachBuilder configures and runs a ForEach job: fn is applied to
// every item of a Dispenser's source purely for its side effects.
type ForEachBuilder[V any] struct {
	name    Name
	disp    Dispenser[V]
	fn      func(V)
	workers int
	clock   clockz.Clock
}

// ForEach creates a ForEachBuilder over src, applying fn to every item
// for its side effects. Call Threads to override the default worker
// cap, then Run to execute the job.
func ForEach[V any](src Dispenser[V], fn func(V)) *ForEachBuilder[V] {
	return &ForEachBuilder[V]{
		name:  "foreach",
		disp:  src,
		fn:    fn,
		clock: clockz.RealClock,
	}
}

// Named sets the job name used to tag observability signals and spans.
func (b *ForEachBuilder[V]) Named(name Name) *ForEachBuilder[V] {
	b.name = name
	return b
}

// Threads caps the number of worker goroutines the job may spawn.
func (b *ForEachBuilder[V]) Threads(n int) *ForEachBuilder[V] {
	b.workers = n
	return b
}

// WithClock injects a clock for testing.
func (b *ForEachBuilder[V]) WithClock(clock clockz.Clock) *ForEachBuilder[V] {
	b.clock = clock
	return b
}

// Run executes the job to completion and returns an error if a worker
// panicked or failed to join. fn's side effects are responsible for
// their own synchronization if they touch shared state.
func (b *ForEachBuilder[V]) Run() error {
	wrapped := func(v V) struct{} {
		b.fn(v)
		return struct{}{}
	}
	tm := NewThreadManager[V, struct{}](b.name, clampWorkers(b.workers), wrapped, false, b.clock)
	ctrl := NewController[V, struct{}](b.name, tm, b.disp, b.clock)
	defer tm.Close()
	if err := ctrl.Run(context.Background(), noopCollector{}); err != nil {
		return &JobError{Job: b.name, Cause: err}
	}
	return nil
}

// noopCollector discards every extended batch; ForEach jobs produce no
// output, so JoinAll's collector argument is never actually read from.
type noopCollector struct{}

func (noopCollector) Extend(_ []struct{}) {}
