package parallex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability for the thread manager: every spawn, join, and elastic
// growth decision is tagged with these, following the gauge/counter
// split the teacher's Backoff connector uses for its own retry metrics.
const (
	WorkersActive       = metricz.Key("workers.active")
	WorkersSpawnedTotal = metricz.Key("workers.spawned.total")
	WorkersControlTime  = metricz.Key("workers.control_time.ns")
	QueueDepthTotal     = metricz.Key("queue.depth")

	ThreadManagerRefreshSpan = tracez.Key("threadmanager.refresh")
)

// ThreadManager owns the full set of workers for one job plus the free
// list of worker indices known to be idle. It grows the pool elastically
// and joins every worker at shutdown.
type ThreadManager[V any, T any] struct {
	mu       sync.RWMutex
	workers  []*Worker[V, T]
	freeList []int
	maxCap   int
	fn       func(V) T
	collect  bool
	name     Name
	clock    clockz.Clock
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
}

// NewThreadManager creates a thread manager ready to spawn up to maxCap
// workers, each applying fn to items of type V.
func NewThreadManager[V any, T any](name Name, maxCap int, fn func(V) T, collect bool, clock clockz.Clock) *ThreadManager[V, T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	metrics := metricz.New()
	metrics.Counter(WorkersSpawnedTotal)
	metrics.Gauge(WorkersActive)
	metrics.Gauge(WorkersControlTime)
	metrics.Counter(SpinContendedTotal)
	metrics.Gauge(QueueDepthTotal)

	return &ThreadManager[V, T]{
		maxCap:  maxCap,
		fn:      fn,
		collect: collect,
		name:    name,
		clock:   clock,
		metrics: metrics,
		tracer:  tracez.New(),
	}
}

// AddWorker launches a new worker and registers it. It returns the new
// worker's index, or a *SpawnError if the pool is already at MaxWorkers.
func (tm *ThreadManager[V, T]) AddWorker(ctx context.Context, wg *sync.WaitGroup) (int, error) {
	tm.mu.Lock()
	if len(tm.workers) >= tm.maxCap {
		tm.mu.Unlock()
		capitan.Warn(ctx, SignalWorkerSpawnFail,
			FieldJobName.Field(string(tm.name)),
			FieldMaxWorkers.Field(tm.maxCap),
		)
		return -1, &SpawnError{WorkerIndex: len(tm.workers), Cause: errAtCapacity}
	}
	index := len(tm.workers)
	w := newWorker[V, T](index, tm.name, tm.fn, tm.collect, tm.clock)
	tm.workers = append(tm.workers, w)
	tm.mu.Unlock()

	w.Start(wg)

	tm.metrics.Counter(WorkersSpawnedTotal).Inc()
	tm.metrics.Gauge(WorkersActive).Set(float64(tm.WorkerCount()))
	capitan.Info(ctx, SignalWorkerSpawned,
		FieldJobName.Field(string(tm.name)),
		FieldWorkerIndex.Field(index),
	)
	return index, nil
}

// GetWorker returns the worker at index.
func (tm *ThreadManager[V, T]) GetWorker(index int) *Worker[V, T] {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.workers[index]
}

// WorkerCount reports how many workers have been spawned so far.
func (tm *ThreadManager[V, T]) WorkerCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.workers)
}

// MaxWorkers reports the absolute cap on spawned workers.
func (tm *ThreadManager[V, T]) MaxWorkers() int { return tm.maxCap }

// PushFree appends a worker index to the free list.
func (tm *ThreadManager[V, T]) PushFree(index int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.freeList = append(tm.freeList, index)
}

// PopFree removes and returns one idle worker index, if any.
func (tm *ThreadManager[V, T]) PopFree() (int, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	n := len(tm.freeList)
	if n == 0 {
		return 0, false
	}
	idx := tm.freeList[n-1]
	tm.freeList = tm.freeList[:n-1]
	return idx, true
}

// FreeLen reports the number of known-idle workers.
func (tm *ThreadManager[V, T]) FreeLen() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.freeList)
}

// RefreshFreeList rebuilds the free list by inspecting every worker (a
// worker is free if its state is not Run and its queue is empty).
// For every busy worker whose projected completion time exceeds
// controlTime, it counts an over-loaded worker; if no worker was freed
// and at least one was over-loaded and the cap allows, it spawns up to
// that many new workers, adds them to the free list, and returns the
// amortized per-worker spawn cost as the new control time. Otherwise it
// returns controlTime unchanged.
func (tm *ThreadManager[V, T]) RefreshFreeList(ctx context.Context, wg *sync.WaitGroup, controlTime time.Duration) time.Duration {
	ctx, span := tm.tracer.StartSpan(ctx, ThreadManagerRefreshSpan)
	defer span.Finish()

	tm.mu.RLock()
	snapshot := make([]*Worker[V, T], len(tm.workers))
	copy(snapshot, tm.workers)
	tm.mu.RUnlock()

	var freed []int
	overloaded := 0
	for _, w := range snapshot {
		st := w.Primary().State()
		if st != StateRun && w.Primary().IsEmpty() {
			freed = append(freed, w.Index())
			continue
		}
		if st == StateRun && w.ProjectedCompletion() > controlTime {
			overloaded++
		}
	}

	if len(freed) > 0 {
		tm.mu.Lock()
		tm.freeList = append(tm.freeList, freed...)
		tm.mu.Unlock()
		return controlTime
	}

	if overloaded == 0 {
		return controlTime
	}

	tm.mu.RLock()
	room := tm.maxCap - len(tm.workers)
	tm.mu.RUnlock()
	toSpawn := overloaded
	if toSpawn > room {
		toSpawn = room
	}
	if toSpawn <= 0 {
		return controlTime
	}

	start := tm.clock.Now()
	spawned := 0
	for i := 0; i < toSpawn; i++ {
		idx, err := tm.AddWorker(ctx, wg)
		if err != nil {
			break
		}
		tm.PushFree(idx)
		spawned++
	}
	if spawned == 0 {
		return controlTime
	}

	elapsed := tm.clock.Now().Sub(start)
	newControlTime := elapsed / time.Duration(spawned)
	tm.metrics.Gauge(WorkersControlTime).Set(float64(newControlTime.Nanoseconds()))
	capitan.Info(ctx, SignalPoolGrew,
		FieldJobName.Field(string(tm.name)),
		FieldSpawnedCount.Field(spawned),
		FieldControlTimeNs.Field(float64(newControlTime.Nanoseconds())),
	)
	return newControlTime
}

// JoinAll signals every worker to finish, waits for each to reach a
// quiescent Waiting-and-empty state, transitions it to Done, waits for
// every goroutine to return, and extends collector with every worker's
// outputs in worker order. A worker that exited via Panic is reported as
// a *JoinError rather than silently dropped.
func (tm *ThreadManager[V, T]) JoinAll(ctx context.Context, wg *sync.WaitGroup, collector Collector[T]) error {
	tm.mu.RLock()
	snapshot := make([]*Worker[V, T], len(tm.workers))
	copy(snapshot, tm.workers)
	tm.mu.RUnlock()

	for _, w := range snapshot {
		spinUntil(func() bool {
			st := w.Primary().State()
			return (st == StateWaiting && w.Primary().IsEmpty()) || st.terminal()
		})
		if w.Primary().State() == StateWaiting {
			w.Primary().SetState(StateDone)
		}
	}

	wg.Wait()

	var totalContention uint64
	for _, w := range snapshot {
		totalContention += w.Primary().ContentionCount()
	}
	if totalContention > 0 {
		tm.metrics.Counter(SpinContendedTotal).Add(float64(totalContention))
		capitan.Warn(ctx, SignalSpinYielded,
			FieldJobName.Field(string(tm.name)),
		)
	}

	var joinErr error
	for _, w := range snapshot {
		if w.Primary().State() == StatePanic {
			if joinErr == nil {
				joinErr = &JoinError{WorkerIndex: w.Index(), Panic: w.PanicValue()}
			}
			capitan.Error(ctx, SignalWorkerPanicked,
				FieldJobName.Field(string(tm.name)),
				FieldWorkerIndex.Field(w.Index()),
				FieldError.Field(fmt.Sprintf("%v", w.PanicValue())),
			)
		}
	}

	// A panic anywhere in the batch voids every worker's outputs, not
	// just the panicking worker's: no partial results survive a failed
	// job.
	if joinErr == nil {
		for _, w := range snapshot {
			if tm.collect && len(w.Outputs()) > 0 {
				collector.Extend(w.Outputs())
			}
			capitan.Info(ctx, SignalWorkerJoined,
				FieldJobName.Field(string(tm.name)),
				FieldWorkerIndex.Field(w.Index()),
			)
		}
	}
	return joinErr
}

// RecordQueueDepth sums every worker's current queue length into the
// queue.depth gauge. Called by the controller after every hand-off or
// steal so the gauge reflects total outstanding work, not just one
// worker's queue.
func (tm *ThreadManager[V, T]) RecordQueueDepth() {
	tm.mu.RLock()
	snapshot := make([]*Worker[V, T], len(tm.workers))
	copy(snapshot, tm.workers)
	tm.mu.RUnlock()

	total := 0
	for _, w := range snapshot {
		total += w.Primary().Len()
	}
	tm.metrics.Gauge(QueueDepthTotal).Set(float64(total))
}

// Close releases the thread manager's tracer.
func (tm *ThreadManager[V, T]) Close() {
	tm.tracer.Close()
}

// Metrics exposes the thread manager's metricz registry.
func (tm *ThreadManager[V, T]) Metrics() *metricz.Registry { return tm.metrics }
