// Package parallex provides a data-parallelism engine that applies a
// user-supplied function to every item of a source sequence across a pool
// of goroutines.
//
// # Overview
//
// parallex exposes two bulk operations over ordered or unordered sources
// (slices, maps, integer ranges): Map, which transforms every item and
// gathers the results into a Collector, and ForEach, which applies a
// side-effecting function to every item and returns nothing. Both scale
// the worker pool elastically and rebalance work between workers that
// finish early and workers still sitting on a deep queue.
//
// # Core Concepts
//
//   - Dispenser: a source-specific, concurrency-safe cursor that hands
//     items or chunks of items to workers.
//   - LimitAccessQueue: each worker's inbox, reachable through two
//     capability-split handles — a PrimaryAccessor (held by the
//     controller; may steal, resize, inspect) and a SecondaryAccessor
//     (held by the worker; may only pop).
//   - Worker: owns one goroutine and a SecondaryAccessor; runs a small
//     state machine (Waiting/Run/Done/Park/Unwind/Panic) driven by its
//     queue's state word.
//   - ThreadManager: tracks which workers are free, grows the pool
//     elastically, and joins every worker at shutdown.
//   - Controller: hands initial chunks to workers, then repeatedly steals
//     half of the most-loaded worker's queue to refill idle workers until
//     the dispenser and every queue are empty.
//
// # Usage Example
//
//	nums := make([]int, 100_000)
//	for i := range nums {
//	    nums[i] = i
//	}
//
//	result, err := parallex.MapOp(parallex.Slice(nums), func(n int) int {
//	    return n + 100
//	}).Threads(8).Collect(parallex.NewSliceCollector[int]())
//
//	var mu sync.Mutex
//	var count int
//	err = parallex.ForEach(parallex.Slice(nums), func(n int) {
//	    mu.Lock()
//	    count++ // fn runs unsynchronized across workers; the caller owns this lock
//	    mu.Unlock()
//	}).Run()
//
// # Non-goals
//
// parallex does not distribute work across machines, does not guarantee
// output order or fairness between workers, and does not support
// canceling a running job from outside the job itself — the scheduling
// loop's context parameter exists only to propagate tracing, not to
// interrupt the batch currently in flight.
package parallex
