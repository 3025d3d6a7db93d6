package parallex

import (
	"runtime"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
)

// Observability for the spin-backoff primitive.
const (
	SpinContendedTotal = metricz.Key("spin.contended.total")
	SignalSpinYielded  capitan.Signal = "spin.yielded"
)

// maxSpins bounds the tight-spin phase of the backoff protocol before a
// cooperative yield is issued. Matches the original implementation's
// SpinWait, which regresses the spin count by half after every yield
// rather than resetting to zero, so a gate under sustained contention
// settles into a steady mix of spins and yields instead of yielding on
// every single iteration.
const maxSpins = 128

// spinGate is the mutual-exclusion bit guarding a limit-access queue's
// buffer. It is deliberately not a sync.Mutex: every critical section
// behind it does constant-time work (a slice append, a length read, at
// worst a single split/drain), so a spin-then-yield protocol avoids the
// scheduling overhead of parking a goroutine for a lock that's about to
// be released anyway.
type spinGate struct {
	held     atomic.Bool
	contends atomic.Uint64 // rounds that needed at least one yield
}

// acquire blocks until the gate is held by the caller. Acquisition is
// strictly short-lived by contract: callers must release promptly.
func (g *spinGate) acquire() {
	spins := 0
	yielded := false
	for !g.held.CompareAndSwap(false, true) {
		if spins < maxSpins {
			spins++
			continue
		}
		runtime.Gosched()
		spins /= 2
		yielded = true
	}
	if yielded {
		g.contends.Add(1)
	}
}

// release unconditionally clears the gate. Callers must only release a
// gate they hold; releasing an unheld gate corrupts mutual exclusion for
// whoever does hold it.
func (g *spinGate) release() {
	g.held.Store(false)
}

// contentionCount reports how many acquisitions needed at least one
// cooperative yield, for metricz export by callers that care.
func (g *spinGate) contentionCount() uint64 {
	return g.contends.Load()
}

// spinUntil busy-waits, with the same bounded-spin-then-yield backoff as
// spinGate, until predicate reports true. Used by the controller and
// thread manager to wait for a worker's state word to reach a target
// value without a condition variable.
func spinUntil(predicate func() bool) {
	spins := 0
	for !predicate() {
		if spins < maxSpins {
			spins++
			continue
		}
		runtime.Gosched()
		spins /= 2
	}
}
