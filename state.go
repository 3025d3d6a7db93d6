package parallex

import "sync/atomic"

// WorkerState is the state word coordinating a worker's queue between the
// controller (via PrimaryAccessor) and the worker itself (via
// SecondaryAccessor). It is read and written independently of the
// queue's mutual-exclusion bit.
type WorkerState int32

const (
	// StateWaiting is the initial and resting state: the worker has no
	// work and is spin-backing-off until the controller assigns a batch.
	StateWaiting WorkerState = iota
	// StateRun means the worker should drain its queue, applying the
	// user function to each item.
	StateRun
	// StateDone is terminal: the worker breaks its loop and returns its
	// accumulated outputs. Only reached from an empty, Waiting queue.
	StateDone
	// StatePark means the worker should park its goroutine until
	// externally unparked. No scheduling path in this engine transitions
	// into Park; it exists so the state machine is total, the way the
	// original implementation declared ThreadState::Park without ever
	// reaching it from its task loop.
	StatePark
	// StateUnwind means the worker is propagating a non-panic fatal
	// failure upward.
	StateUnwind
	// StatePanic means the worker's user-function invocation panicked;
	// the panic value is recovered and surfaced as a JoinError at join.
	StatePanic
)

func (s WorkerState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRun:
		return "run"
	case StateDone:
		return "done"
	case StatePark:
		return "park"
	case StateUnwind:
		return "unwind"
	case StatePanic:
		return "panic"
	default:
		return "unknown"
	}
}

// stateWord is an independent atomic from the queue's mutual-exclusion
// bit; per the concurrency model, transitions use sequentially consistent
// ordering (Go's atomic.Int32 always provides this) to avoid livelocks
// between a controller's "set Run" and a worker's "observe Waiting".
type stateWord struct {
	v atomic.Int32
}

func newStateWord(initial WorkerState) *stateWord {
	w := &stateWord{}
	w.v.Store(int32(initial))
	return w
}

func (w *stateWord) load() WorkerState {
	return WorkerState(w.v.Load())
}

func (w *stateWord) store(s WorkerState) {
	w.v.Store(int32(s))
}

// terminal reports whether s is a state the worker loop breaks out on.
func (s WorkerState) terminal() bool {
	return s == StateDone || s == StateUnwind || s == StatePanic
}
