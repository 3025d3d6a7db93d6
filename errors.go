package parallex

import (
	"errors"
	"fmt"
)

// errAtCapacity is the cause wrapped into a SpawnError when the thread
// manager is asked to grow past MaxWorkers.
var errAtCapacity = errors.New("thread manager is at its worker cap")

// SpawnError reports that the thread manager could not launch a new
// worker goroutine. AddWorker returns it, wrapping errAtCapacity, when
// the pool already holds MaxWorkers workers; goroutine creation itself
// has no failure mode the way an OS thread spawn can fail. Matches
// original_source's WorkThreadError::ThreadAdd.
type SpawnError struct {
	WorkerIndex int
	Cause       error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn worker %d: %v", e.WorkerIndex, e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

// JoinError reports that a worker could not be joined cleanly. JoinAll
// returns it for a worker that panicked while applying the user function;
// JoinAll waits without a time limit for every other worker to reach a
// quiescent Waiting-and-empty state, so it never reports a stuck worker.
// Corresponds to original_source's WorkThreadError::ThreadJoin.
type JoinError struct {
	WorkerIndex int
	Panic       any
}

func (e *JoinError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("worker %d panicked: %v", e.WorkerIndex, e.Panic)
	}
	return fmt.Sprintf("worker %d failed to join", e.WorkerIndex)
}

// JobError wraps any error raised during a Map or ForEach run with the
// job's Name, so failures from concurrently running jobs can be told
// apart in logs.
type JobError struct {
	Job   Name
	Cause error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Job, e.Cause)
}

func (e *JobError) Unwrap() error { return e.Cause }
