package parallex

import (
	"errors"
	"testing"
)

func TestSpawnErrorUnwrap(t *testing.T) {
	cause := errors.New("out of goroutines")
	err := &SpawnError{WorkerIndex: 3, Cause: cause}

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find the wrapped cause")
	}
	if err.Error() == "" {
		t.Fatal("Error() should not be empty")
	}
}

func TestJoinErrorMessage(t *testing.T) {
	withPanic := &JoinError{WorkerIndex: 1, Panic: "boom"}
	if withPanic.Error() == "" {
		t.Fatal("Error() should not be empty")
	}

	withoutPanic := &JoinError{WorkerIndex: 2}
	if withoutPanic.Error() == "" {
		t.Fatal("Error() should not be empty")
	}
}

func TestJobErrorUnwrap(t *testing.T) {
	cause := errors.New("failed")
	err := &JobError{Job: "ingest", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find the wrapped cause")
	}
}
