package parallex

import (
	"context"
	"sync"
	"testing"

	"github.com/zoobzio/clockz"
)

func TestThreadManagerAddWorkerRespectsCap(t *testing.T) {
	tm := NewThreadManager[int, int]("test", 2, func(n int) int { return n }, true, clockz.RealClock)
	var wg sync.WaitGroup
	ctx := context.Background()

	if _, err := tm.AddWorker(ctx, &wg); err != nil {
		t.Fatalf("AddWorker() #1 error: %v", err)
	}
	if _, err := tm.AddWorker(ctx, &wg); err != nil {
		t.Fatalf("AddWorker() #2 error: %v", err)
	}
	if _, err := tm.AddWorker(ctx, &wg); err == nil {
		t.Fatal("AddWorker() #3 should fail once at cap")
	}
	if tm.WorkerCount() != 2 {
		t.Fatalf("WorkerCount() = %d, want 2", tm.WorkerCount())
	}

	for i := 0; i < tm.WorkerCount(); i++ {
		tm.GetWorker(i).Primary().SetState(StateDone)
	}
	wg.Wait()
}

func TestThreadManagerFreeListPushPop(t *testing.T) {
	tm := NewThreadManager[int, int]("test", 4, func(n int) int { return n }, true, clockz.RealClock)
	tm.PushFree(0)
	tm.PushFree(1)
	if tm.FreeLen() != 2 {
		t.Fatalf("FreeLen() = %d, want 2", tm.FreeLen())
	}
	idx, ok := tm.PopFree()
	if !ok || idx != 1 {
		t.Fatalf("PopFree() = %d, %v; want 1, true", idx, ok)
	}
	if tm.FreeLen() != 1 {
		t.Fatalf("FreeLen() = %d, want 1", tm.FreeLen())
	}
}

func TestThreadManagerJoinAllCollectsOutputsInWorkerOrder(t *testing.T) {
	tm := NewThreadManager[int, int]("test", 2, func(n int) int { return n * 10 }, true, clockz.RealClock)
	var wg sync.WaitGroup
	ctx := context.Background()

	idx0, _ := tm.AddWorker(ctx, &wg)
	idx1, _ := tm.AddWorker(ctx, &wg)

	w0 := tm.GetWorker(idx0)
	w0.BeginBatch(2)
	w0.Primary().Replace([]int{1, 2})
	w0.Primary().SetState(StateRun)

	w1 := tm.GetWorker(idx1)
	w1.BeginBatch(1)
	w1.Primary().Replace([]int{3})
	w1.Primary().SetState(StateRun)

	spinUntil(func() bool {
		return w0.Primary().State() == StateWaiting && w1.Primary().State() == StateWaiting
	})

	collector := NewSliceCollector[int]()
	if err := tm.JoinAll(ctx, &wg, collector); err != nil {
		t.Fatalf("JoinAll() error: %v", err)
	}

	items := collector.Items()
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	// Worker 0's outputs (popped from the tail: 2 then 1) come before
	// worker 1's.
	want := []int{20, 10, 30}
	for i, v := range want {
		if items[i] != v {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
}

func TestThreadManagerJoinAllReportsPanic(t *testing.T) {
	tm := NewThreadManager[int, int]("test", 1, func(n int) int {
		panic("boom")
	}, true, clockz.RealClock)
	var wg sync.WaitGroup
	ctx := context.Background()

	idx, _ := tm.AddWorker(ctx, &wg)
	w := tm.GetWorker(idx)
	w.BeginBatch(1)
	w.Primary().Replace([]int{1})
	w.Primary().SetState(StateRun)

	collector := NewSliceCollector[int]()
	err := tm.JoinAll(ctx, &wg, collector)
	if err == nil {
		t.Fatal("JoinAll() should report the worker panic")
	}
	var joinErr *JoinError
	if !asJoinError(err, &joinErr) {
		t.Fatalf("error = %v, want *JoinError", err)
	}
}

func TestThreadManagerJoinAllDiscardsAllOutputsOnPartialPanic(t *testing.T) {
	tm := NewThreadManager[int, int]("test", 4, func(n int) int {
		if n == 99 {
			panic("boom")
		}
		return n * 10
	}, true, clockz.RealClock)
	var wg sync.WaitGroup
	ctx := context.Background()

	idx0, _ := tm.AddWorker(ctx, &wg)
	idx1, _ := tm.AddWorker(ctx, &wg)
	idx2, _ := tm.AddWorker(ctx, &wg)
	idx3, _ := tm.AddWorker(ctx, &wg)

	w0 := tm.GetWorker(idx0)
	w0.BeginBatch(1)
	w0.Primary().Replace([]int{1})
	w0.Primary().SetState(StateRun)

	w1 := tm.GetWorker(idx1)
	w1.BeginBatch(1)
	w1.Primary().Replace([]int{99})
	w1.Primary().SetState(StateRun)

	w2 := tm.GetWorker(idx2)
	w2.BeginBatch(1)
	w2.Primary().Replace([]int{3})
	w2.Primary().SetState(StateRun)

	w3 := tm.GetWorker(idx3)
	w3.BeginBatch(1)
	w3.Primary().Replace([]int{4})
	w3.Primary().SetState(StateRun)

	collector := NewSliceCollector[int]()
	err := tm.JoinAll(ctx, &wg, collector)
	if err == nil {
		t.Fatal("JoinAll() should report the worker panic")
	}
	var joinErr *JoinError
	if !asJoinError(err, &joinErr) {
		t.Fatalf("error = %v, want *JoinError", err)
	}

	if items := collector.Items(); len(items) != 0 {
		t.Fatalf("got %d items, want 0: other workers' partial results must be discarded when any worker panics", len(items))
	}
}

func asJoinError(err error, target **JoinError) bool {
	je, ok := err.(*JoinError)
	if ok {
		*target = je
	}
	return ok
}
