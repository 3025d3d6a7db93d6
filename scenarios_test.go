package parallex

import (
	"sort"
	"sync"
	"testing"
)

// Scenario: map over an integer range, x -> x+100.
func TestScenarioRangeMap(t *testing.T) {
	result, err := MapOp(Range(0, 100_000), func(n int) int { return n + 100 }).
		Threads(8).
		Collect(NewSliceCollector[int]())
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	items := result.(*SliceCollector[int]).Items()
	if len(items) != 100_000 {
		t.Fatalf("got %d outputs, want 100000", len(items))
	}
	sort.Ints(items)
	if items[0] != 100 || items[len(items)-1] != 100_099 {
		t.Fatalf("range = [%d, %d], want [100, 100099]", items[0], items[len(items)-1])
	}
}

// Scenario: map over a map of nullary closures, summing to a known total.
func TestScenarioMapOfClosures(t *testing.T) {
	closures := make(map[int]func() int, 1000)
	for i := 0; i < 1000; i++ {
		i := i
		closures[i] = func() int { return i }
	}

	result, err := MapOp(Map(closures), func(e Entry[int, func() int]) int {
		return e.Value()
	}).Collect(NewSliceCollector[int]())
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	items := result.(*SliceCollector[int]).Items()
	var sum int
	for _, v := range items {
		sum += v
	}
	if sum != 499_500 {
		t.Fatalf("sum = %d, want 499500", sum)
	}
}

// Scenario: for-each over a contiguous slice accumulating under a shared lock.
func TestScenarioForEachAccumulator(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i + 1
	}

	var mu sync.Mutex
	var total int
	err := ForEach(Slice(items), func(n int) {
		mu.Lock()
		total += n
		mu.Unlock()
	}).Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if total != 5_050 {
		t.Fatalf("total = %d, want 5050", total)
	}
}

// Scenario: stealing correctness under contention — with a worker cap of
// two, the controller steals halves between the same two workers while
// also handing out fresh chunks, and every item must still come out
// exactly once.
func TestScenarioStealUnderContention(t *testing.T) {
	n := 100_000
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}

	result, err := MapOp(Slice(items), func(v int) int { return v }).
		Threads(2).
		Collect(NewSliceCollector[int]())
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	got := result.(*SliceCollector[int]).Items()
	if len(got) != n {
		t.Fatalf("got %d outputs, want %d", len(got), n)
	}
	seen := make([]bool, n)
	for _, v := range got {
		if seen[v] {
			t.Fatalf("value %d produced more than once", v)
		}
		seen[v] = true
	}
}

// Scenario: elastic scaling under many short jobs of varying (but
// deterministic, item-dependent) duration.
func TestScenarioElasticScalingManyShortJobs(t *testing.T) {
	n := 10_000
	items := make([]int, n)
	for i := range items {
		items[i] = i % 7
	}

	result, err := MapOp(Slice(items), func(spin int) int {
		total := 0
		for i := 0; i < spin*37; i++ {
			total += i
		}
		return total
	}).Collect(NewSliceCollector[int]())
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if len(result.(*SliceCollector[int]).Items()) != n {
		t.Fatalf("got %d outputs, want %d", len(result.(*SliceCollector[int]).Items()), n)
	}
}

// Scenario: an empty source produces no output and no error.
func TestScenarioEmptySource(t *testing.T) {
	result, err := MapOp(Slice([]int{}), func(n int) int { return n }).
		Collect(NewSliceCollector[int]())
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if len(result.(*SliceCollector[int]).Items()) != 0 {
		t.Fatal("expected no outputs for an empty source")
	}

	var called bool
	err = ForEach(Slice([]int{}), func(int) { called = true }).Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if called {
		t.Fatal("fn should never be called over an empty source")
	}
}
