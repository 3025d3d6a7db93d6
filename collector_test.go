package parallex

import (
	"sort"
	"testing"
)

func TestSliceCollectorExtend(t *testing.T) {
	c := NewSliceCollector[int]()
	c.Extend([]int{1, 2, 3})
	c.Extend([]int{4, 5})

	got := c.Items()
	if len(got) != 5 {
		t.Fatalf("got %d items, want 5", len(got))
	}
}

func TestMapCollectorExtendOverwritesOnDuplicateKey(t *testing.T) {
	c := NewMapCollector[string, int]()
	c.Extend([]Entry[string, int]{{Key: "a", Value: 1}, {Key: "b", Value: 2}})
	c.Extend([]Entry[string, int]{{Key: "a", Value: 99}})

	table := c.Table()
	if table["a"] != 99 {
		t.Fatalf("table[a] = %d, want 99", table["a"])
	}
	if table["b"] != 2 {
		t.Fatalf("table[b] = %d, want 2", table["b"])
	}
}

func TestSliceCollectorConcurrentExtend(t *testing.T) {
	c := NewSliceCollector[int]()
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			c.Extend([]int{n})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	got := c.Items()
	sort.Ints(got)
	if len(got) != 10 {
		t.Fatalf("got %d items, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("sorted items = %v, want 0..9", got)
		}
	}
}
