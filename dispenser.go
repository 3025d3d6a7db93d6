package parallex

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Dispenser hands items, or chunks of items, out of a source sequence to
// whichever worker asks next. Every method must be safe to call from
// multiple goroutines concurrently; no caller ever receives the same
// item (or the same chunk) twice.
type Dispenser[V any] interface {
	// Pop hands out a single item, or reports false once exhausted.
	Pop() (V, bool)
	// Pull hands out the next chunk, or reports false once exhausted.
	Pull() ([]V, bool)
	// Len reports the number of items remaining and whether that count
	// is known. Every dispenser in this package (slice, map and range)
	// always knows it.
	Len() (int, bool)
	// IsActive reports whether the source still has unclaimed items.
	IsActive() bool
}

// sliceDispenser claims items out of a fixed slice via a single shared
// atomic cursor. The original implementation keyed its cursor off
// thread-local storage; goroutines have no comparable stable identity to
// key a thread-local map on, but none is needed here since every claim
// already goes through one atomic fetch-and-add — the property a
// thread-local cursor existed to provide. It also realizes both the
// by-value and by-reference variants the original implementation kept
// separate: Go has no move semantics, so the atomic claim on the shared
// cursor is already sufficient to guarantee an index is handed to
// exactly one caller, whether V is a value type or a reference/closure
// type.
type sliceDispenser[V any] struct {
	items     []V
	chunkSize int
	cursor    atomic.Int64
}

// Slice creates a Dispenser over s. s must not be mutated while the
// dispenser is in use.
func Slice[V any](s []V) Dispenser[V] {
	return &sliceDispenser[V]{
		items:     s,
		chunkSize: chunkSizeFor(len(s)),
	}
}

func (d *sliceDispenser[V]) Pop() (V, bool) {
	var zero V
	i := d.cursor.Add(1) - 1
	if int(i) >= len(d.items) {
		return zero, false
	}
	return d.items[i], true
}

func (d *sliceDispenser[V]) Pull() ([]V, bool) {
	size := int64(d.chunkSize)
	start := d.cursor.Add(size) - size
	if int(start) >= len(d.items) {
		return nil, false
	}
	end := start + size
	if int(end) > len(d.items) {
		end = int64(len(d.items))
	}
	return d.items[start:end], true
}

func (d *sliceDispenser[V]) Len() (int, bool) {
	remaining := len(d.items) - int(d.cursor.Load())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (d *sliceDispenser[V]) IsActive() bool {
	return int(d.cursor.Load()) < len(d.items)
}

// tableDispenser claims entries out of a map. Unlike a slice, a map has
// no stable index to claim atomically, so enumeration is serialized
// behind a mutex: the keys are materialized once up front and handed out
// from a shared cursor, mirroring the original implementation's
// "sequential-source path" for unordered sources.
type tableDispenser[K comparable, V any] struct {
	mu        sync.Mutex
	table     map[K]V
	keys      []K
	pos       int
	chunkSize int
}

// Entry is one key/value pair handed out of a map-backed dispenser.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map creates a Dispenser over m's entries. m must not be mutated while
// the dispenser is in use.
func Map[K comparable, V any](m map[K]V) Dispenser[Entry[K, V]] {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return &tableDispenser[K, V]{
		table:     m,
		keys:      keys,
		chunkSize: chunkSizeFor(len(keys)),
	}
}

func (d *tableDispenser[K, V]) Pop() (Entry[K, V], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero Entry[K, V]
	if d.pos >= len(d.keys) {
		return zero, false
	}
	k := d.keys[d.pos]
	d.pos++
	return Entry[K, V]{Key: k, Value: d.table[k]}, true
}

func (d *tableDispenser[K, V]) Pull() ([]Entry[K, V], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.keys) {
		return nil, false
	}
	end := d.pos + d.chunkSize
	if end > len(d.keys) {
		end = len(d.keys)
	}
	chunk := make([]Entry[K, V], 0, end-d.pos)
	for _, k := range d.keys[d.pos:end] {
		chunk = append(chunk, Entry[K, V]{Key: k, Value: d.table[k]})
	}
	d.pos = end
	return chunk, true
}

func (d *tableDispenser[K, V]) Len() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.keys) - d.pos, true
}

func (d *tableDispenser[K, V]) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos < len(d.keys)
}

// rangeDispenser claims integers out of [start, end) via an atomic cursor.
type rangeDispenser[N constraints.Integer] struct {
	start     int64
	end       int64
	chunkSize int64
	cursor    atomic.Int64
}

// Range creates a Dispenser over the half-open interval [start, end).
func Range[N constraints.Integer](start, end N) Dispenser[N] {
	s, e := int64(start), int64(end)
	length := int(e - s)
	if length < 0 {
		length = 0
	}
	return &rangeDispenser[N]{
		start:     s,
		end:       e,
		chunkSize: int64(chunkSizeFor(length)),
	}
}

func (d *rangeDispenser[N]) Pop() (N, bool) {
	i := d.cursor.Add(1) - 1 + d.start
	if i >= d.end {
		var zero N
		return zero, false
	}
	return N(i), true
}

func (d *rangeDispenser[N]) Pull() ([]N, bool) {
	size := d.chunkSize
	start := d.cursor.Add(size) - size + d.start
	if start >= d.end {
		return nil, false
	}
	end := start + size
	if end > d.end {
		end = d.end
	}
	chunk := make([]N, 0, end-start)
	for i := start; i < end; i++ {
		chunk = append(chunk, N(i))
	}
	return chunk, true
}

func (d *rangeDispenser[N]) Len() (int, bool) {
	remaining := d.end - (d.cursor.Load() + d.start)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining), true
}

func (d *rangeDispenser[N]) IsActive() bool {
	return d.cursor.Load()+d.start < d.end
}
