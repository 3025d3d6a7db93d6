package parallex

import "runtime"

// Name identifies a job for observability: it tags capitan signals,
// tracez spans, and metricz series so concurrent jobs can be told apart
// in logs and dashboards.
type Name = string

const (
	// defaultInitialWorkers is how many workers Phase A spawns, pulling
	// one chunk from the dispenser for each right after it is spawned.
	defaultInitialWorkers = 2

	// cpuThreadRatio is the multiplier applied to detected hardware
	// parallelism to obtain the absolute worker-count ceiling.
	cpuThreadRatio = 2

	// targetChunks is the number of chunks a dispenser aims to split a
	// known-length source into; chunkSizeFor floors the resulting size so
	// tiny sources don't degenerate into one-item chunks.
	targetChunks = 100

	// minChunkSize is the floor under targetChunks' division.
	minChunkSize = 8

	// stealFloor is the minimum queue length worth stealing from; donors
	// at or below it are left alone; see Controller's redistribution loop.
	stealFloor = 2
)

// hardCeiling is the absolute worker-count ceiling: 2x hardware
// parallelism (clampWorkers takes the minimum of it and the request).
// Detection failure floors to 1 hardware thread.
func hardCeiling() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n * cpuThreadRatio
}

// defaultCap is the worker cap used when Threads() is never called.
func defaultCap() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// clampWorkers resolves a requested worker count against the absolute
// ceiling. A non-positive request means "use the default".
func clampWorkers(requested int) int {
	ceiling := hardCeiling()
	if requested <= 0 {
		if defaultCap() > ceiling {
			return ceiling
		}
		return defaultCap()
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

// chunkSizeFor picks a dispenser's chunk size for a source of the given
// length so it splits into roughly targetChunks chunks, never smaller
// than minChunkSize.
func chunkSizeFor(length int) int {
	size := length / targetChunks
	if size < minChunkSize {
		size = minChunkSize
	}
	return size
}
