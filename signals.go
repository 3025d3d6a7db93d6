package parallex

import "github.com/zoobzio/capitan"

// Signal constants for parallex job events.
// Signals follow the pattern: <component>.<event>.
const (
	// ThreadManager signals.
	SignalWorkerSpawned   capitan.Signal = "threadmanager.worker-spawned"
	SignalWorkerSpawnFail capitan.Signal = "threadmanager.worker-spawn-failed"
	SignalWorkerJoined    capitan.Signal = "threadmanager.worker-joined"
	SignalPoolGrew        capitan.Signal = "threadmanager.pool-grew"

	// Controller signals.
	SignalDistributed    capitan.Signal = "controller.distributed"
	SignalStealAttempt   capitan.Signal = "controller.steal-attempt"
	SignalStealSucceeded capitan.Signal = "controller.steal-succeeded"
	SignalJobCompleted   capitan.Signal = "controller.job-completed"

	// Worker signals.
	SignalWorkerPanicked capitan.Signal = "worker.panicked"
	SignalWorkerUnwound  capitan.Signal = "worker.unwound"
)

// Field keys using capitan primitive types.
var (
	// Common fields.
	FieldJobName = capitan.NewStringKey("job_name")
	FieldError   = capitan.NewStringKey("error")

	// Worker fields.
	FieldWorkerIndex = capitan.NewIntKey("worker_index")
	FieldQueueLength = capitan.NewIntKey("queue_length")
	FieldBatchSize   = capitan.NewIntKey("batch_size")

	// ThreadManager fields.
	FieldWorkerCount   = capitan.NewIntKey("worker_count")
	FieldMaxWorkers    = capitan.NewIntKey("max_workers")
	FieldControlTimeNs = capitan.NewFloat64Key("control_time_ns")
	FieldSpawnedCount  = capitan.NewIntKey("spawned_count")

	// Controller fields.
	FieldDonorIndex = capitan.NewIntKey("donor_index")
	FieldIdleIndex  = capitan.NewIntKey("idle_index")
	FieldStolenSize = capitan.NewIntKey("stolen_size")
	FieldDuration   = capitan.NewFloat64Key("duration_seconds")
)
