package parallex

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/tracez"
)

const (
	ControllerRunSpan     = tracez.Key("controller.run")
	ControllerRedistSpan  = tracez.Key("controller.redistribute")
	ControllerTagJobName  = tracez.Tag("controller.job_name")
	ControllerTagItemType = tracez.Tag("controller.item_type")
	ControllerTagOutType  = tracez.Tag("controller.output_type")
	ControllerTagDonors   = tracez.Tag("controller.donor_count")
	ControllerTagStolen   = tracez.Tag("controller.stolen_count")
)

const (
	ControllerEventWorkerSpawned = hookz.Key("controller.worker_spawned")
	ControllerEventSteal         = hookz.Key("controller.steal")
	ControllerEventJobComplete   = hookz.Key("controller.job_complete")
)

// ControllerEvent is delivered to hookz handlers registered via OnWorkerSpawned,
// OnSteal, and OnJobComplete.
type ControllerEvent struct {
	Job         Name
	WorkerIndex int
	DonorIndex  int
	StolenSize  int
	Duration    time.Duration
	Timestamp   time.Time
}

// donorSnapshot pairs a worker index with its queue length at the moment
// the controller sorted donors for a redistribution pass.
type donorSnapshot struct {
	index  int
	length int
}

// Controller drives one job — a Map or ForEach run — to completion by
// orchestrating a ThreadManager and a Dispenser through the three phases
// spec.md describes: primary distribution, controller-driven work
// stealing, and join.
type Controller[V any, T any] struct {
	name     Name
	tm       *ThreadManager[V, T]
	disp     Dispenser[V]
	clock    clockz.Clock
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[ControllerEvent]
	itemType string
	outType  string
}

// NewController creates a controller for one job over disp, spawning
// workers through tm. The item and output type names are resolved once
// here, not per Run call: a controller drives exactly one job, so there
// is nothing to amortize a cache over.
func NewController[V any, T any](name Name, tm *ThreadManager[V, T], disp Dispenser[V], clock clockz.Clock) *Controller[V, T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Controller[V, T]{
		name:     name,
		tm:       tm,
		disp:     disp,
		clock:    clock,
		tracer:   tracez.New(),
		hooks:    hookz.New[ControllerEvent](),
		itemType: typeName[V](),
		outType:  typeName[T](),
	}
}

// OnWorkerSpawned registers a handler fired whenever Phase B grows the pool.
func (c *Controller[V, T]) OnWorkerSpawned(handler func(context.Context, ControllerEvent) error) error {
	_, err := c.hooks.Hook(ControllerEventWorkerSpawned, handler)
	return err
}

// OnSteal registers a handler fired whenever Phase B steals a donor's half.
func (c *Controller[V, T]) OnSteal(handler func(context.Context, ControllerEvent) error) error {
	_, err := c.hooks.Hook(ControllerEventSteal, handler)
	return err
}

// OnJobComplete registers a handler fired once the job finishes.
func (c *Controller[V, T]) OnJobComplete(handler func(context.Context, ControllerEvent) error) error {
	_, err := c.hooks.Hook(ControllerEventJobComplete, handler)
	return err
}

// Run drives the job to completion and returns the collected outputs via
// collector, or the first fatal error encountered (a worker panic or
// join failure).
func (c *Controller[V, T]) Run(ctx context.Context, collector Collector[T]) error {
	ctx, span := c.tracer.StartSpan(ctx, ControllerRunSpan)
	span.SetTag(ControllerTagJobName, string(c.name))
	span.SetTag(ControllerTagItemType, c.itemType)
	span.SetTag(ControllerTagOutType, c.outType)
	defer span.Finish()
	defer c.tracer.Close()
	defer c.hooks.Close()

	start := c.clock.Now()
	var wg sync.WaitGroup

	controlTime := c.distributeInitial(ctx, &wg)
	c.redistribute(ctx, &wg, controlTime)

	err := c.tm.JoinAll(ctx, &wg, collector)

	duration := c.clock.Now().Sub(start)
	capitan.Info(ctx, SignalJobCompleted,
		FieldJobName.Field(string(c.name)),
		FieldDuration.Field(duration.Seconds()),
	)
	_ = c.hooks.Emit(ctx, ControllerEventJobComplete, ControllerEvent{ //nolint:errcheck
		Job:       c.name,
		Duration:  duration,
		Timestamp: c.clock.Now(),
	})
	return err
}

// distributeInitial is Phase A: spawn defaultInitialWorkers, and for each
// one pull a chunk from the dispenser and hand it off via replace-then-
// Run. A worker that finds no chunk available is pushed onto the free
// list instead.
func (c *Controller[V, T]) distributeInitial(ctx context.Context, wg *sync.WaitGroup) time.Duration {
	start := c.clock.Now()

	n := defaultInitialWorkers
	if n > c.tm.MaxWorkers() {
		n = c.tm.MaxWorkers()
	}
	for i := 0; i < n; i++ {
		idx, err := c.tm.AddWorker(ctx, wg)
		if err != nil {
			break
		}
		w := c.tm.GetWorker(idx)
		chunk, ok := c.disp.Pull()
		if !ok {
			c.tm.PushFree(idx)
			continue
		}
		w.BeginBatch(len(chunk))
		w.Primary().Replace(chunk)
		w.Primary().SetState(StateRun)
	}
	c.tm.RecordQueueDepth()

	elapsed := c.clock.Now().Sub(start)
	spawned := c.tm.WorkerCount()
	capitan.Info(ctx, SignalDistributed,
		FieldJobName.Field(string(c.name)),
		FieldWorkerCount.Field(spawned),
	)
	if spawned == 0 {
		return elapsed
	}
	return elapsed / time.Duration(spawned)
}

// redistribute is Phase B: repeatedly steal half of the most-loaded
// worker's queue into an idle worker, refreshing the free list and
// growing the pool elastically whenever it runs dry, until every donor
// is at or below stealFloor and the dispenser has nothing left either.
func (c *Controller[V, T]) redistribute(ctx context.Context, wg *sync.WaitGroup, controlTime time.Duration) {
	ctx, span := c.tracer.StartSpan(ctx, ControllerRedistSpan)
	defer span.Finish()

	stolenTotal := 0
	idleSpins := 0
	for {
		if c.tm.FreeLen() == 0 {
			before := c.tm.WorkerCount()
			controlTime = c.tm.RefreshFreeList(ctx, wg, controlTime)
			for idx := before; idx < c.tm.WorkerCount(); idx++ {
				_ = c.hooks.Emit(ctx, ControllerEventWorkerSpawned, ControllerEvent{ //nolint:errcheck
					Job:         c.name,
					WorkerIndex: idx,
					Timestamp:   c.clock.Now(),
				})
			}
		}

		progressed := false
		for c.tm.FreeLen() > 0 {
			donors := c.snapshotDonors()
			if len(donors) == 0 {
				break
			}
			sort.Slice(donors, func(i, j int) bool { return donors[i].length > donors[j].length })
			span.SetTag(ControllerTagDonors, fmt.Sprintf("%d", len(donors)))

			top := donors[0]
			if top.length <= stealFloor {
				if chunk, ok := c.disp.Pull(); ok {
					idx, ok := c.tm.PopFree()
					if ok {
						w := c.tm.GetWorker(idx)
						w.BeginBatch(len(chunk))
						w.Primary().Replace(chunk)
						w.Primary().SetState(StateRun)
						progressed = true
						c.tm.RecordQueueDepth()
						continue
					}
				}
				break
			}

			idleIdx, ok := c.tm.PopFree()
			if !ok {
				break
			}
			capitan.Info(ctx, SignalStealAttempt,
				FieldJobName.Field(string(c.name)),
				FieldDonorIndex.Field(top.index),
				FieldIdleIndex.Field(idleIdx),
				FieldQueueLength.Field(top.length),
			)
			donorW := c.tm.GetWorker(top.index)
			stolen, ok := donorW.Primary().StealHalf()
			if !ok || len(stolen) == 0 {
				c.tm.PushFree(idleIdx)
				continue
			}
			idleW := c.tm.GetWorker(idleIdx)
			idleW.BeginBatch(len(stolen))
			idleW.Primary().Replace(stolen)
			idleW.Primary().SetState(StateRun)
			progressed = true
			stolenTotal += len(stolen)
			c.tm.RecordQueueDepth()

			capitan.Info(ctx, SignalStealSucceeded,
				FieldJobName.Field(string(c.name)),
				FieldDonorIndex.Field(top.index),
				FieldIdleIndex.Field(idleIdx),
				FieldStolenSize.Field(len(stolen)),
				FieldBatchSize.Field(len(stolen)),
			)
			_ = c.hooks.Emit(ctx, ControllerEventSteal, ControllerEvent{ //nolint:errcheck
				Job:         c.name,
				WorkerIndex: idleIdx,
				DonorIndex:  top.index,
				StolenSize:  len(stolen),
				Timestamp:   c.clock.Now(),
			})
		}

		if !c.disp.IsActive() && c.allDonorsAtOrBelowFloor() {
			span.SetTag(ControllerTagStolen, fmt.Sprintf("%d", stolenTotal))
			return
		}

		if progressed {
			idleSpins = 0
			continue
		}
		// Nothing to do this round: every donor is at or below the
		// steal floor but the dispenser or a busy worker hasn't made
		// fresh progress yet. Back off the same way spinGate does
		// rather than hot-looping RefreshFreeList.
		if idleSpins < maxSpins {
			idleSpins++
			continue
		}
		runtime.Gosched()
		idleSpins /= 2
	}
}

func (c *Controller[V, T]) snapshotDonors() []donorSnapshot {
	n := c.tm.WorkerCount()
	donors := make([]donorSnapshot, 0, n)
	for i := 0; i < n; i++ {
		w := c.tm.GetWorker(i)
		if w.Primary().State() != StateRun {
			continue
		}
		donors = append(donors, donorSnapshot{index: i, length: w.Primary().Len()})
	}
	return donors
}

func (c *Controller[V, T]) allDonorsAtOrBelowFloor() bool {
	for _, d := range c.snapshotDonors() {
		if d.length > stealFloor {
			return false
		}
	}
	return true
}
