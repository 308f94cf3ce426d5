package sched

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Assignment is the scheduler's output: a deployment placed onto a cluster.
// It is handed to the external executor; the scheduler itself never runs
// workloads.
type Assignment struct {
	DeploymentID DeploymentID
	ClusterID    ClusterID
	Priority     int
	AssignedAt   time.Time
}

// AssignmentHandler receives assignments produced by an admission pass. It is
// invoked after the pass traversal, with no queue or pool locks held. A slow
// handler delays only subsequent ticks, never an in-flight placement.
type AssignmentHandler func(Assignment)

// Scheduler owns the admission control loop: on every tick it drains
// admissible entries from the queue against the cluster registry, reserving
// resources and producing assignments. At most one admission pass runs at a
// time; a tick arriving while a pass is in flight is dropped rather than
// overlapped.
type Scheduler struct {
	cfg       Config
	queue     *PriorityQueue
	registry  *ClusterRegistry
	store     *DeploymentStore
	placement PlacementPolicy
	metrics   *Metrics
	onAssign  AssignmentHandler

	passing atomic.Bool
}

// NewScheduler wires the control loop to its collaborators. onAssign and
// metrics may be nil.
func NewScheduler(cfg Config, queue *PriorityQueue, registry *ClusterRegistry, store *DeploymentStore, metrics *Metrics, onAssign AssignmentHandler) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		queue:     queue,
		registry:  registry,
		store:     store,
		placement: NewPlacementPolicy(cfg.PlacementPolicy),
		metrics:   metrics,
		onAssign:  onAssign,
	}
}

// Run drives Tick on the configured interval until ctx is cancelled. The tick
// cadence is wall-clock; the admission logic itself lives in Tick so tests
// and manual drivers can invoke passes directly.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval())
	defer ticker.Stop()
	logrus.Infof("scheduler started, interval=%s placement=%q preemption=%v",
		s.cfg.Interval(), s.cfg.PlacementPolicy, s.cfg.EnablePreemption)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick executes one admission pass over a snapshot of the queue order. If a
// pass is already in flight the call returns immediately: passes are
// serialized system-wide and never overlap.
//
// For each entry, in (priority desc, sequence asc) order, the pass looks for
// a feasible active cluster via the placement policy and attempts to reserve.
// An entry with no feasible cluster is skipped, not a stopping point: a small
// low-priority request behind an oversized one may still be admitted in the
// same pass. A Reserve that loses a race stays queued for the next tick.
func (s *Scheduler) Tick() {
	if !s.passing.CompareAndSwap(false, true) {
		return
	}
	defer s.passing.Store(false)

	var assignments []Assignment
	for _, entry := range s.queue.Ordered() {
		d, ok := s.store.Get(entry.DeploymentID)
		if !ok || d.Status() != StatusQueued {
			// Cancelled or unknown since the snapshot; drop the stale entry.
			s.queue.Remove(entry.DeploymentID)
			continue
		}
		target := s.findTarget(d)
		if target == nil && s.cfg.EnablePreemption {
			target = s.preemptFor(d)
		}
		if target == nil {
			continue
		}
		if err := target.Pool().Reserve(d.ID, d.Requested); err != nil {
			// Lost the race since CanAdmit; retry next tick.
			s.metrics.incReserveConflict()
			logrus.Debugf("reserve lost for deployment %s on cluster %s: %v", d.ID, target.ID, err)
			continue
		}
		if err := d.markScheduled(target.ID); err != nil {
			// Cancelled between snapshot and reserve; undo the reservation.
			target.Pool().Release(d.ID)
			s.queue.Remove(d.ID)
			continue
		}
		s.queue.Remove(d.ID)
		s.metrics.incScheduled()
		// Report the deployment's current priority, not the pass-start
		// snapshot's: a reprioritization during the pass must reach the
		// executor.
		prio := d.Priority()
		logrus.Infof("scheduled deployment %s (priority %d) on cluster %s", d.ID, prio, target.ID)
		assignments = append(assignments, Assignment{
			DeploymentID: d.ID,
			ClusterID:    target.ID,
			Priority:     prio,
			AssignedAt:   time.Now().UTC(),
		})
	}

	s.metrics.observePass(s.queue.Len(), s.registry.List())

	if s.onAssign != nil {
		for _, a := range assignments {
			s.onAssign(a)
		}
	}
}

// findTarget returns the placement policy's pick among active clusters that
// can currently admit the deployment, or nil when none can.
func (s *Scheduler) findTarget(d *Deployment) *Cluster {
	var candidates []*Cluster
	for _, c := range s.registry.List() {
		if c.State() != ClusterActive {
			continue
		}
		if c.Pool().CanAdmit(d.Requested) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return s.placement.Pick(candidates)
}

// preemptFor tries to make room for d by displacing strictly-lower-priority
// deployments back into the queue, lowest priority first. Victims are only
// displaced once a full victim set is known to free enough capacity AND the
// queue can absorb them; otherwise the cluster is left untouched. Returns the
// cluster that now admits d, or nil.
func (s *Scheduler) preemptFor(d *Deployment) *Cluster {
	prio := d.Priority()
	for _, c := range s.registry.List() {
		if c.State() != ClusterActive {
			continue
		}
		if !d.Requested.FitsWithin(c.Capacity) {
			continue
		}
		pool := c.Pool()

		var victims []*Deployment
		for _, id := range pool.Reserved() {
			v, ok := s.store.Get(id)
			if !ok {
				continue
			}
			if v.Priority() < prio {
				victims = append(victims, v)
			}
		}
		sort.Slice(victims, func(i, j int) bool {
			pi, pj := victims[i].Priority(), victims[j].Priority()
			if pi != pj {
				return pi < pj
			}
			return victims[i].ID < victims[j].ID
		})

		// Find the minimal victim prefix that would let d fit.
		_, allocated, running := pool.Usage()
		freed := Resources{}
		chosen := 0
		fits := func() bool {
			return allocated.Sub(freed).Add(d.Requested).FitsWithin(c.Capacity) &&
				running-chosen+1 <= s.cfg.MaxConcurrentPerCluster
		}
		for !fits() && chosen < len(victims) {
			freed = freed.Add(victims[chosen].Requested)
			chosen++
		}
		if !fits() || chosen == 0 {
			continue
		}
		// The entry being placed still holds its queue slot here (it is only
		// removed after Reserve succeeds back in Tick), so it gets no credit
		// in the absorb check.
		if s.queue.Len()+chosen > s.queue.Cap() {
			logrus.Debugf("preemption for %s on %s skipped: queue cannot absorb %d victims", d.ID, c.ID, chosen)
			continue
		}

		for _, v := range victims[:chosen] {
			// Claim the victim's queue slot before touching it: a concurrent
			// Enqueue can fill the queue after the absorb check, and a full
			// queue must leave the victim running rather than strand it.
			if err := s.queue.Enqueue(v.ID, v.Priority()); err != nil {
				logrus.Warnf("preemption of %s on %s stopped: %v", v.ID, c.ID, err)
				break
			}
			cluster, err := v.displace()
			if err != nil {
				// Victim reached a terminal state concurrently; give the slot
				// back, that path releases the reservation itself.
				s.queue.Remove(v.ID)
				continue
			}
			pool.Release(v.ID)
			s.metrics.incPreempted()
			logrus.Infof("preempted deployment %s (priority %d) on cluster %s for %s (priority %d)",
				v.ID, v.Priority(), cluster, d.ID, prio)
		}
		if pool.CanAdmit(d.Requested) {
			return c
		}
	}
	return nil
}
