package sched

import (
	"fmt"
	"sync"
)

// ResourcePool tracks one cluster's capacity against its current
// reservations. It is the sole mutable authority over that cluster's
// occupancy: nothing else touches the counters. All operations are short,
// mutex-guarded critical sections with no I/O, so two concurrent Reserve
// calls for the last slot resolve to exactly one success.
//
// Invariants held at all times:
//   - allocated <= capacity on every dimension
//   - running <= maxConcurrent
//   - a deployment holds at most one reservation in this pool
type ResourcePool struct {
	mu            sync.Mutex
	cluster       ClusterID
	capacity      Resources
	maxConcurrent int

	allocated    Resources
	reservations map[DeploymentID]Resources
}

// NewResourcePool creates an empty pool for the given cluster capacity.
func NewResourcePool(cluster ClusterID, capacity Resources, maxConcurrent int) *ResourcePool {
	return &ResourcePool{
		cluster:       cluster,
		capacity:      capacity,
		maxConcurrent: maxConcurrent,
		reservations:  make(map[DeploymentID]Resources),
	}
}

func (p *ResourcePool) canAdmitLocked(req Resources) bool {
	if len(p.reservations)+1 > p.maxConcurrent {
		return false
	}
	return p.allocated.Add(req).FitsWithin(p.capacity)
}

// CanAdmit reports whether the pool could currently accept the request:
// allocated + requested <= capacity on every dimension and the concurrency
// cap has room. Pure predicate, no side effect; the answer can be stale by
// the time the caller acts on it, which is why Reserve re-checks.
func (p *ResourcePool) CanAdmit(req Resources) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canAdmitLocked(req)
}

// Reserve atomically re-checks admissibility and commits the request.
// Fails with ErrInsufficientResources when the pool can no longer fit it
// (an expected race outcome, retried next tick — not a fault). Reserving an
// id that already holds a reservation is a no-op success: the request is
// committed at most once.
func (p *ResourcePool) Reserve(id DeploymentID, req Resources) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.reservations[id]; ok {
		return nil
	}
	if !p.canAdmitLocked(req) {
		return fmt.Errorf("%w: cluster %s cannot fit %s", ErrInsufficientResources, p.cluster, req)
	}
	p.allocated = p.allocated.Add(req)
	p.reservations[id] = req
	return nil
}

// Release returns the deployment's reservation to the pool and reports
// whether anything was released. Idempotent: duplicate termination signals
// leave the counters unchanged after the first call.
func (p *ResourcePool) Release(id DeploymentID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.reservations[id]
	if !ok {
		return false
	}
	p.allocated = p.allocated.Sub(req)
	delete(p.reservations, id)
	return true
}

// Running returns the number of deployments currently reserved here.
func (p *ResourcePool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reservations)
}

// Usage returns the pool's capacity, current allocation, and running count
// as one consistent read.
func (p *ResourcePool) Usage() (capacity, allocated Resources, running int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity, p.allocated, len(p.reservations)
}

// Reserved returns the ids currently holding reservations. The slice is a
// copy; order is unspecified.
func (p *ResourcePool) Reserved() []DeploymentID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]DeploymentID, 0, len(p.reservations))
	for id := range p.reservations {
		ids = append(ids, id)
	}
	return ids
}
