package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Cluster is an execution target with fixed capacity and a concurrency cap.
// Occupancy lives in the cluster's ResourcePool; the operator-controlled
// availability state lives here.
type Cluster struct {
	ID        ClusterID
	Name      string
	Capacity  Resources
	CreatedAt time.Time

	state atomic.String
	pool  *ResourcePool
}

// NewCluster creates a cluster in the active state with an empty pool.
func NewCluster(id ClusterID, name string, capacity Resources, maxConcurrent int) *Cluster {
	c := &Cluster{
		ID:        id,
		Name:      name,
		Capacity:  capacity,
		CreatedAt: time.Now().UTC(),
		pool:      NewResourcePool(id, capacity, maxConcurrent),
	}
	c.state.Store(string(ClusterActive))
	return c
}

// Pool returns the cluster's resource pool.
func (c *Cluster) Pool() *ResourcePool { return c.pool }

// State returns the cluster's availability state.
func (c *Cluster) State() ClusterState { return ClusterState(c.state.Load()) }

// ClusterRegistry is the set of known clusters. List order is ascending
// cluster id, giving the scheduler a fixed, deterministic candidate order.
type ClusterRegistry struct {
	mu       sync.RWMutex
	clusters map[ClusterID]*Cluster
}

// NewClusterRegistry creates an empty registry.
func NewClusterRegistry() *ClusterRegistry {
	return &ClusterRegistry{clusters: make(map[ClusterID]*Cluster)}
}

// Register adds a cluster; fails with ErrClusterExists on a duplicate id.
func (r *ClusterRegistry) Register(c *Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clusters[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrClusterExists, c.ID)
	}
	r.clusters[c.ID] = c
	return nil
}

// Get looks up a cluster by id.
func (r *ClusterRegistry) Get(id ClusterID) (*Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[id]
	return c, ok
}

// List returns all clusters in ascending id order.
func (r *ClusterRegistry) List() []*Cluster {
	r.mu.RLock()
	out := make([]*Cluster, 0, len(r.clusters))
	for _, c := range r.clusters {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetState changes a cluster's availability state. A cluster leaving active
// stops receiving new placements but keeps its existing reservations.
func (r *ClusterRegistry) SetState(id ClusterID, state ClusterState) error {
	if !ValidClusterStates[state] {
		return fmt.Errorf("%w: unknown cluster state %q", ErrValidation, state)
	}
	c, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: cluster %s", ErrNotFound, id)
	}
	c.state.Store(string(state))
	return nil
}

// Deregister removes a cluster. Fails with ErrClusterBusy while the cluster
// still holds reservations for active deployments.
func (r *ClusterRegistry) Deregister(id ClusterID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clusters[id]
	if !ok {
		return fmt.Errorf("%w: cluster %s", ErrNotFound, id)
	}
	if c.pool.Running() > 0 {
		return fmt.Errorf("%w: cluster %s", ErrClusterBusy, id)
	}
	delete(r.clusters, id)
	return nil
}
