package sched

import (
	"sort"
	"sync"
)

// DeploymentStore holds every deployment the system knows about, keyed by id.
// It only guards map membership; per-deployment state is guarded by the
// deployments themselves.
type DeploymentStore struct {
	mu   sync.RWMutex
	byID map[DeploymentID]*Deployment
}

// NewDeploymentStore creates an empty store.
func NewDeploymentStore() *DeploymentStore {
	return &DeploymentStore{byID: make(map[DeploymentID]*Deployment)}
}

// Add inserts a deployment. Ids are uuids minted by the Service, so
// collisions are not expected; Add overwrites silently if one occurs.
func (s *DeploymentStore) Add(d *Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[d.ID] = d
}

// Get looks up a deployment by id.
func (s *DeploymentStore) Get(id DeploymentID) (*Deployment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	return d, ok
}

// Delete removes a deployment record.
func (s *DeploymentStore) Delete(id DeploymentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// List returns all deployments ordered by creation time, then id for
// determinism when timestamps collide.
func (s *DeploymentStore) List() []*Deployment {
	s.mu.RLock()
	out := make([]*Deployment, 0, len(s.byID))
	for _, d := range s.byID {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
