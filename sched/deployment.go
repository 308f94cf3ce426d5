package sched

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Deployment is a unit of workload requesting resources on a cluster.
//
// Identity and the requested resources are immutable after creation. Status,
// priority and the assigned cluster are guarded by the deployment's own mutex,
// so transitions on a single deployment are linearized: a cancellation racing
// the scheduler sees either the old Queued state or the new Scheduled state,
// never a half-applied one. Side effects on the queue and the resource pools
// are performed by the caller after the transition commits; both are
// idempotent, so the ordering is race-safe.
type Deployment struct {
	ID          DeploymentID
	Name        string
	Image       string
	Environment map[string]string
	Requested   Resources
	CreatedAt   time.Time

	mu        sync.Mutex
	priority  int
	status    Status
	clusterID ClusterID
	updatedAt time.Time
}

// legalTransitions enumerates the allowed status changes.
// Scheduled/Running -> Queued is the displacement path used by preemption.
var legalTransitions = map[Status][]Status{
	StatusQueued:    {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusRunning, StatusCancelled, StatusQueued},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusQueued},
}

// NewDeployment creates a Queued deployment with the given identity and
// request. Validation against configured maxima happens in the Service before
// this is called.
func NewDeployment(id DeploymentID, name, image string, env map[string]string, priority int, req Resources) *Deployment {
	now := time.Now().UTC()
	return &Deployment{
		ID:          id,
		Name:        name,
		Image:       image,
		Environment: env,
		Requested:   req,
		CreatedAt:   now,
		priority:    priority,
		status:      StatusQueued,
		updatedAt:   now,
	}
}

// Status returns the current lifecycle state.
func (d *Deployment) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Priority returns the current priority.
func (d *Deployment) Priority() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.priority
}

// Cluster returns the assigned cluster id, empty while Queued.
func (d *Deployment) Cluster() ClusterID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clusterID
}

// UpdatedAt returns the time of the last status or priority change (UTC).
func (d *Deployment) UpdatedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updatedAt
}

func (d *Deployment) transitionLocked(to Status) error {
	for _, allowed := range legalTransitions[d.status] {
		if allowed == to {
			d.status = to
			d.updatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for deployment %s", ErrInvalidTransition, d.status, to, d.ID)
}

// markScheduled transitions Queued -> Scheduled and records the cluster.
// Called only by the scheduler, immediately after a successful Reserve on the
// same cluster; on error the caller must release that reservation.
func (d *Deployment) markScheduled(cluster ClusterID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(StatusScheduled); err != nil {
		return err
	}
	d.clusterID = cluster
	return nil
}

// markRunning transitions Scheduled -> Running (executor confirmation).
func (d *Deployment) markRunning() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transitionLocked(StatusRunning)
}

// markTerminal transitions Running -> Completed/Failed and returns the cluster
// whose reservation the caller must release.
func (d *Deployment) markTerminal(outcome Outcome) (ClusterID, error) {
	to := StatusCompleted
	if outcome == OutcomeFailed {
		to = StatusFailed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(to); err != nil {
		return "", err
	}
	return d.clusterID, nil
}

// cancel transitions any non-terminal state to Cancelled. It returns the
// state the deployment was in and, when that state held a reservation, the
// cluster to release. Cancelling an already-cancelled deployment is an
// idempotent no-op (from == StatusCancelled, err == nil).
func (d *Deployment) cancel() (from Status, cluster ClusterID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	from = d.status
	if from == StatusCancelled {
		return from, "", nil
	}
	if err := d.transitionLocked(StatusCancelled); err != nil {
		return from, "", err
	}
	if from == StatusScheduled || from == StatusRunning {
		return from, d.clusterID, nil
	}
	return from, "", nil
}

// displace transitions Scheduled/Running back to Queued, clearing the cluster
// assignment. Used by the preemption path; returns the cluster to release.
func (d *Deployment) displace() (ClusterID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(StatusQueued); err != nil {
		return "", err
	}
	cluster := d.clusterID
	d.clusterID = ""
	return cluster, nil
}

// setPriority records a priority change. Queue reordering is the caller's
// responsibility (Reprioritize on the queue).
func (d *Deployment) setPriority(p int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.priority != p {
		d.priority = p
		d.updatedAt = time.Now().UTC()
	}
}

// View is an immutable snapshot of a deployment for external consumers.
type View struct {
	ID          DeploymentID      `json:"id"`
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Environment map[string]string `json:"environment,omitempty"`
	Requested   Resources         `json:"requested"`
	Priority    int               `json:"priority"`
	Status      Status            `json:"status"`
	ClusterID   ClusterID         `json:"cluster_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Snapshot returns a consistent point-in-time view of the deployment.
func (d *Deployment) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return View{
		ID:          d.ID,
		Name:        d.Name,
		Image:       d.Image,
		Environment: maps.Clone(d.Environment),
		Requested:   d.Requested,
		Priority:    d.priority,
		Status:      d.status,
		ClusterID:   d.clusterID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.updatedAt,
	}
}
