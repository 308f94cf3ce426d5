package sched

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// CreateDeploymentRequest is the validated input produced by the API layer.
// Priority 0 means "use the configured default".
type CreateDeploymentRequest struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Environment map[string]string `json:"environment,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	RAMGB       float64           `json:"ram_gb"`
	CPUCores    float64           `json:"cpu_cores"`
	GPUCount    int               `json:"gpu_count"`
}

// RegisterClusterRequest describes a new execution target.
type RegisterClusterRequest struct {
	Name     string  `json:"name"`
	RAMGB    float64 `json:"ram_gb"`
	CPUCores float64 `json:"cpu_cores"`
	GPUCount int     `json:"gpu_count"`
}

// QueueEntry is one row of the queue snapshot exposed for inspection.
type QueueEntry struct {
	DeploymentID DeploymentID `json:"deployment_id"`
	Priority     int          `json:"priority"`
	Sequence     uint64       `json:"sequence"`
	Position     int          `json:"position"`
}

// ClusterStatusReport is the externally visible occupancy of one cluster.
type ClusterStatusReport struct {
	ClusterID    ClusterID    `json:"cluster_id"`
	Name         string       `json:"name"`
	State        ClusterState `json:"state"`
	Capacity     Resources    `json:"capacity"`
	Allocated    Resources    `json:"allocated"`
	RunningCount int          `json:"running_count"`
}

// Service is the facade the web/API layer drives. It owns the deployment
// store, queue, registry and scheduler, and maps external operations onto
// them. All methods are safe for concurrent use and may run in parallel with
// admission passes.
type Service struct {
	cfg       Config
	store     *DeploymentStore
	queue     *PriorityQueue
	registry  *ClusterRegistry
	scheduler *Scheduler
	metrics   *Metrics
}

// NewService validates cfg and wires the scheduling core. reg and onAssign
// may be nil (no metrics, no executor handoff).
func NewService(cfg Config, reg prometheus.Registerer, onAssign AssignmentHandler) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var metrics *Metrics
	if reg != nil {
		metrics = NewMetrics(reg)
	}
	s := &Service{
		cfg:      cfg,
		store:    NewDeploymentStore(),
		queue:    NewPriorityQueue(cfg.MaxQueueSize),
		registry: NewClusterRegistry(),
		metrics:  metrics,
	}
	s.scheduler = NewScheduler(cfg, s.queue, s.registry, s.store, metrics, onAssign)
	return s, nil
}

// Scheduler returns the admission control loop, for Run(ctx) or manual ticks.
func (s *Service) Scheduler() *Scheduler { return s.scheduler }

// Config returns the immutable configuration the service was built with.
func (s *Service) Config() Config { return s.cfg }

func (s *Service) validateCreate(req CreateDeploymentRequest) (int, Resources, error) {
	if req.Name == "" {
		return 0, Resources{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if req.Image == "" {
		return 0, Resources{}, fmt.Errorf("%w: image must not be empty", ErrValidation)
	}
	priority := req.Priority
	if priority == 0 {
		priority = s.cfg.DefaultPriority
	}
	if priority < 1 || priority > s.cfg.MaxPriority {
		return 0, Resources{}, fmt.Errorf("%w: priority %d outside [1, %d]", ErrValidation, priority, s.cfg.MaxPriority)
	}
	res := Resources{RAMGB: req.RAMGB, CPUCores: req.CPUCores, GPUCount: req.GPUCount}
	if !res.NonNegative() {
		return 0, Resources{}, fmt.Errorf("%w: resource request %s has a negative dimension", ErrValidation, res)
	}
	maxima := Resources{
		RAMGB:    s.cfg.MaxRAMGBPerDeployment,
		CPUCores: s.cfg.MaxCPUCoresPerDeployment,
		GPUCount: s.cfg.MaxGPUCountPerDeployment,
	}
	if !res.FitsWithin(maxima) {
		return 0, Resources{}, fmt.Errorf("%w: resource request %s exceeds per-deployment maxima %s", ErrValidation, res, maxima)
	}
	return priority, res, nil
}

// CreateDeployment validates the request, creates a Queued deployment and
// enqueues it. On ErrQueueFull the deployment is not created and the
// condition surfaces to the caller.
func (s *Service) CreateDeployment(req CreateDeploymentRequest) (View, error) {
	priority, res, err := s.validateCreate(req)
	if err != nil {
		return View{}, err
	}
	d := NewDeployment(DeploymentID(uuid.NewString()), req.Name, req.Image, req.Environment, priority, res)
	s.store.Add(d)
	if err := s.queue.Enqueue(d.ID, priority); err != nil {
		s.store.Delete(d.ID)
		return View{}, err
	}
	logrus.Infof("deployment %s (%s) queued with priority %d, request %s", d.ID, d.Name, priority, res)
	return d.Snapshot(), nil
}

// CancelDeployment cancels a deployment in any non-terminal state. A Queued
// deployment leaves the queue; a Scheduled/Running one releases its
// reservation. Cancelling an already-cancelled deployment is a no-op; racing
// an admission pass is safe because the state transition is linearized and
// both side effects are idempotent.
func (s *Service) CancelDeployment(id DeploymentID) error {
	d, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: deployment %s", ErrNotFound, id)
	}
	from, cluster, err := d.cancel()
	if err != nil {
		return err
	}
	switch from {
	case StatusQueued:
		s.queue.Remove(id)
	case StatusScheduled, StatusRunning:
		s.releaseOn(cluster, id)
	}
	logrus.Infof("deployment %s cancelled (was %s)", id, from)
	return nil
}

// UpdatePriority changes a queued deployment's priority, reordering the
// queue. The deployment is re-sequenced behind entries already at the new
// priority. Fails with ErrNotFound when the deployment is not Queued.
func (s *Service) UpdatePriority(id DeploymentID, priority int) error {
	if priority < 1 || priority > s.cfg.MaxPriority {
		return fmt.Errorf("%w: priority %d outside [1, %d]", ErrValidation, priority, s.cfg.MaxPriority)
	}
	d, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: deployment %s", ErrNotFound, id)
	}
	if err := s.queue.Reprioritize(id, priority); err != nil {
		return err
	}
	d.setPriority(priority)
	logrus.Infof("deployment %s reprioritized to %d", id, priority)
	return nil
}

// RegisterCluster creates a cluster with an empty resource pool.
func (s *Service) RegisterCluster(req RegisterClusterRequest) (*Cluster, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: cluster name must not be empty", ErrValidation)
	}
	capacity := Resources{RAMGB: req.RAMGB, CPUCores: req.CPUCores, GPUCount: req.GPUCount}
	if !capacity.NonNegative() {
		return nil, fmt.Errorf("%w: cluster capacity %s has a negative dimension", ErrValidation, capacity)
	}
	c := NewCluster(ClusterID(uuid.NewString()), req.Name, capacity, s.cfg.MaxConcurrentPerCluster)
	if err := s.registry.Register(c); err != nil {
		return nil, err
	}
	logrus.Infof("cluster %s (%s) registered with capacity %s", c.ID, c.Name, capacity)
	return c, nil
}

// SetClusterState changes a cluster's availability state.
func (s *Service) SetClusterState(id ClusterID, state ClusterState) error {
	return s.registry.SetState(id, state)
}

// ReportRunning is the executor callback confirming a scheduled deployment
// has started.
func (s *Service) ReportRunning(id DeploymentID) error {
	d, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: deployment %s", ErrNotFound, id)
	}
	return d.markRunning()
}

// ReportTerminal is the executor callback for a running deployment reaching
// Completed or Failed. The cluster's reservation is released.
func (s *Service) ReportTerminal(id DeploymentID, outcome Outcome) error {
	d, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: deployment %s", ErrNotFound, id)
	}
	cluster, err := d.markTerminal(outcome)
	if err != nil {
		return err
	}
	s.releaseOn(cluster, id)
	logrus.Infof("deployment %s reached %s on cluster %s", id, outcome, cluster)
	return nil
}

func (s *Service) releaseOn(cluster ClusterID, id DeploymentID) {
	c, ok := s.registry.Get(cluster)
	if !ok {
		logrus.Warnf("release for deployment %s: cluster %s no longer registered", id, cluster)
		return
	}
	c.Pool().Release(id)
}

// QueueSnapshot returns the queue in admission order with 1-based positions.
func (s *Service) QueueSnapshot() []QueueEntry {
	ordered := s.queue.Ordered()
	out := make([]QueueEntry, len(ordered))
	for i, e := range ordered {
		out[i] = QueueEntry{
			DeploymentID: e.DeploymentID,
			Priority:     e.Priority,
			Sequence:     e.Sequence,
			Position:     i + 1,
		}
	}
	return out
}

// ClusterStatus reports one cluster's capacity, allocation and occupancy.
func (s *Service) ClusterStatus(id ClusterID) (ClusterStatusReport, error) {
	c, ok := s.registry.Get(id)
	if !ok {
		return ClusterStatusReport{}, fmt.Errorf("%w: cluster %s", ErrNotFound, id)
	}
	capacity, allocated, running := c.Pool().Usage()
	return ClusterStatusReport{
		ClusterID:    c.ID,
		Name:         c.Name,
		State:        c.State(),
		Capacity:     capacity,
		Allocated:    allocated,
		RunningCount: running,
	}, nil
}

// GetDeployment returns a snapshot of one deployment.
func (s *Service) GetDeployment(id DeploymentID) (View, error) {
	d, ok := s.store.Get(id)
	if !ok {
		return View{}, fmt.Errorf("%w: deployment %s", ErrNotFound, id)
	}
	return d.Snapshot(), nil
}

// ListDeployments returns snapshots of every known deployment in creation
// order.
func (s *Service) ListDeployments() []View {
	ds := s.store.List()
	out := make([]View, len(ds))
	for i, d := range ds {
		out[i] = d.Snapshot()
	}
	return out
}
