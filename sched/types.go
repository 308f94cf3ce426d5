package sched

import "fmt"

// Identity types
type DeploymentID string
type ClusterID string

// Status is the lifecycle state of a deployment.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is absorbing: no transition leaves it.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Outcome is the result reported by the executor for a running deployment.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// ClusterState is the operator-controlled availability state of a cluster.
// Only active clusters receive new placements; maintenance and offline
// clusters keep their existing reservations.
type ClusterState string

const (
	ClusterActive      ClusterState = "active"
	ClusterMaintenance ClusterState = "maintenance"
	ClusterOffline     ClusterState = "offline"
)

// ValidClusterStates is the set of recognized cluster states.
var ValidClusterStates = map[ClusterState]bool{
	ClusterActive:      true,
	ClusterMaintenance: true,
	ClusterOffline:     true,
}

// Resources is a per-dimension quantity of cluster resources. It is used both
// for cluster capacity and for a deployment's request, and is treated as a
// value type everywhere.
type Resources struct {
	RAMGB    float64 `yaml:"ram_gb" json:"ram_gb"`
	CPUCores float64 `yaml:"cpu_cores" json:"cpu_cores"`
	GPUCount int     `yaml:"gpu_count" json:"gpu_count"`
}

// Add returns the per-dimension sum of r and o.
func (r Resources) Add(o Resources) Resources {
	return Resources{
		RAMGB:    r.RAMGB + o.RAMGB,
		CPUCores: r.CPUCores + o.CPUCores,
		GPUCount: r.GPUCount + o.GPUCount,
	}
}

// Sub returns the per-dimension difference of r and o.
func (r Resources) Sub(o Resources) Resources {
	return Resources{
		RAMGB:    r.RAMGB - o.RAMGB,
		CPUCores: r.CPUCores - o.CPUCores,
		GPUCount: r.GPUCount - o.GPUCount,
	}
}

// FitsWithin reports whether r is less than or equal to o on every dimension.
func (r Resources) FitsWithin(o Resources) bool {
	return r.RAMGB <= o.RAMGB && r.CPUCores <= o.CPUCores && r.GPUCount <= o.GPUCount
}

// NonNegative reports whether every dimension of r is >= 0.
func (r Resources) NonNegative() bool {
	return r.RAMGB >= 0 && r.CPUCores >= 0 && r.GPUCount >= 0
}

func (r Resources) String() string {
	return fmt.Sprintf("{ram=%.1fGB cpu=%.1f gpu=%d}", r.RAMGB, r.CPUCores, r.GPUCount)
}
