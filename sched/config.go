package sched

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every scheduling knob. It is supplied externally (YAML file or
// flags), validated once at startup, and immutable afterwards.
type Config struct {
	// Queue bounds
	MaxQueueSize int `yaml:"max_queue_size"`

	// Priority bounds; higher priority is served first.
	DefaultPriority int `yaml:"default_priority"`
	MaxPriority     int `yaml:"max_priority"`

	// Per-deployment request maxima.
	MaxRAMGBPerDeployment    float64 `yaml:"max_ram_gb_per_deployment"`
	MaxCPUCoresPerDeployment float64 `yaml:"max_cpu_cores_per_deployment"`
	MaxGPUCountPerDeployment int     `yaml:"max_gpu_count_per_deployment"`

	// Scheduler cadence and per-cluster concurrency cap.
	SchedulerIntervalSeconds int `yaml:"scheduler_interval_seconds"`
	MaxConcurrentPerCluster  int `yaml:"max_concurrent_deployments_per_cluster"`

	// Placement strategy: "spread" (default) or "binpack".
	PlacementPolicy string `yaml:"placement_policy"`

	// EnablePreemption lets the scheduler displace strictly-lower-priority
	// work to place a stuck entry. Displaced deployments re-enter the queue.
	EnablePreemption bool `yaml:"enable_preemption"`

	// Clusters registered at startup. Clusters may also be registered later
	// through Service.RegisterCluster.
	Clusters []ClusterSeed `yaml:"clusters"`
}

// ClusterSeed describes a cluster to register when the service starts.
type ClusterSeed struct {
	Name     string    `yaml:"name"`
	Capacity Resources `yaml:"capacity"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:             100,
		DefaultPriority:          1,
		MaxPriority:              5,
		MaxRAMGBPerDeployment:    32,
		MaxCPUCoresPerDeployment: 8,
		MaxGPUCountPerDeployment: 4,
		SchedulerIntervalSeconds: 10,
		MaxConcurrentPerCluster:  10,
		PlacementPolicy:          "spread",
	}
}

// LoadConfig reads and parses a YAML config file. Fields absent from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading scheduler config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing scheduler config")
	}
	return cfg, nil
}

// Interval returns the tick cadence as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.SchedulerIntervalSeconds) * time.Second
}

// Validate checks bounds and policy names. Called once at startup; every
// later operation may assume a valid config.
func (c Config) Validate() error {
	if c.MaxQueueSize <= 0 {
		return errors.Errorf("max_queue_size must be > 0, got %d", c.MaxQueueSize)
	}
	if c.MaxPriority < 1 {
		return errors.Errorf("max_priority must be >= 1, got %d", c.MaxPriority)
	}
	if c.DefaultPriority < 1 || c.DefaultPriority > c.MaxPriority {
		return errors.Errorf("default_priority must be in [1, %d], got %d", c.MaxPriority, c.DefaultPriority)
	}
	if c.MaxRAMGBPerDeployment <= 0 {
		return errors.Errorf("max_ram_gb_per_deployment must be > 0, got %g", c.MaxRAMGBPerDeployment)
	}
	if c.MaxCPUCoresPerDeployment <= 0 {
		return errors.Errorf("max_cpu_cores_per_deployment must be > 0, got %g", c.MaxCPUCoresPerDeployment)
	}
	if c.MaxGPUCountPerDeployment < 0 {
		return errors.Errorf("max_gpu_count_per_deployment must be >= 0, got %d", c.MaxGPUCountPerDeployment)
	}
	if c.SchedulerIntervalSeconds <= 0 {
		return errors.Errorf("scheduler_interval_seconds must be > 0, got %d", c.SchedulerIntervalSeconds)
	}
	if c.MaxConcurrentPerCluster <= 0 {
		return errors.Errorf("max_concurrent_deployments_per_cluster must be > 0, got %d", c.MaxConcurrentPerCluster)
	}
	if !ValidPlacementPolicies[c.PlacementPolicy] {
		return errors.Errorf("unknown placement policy %q", c.PlacementPolicy)
	}
	for i, seed := range c.Clusters {
		if seed.Name == "" {
			return errors.Errorf("clusters[%d]: name must not be empty", i)
		}
		if !seed.Capacity.NonNegative() {
			return errors.Errorf("clusters[%d] (%s): capacity %s has a negative dimension", i, seed.Name, seed.Capacity)
		}
	}
	return nil
}
