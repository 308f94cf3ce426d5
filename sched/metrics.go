package sched

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the scheduler's observable state to prometheus. Gauges for
// queue depth and per-cluster occupancy are refreshed at the end of every
// admission pass; counters accumulate across the process lifetime.
type Metrics struct {
	QueueDepth       prometheus.Gauge
	ScheduledTotal   prometheus.Counter
	PreemptedTotal   prometheus.Counter
	ReserveConflicts prometheus.Counter
	PassesTotal      prometheus.Counter

	AllocatedRAMGB    *prometheus.GaugeVec
	AllocatedCPUCores *prometheus.GaugeVec
	AllocatedGPUs     *prometheus.GaugeVec
	RunningCount      *prometheus.GaugeVec
}

// NewMetrics registers all scheduler metrics on reg and returns the handle.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deploysched_queue_depth",
			Help: "Number of deployments currently waiting for admission.",
		}),
		ScheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "deploysched_scheduled_total",
			Help: "Deployments placed onto a cluster since process start.",
		}),
		PreemptedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "deploysched_preempted_total",
			Help: "Deployments displaced back to the queue by preemption.",
		}),
		ReserveConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "deploysched_reserve_conflicts_total",
			Help: "Reservations lost to a concurrent reserve after a feasible CanAdmit.",
		}),
		PassesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "deploysched_admission_passes_total",
			Help: "Completed admission passes.",
		}),
		AllocatedRAMGB: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deploysched_cluster_allocated_ram_gb",
			Help: "RAM currently reserved on a cluster.",
		}, []string{"cluster"}),
		AllocatedCPUCores: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deploysched_cluster_allocated_cpu_cores",
			Help: "CPU cores currently reserved on a cluster.",
		}, []string{"cluster"}),
		AllocatedGPUs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deploysched_cluster_allocated_gpus",
			Help: "GPUs currently reserved on a cluster.",
		}, []string{"cluster"}),
		RunningCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deploysched_cluster_running_count",
			Help: "Deployments in scheduled or running state on a cluster.",
		}, []string{"cluster"}),
	}
}

// observePass refreshes the gauges after an admission pass. Nil-safe so the
// scheduler can run without metrics in tests.
func (m *Metrics) observePass(queueDepth int, clusters []*Cluster) {
	if m == nil {
		return
	}
	m.PassesTotal.Inc()
	m.QueueDepth.Set(float64(queueDepth))
	for _, c := range clusters {
		_, allocated, running := c.Pool().Usage()
		labels := prometheus.Labels{"cluster": string(c.ID)}
		m.AllocatedRAMGB.With(labels).Set(allocated.RAMGB)
		m.AllocatedCPUCores.With(labels).Set(allocated.CPUCores)
		m.AllocatedGPUs.With(labels).Set(float64(allocated.GPUCount))
		m.RunningCount.With(labels).Set(float64(running))
	}
}

func (m *Metrics) incScheduled() {
	if m != nil {
		m.ScheduledTotal.Inc()
	}
}

func (m *Metrics) incPreempted() {
	if m != nil {
		m.PreemptedTotal.Inc()
	}
}

func (m *Metrics) incReserveConflict() {
	if m != nil {
		m.ReserveConflicts.Inc()
	}
}
