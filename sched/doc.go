// Package sched implements priority- and resource-aware admission control for
// deployments onto a bounded set of clusters.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - deployment.go: Deployment lifecycle (queued → scheduled → running → terminal) and state machine
//   - queue.go: the bounded priority queue ordered (priority desc, sequence asc)
//   - scheduler.go: the admission pass, placement and preemption
//
// # Architecture
//
// Each Cluster owns one ResourcePool (pool.go), the sole authority over that
// cluster's occupancy; the PriorityQueue is the sole authority over admission
// order. The Scheduler drains the queue against the ClusterRegistry
// (registry.go) on a fixed tick, pairing every Reserve atomically with the
// Queued→Scheduled transition. Service (service.go) is the facade an external
// API layer drives; it owns all of the above and maps create/cancel/
// reprioritize/report operations onto them.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - PlacementPolicy: pick the target among feasible clusters (spread, binpack)
//   - AssignmentHandler: receive placements for the external executor
package sched
