package sched

import "fmt"

// PlacementPolicy picks the target cluster for a deployment from the clusters
// that can currently admit it. Candidates arrive in ascending cluster-id
// order; implementations MUST be deterministic given the same candidates, so
// a tie on the policy's criterion falls through to cluster id ascending.
type PlacementPolicy interface {
	Pick(candidates []*Cluster) *Cluster
}

// SpreadPlacement picks the feasible cluster with the lowest running count,
// spreading load across the fleet. This is the default policy.
type SpreadPlacement struct{}

func (SpreadPlacement) Pick(candidates []*Cluster) *Cluster {
	var best *Cluster
	bestRunning := 0
	for _, c := range candidates {
		running := c.Pool().Running()
		if best == nil || running < bestRunning {
			best, bestRunning = c, running
		}
	}
	return best
}

// BinPackPlacement picks the feasible cluster with the highest running count,
// packing work onto fewer clusters to keep the rest drainable.
type BinPackPlacement struct{}

func (BinPackPlacement) Pick(candidates []*Cluster) *Cluster {
	var best *Cluster
	bestRunning := 0
	for _, c := range candidates {
		running := c.Pool().Running()
		if best == nil || running > bestRunning {
			best, bestRunning = c, running
		}
	}
	return best
}

// ValidPlacementPolicies is the set of recognized placement policy names.
// Shared by Config.Validate and NewPlacementPolicy to avoid duplication.
var ValidPlacementPolicies = map[string]bool{"": true, "spread": true, "binpack": true}

// NewPlacementPolicy creates a placement policy by name.
// Empty string defaults to SpreadPlacement (for config default compatibility).
// Panics on unrecognized names; Config.Validate rejects them earlier.
func NewPlacementPolicy(name string) PlacementPolicy {
	if !ValidPlacementPolicies[name] {
		panic(fmt.Sprintf("unknown placement policy %q", name))
	}
	switch name {
	case "", "spread":
		return SpreadPlacement{}
	case "binpack":
		return BinPackPlacement{}
	default:
		panic(fmt.Sprintf("unhandled placement policy %q", name))
	}
}
