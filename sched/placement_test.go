package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// clustersWithLoad builds clusters c1..cN with the given running counts, in
// ascending id order as the scheduler presents candidates.
func clustersWithLoad(t *testing.T, loads ...int) []*Cluster {
	t.Helper()
	out := make([]*Cluster, len(loads))
	for i, load := range loads {
		c := NewCluster(ClusterID(rune('a'+i)), "", Resources{RAMGB: 100, CPUCores: 100, GPUCount: 10}, 50)
		for j := 0; j < load; j++ {
			id := DeploymentID(string(c.ID) + string(rune('0'+j)))
			if err := c.Pool().Reserve(id, Resources{RAMGB: 1}); err != nil {
				t.Fatalf("seeding load: %v", err)
			}
		}
		out[i] = c
	}
	return out
}

func TestSpreadPlacement_PicksLowestRunning(t *testing.T) {
	candidates := clustersWithLoad(t, 3, 1, 2)
	got := SpreadPlacement{}.Pick(candidates)
	assert.Equal(t, candidates[1].ID, got.ID)
}

func TestSpreadPlacement_TieFallsToLowestID(t *testing.T) {
	candidates := clustersWithLoad(t, 2, 1, 1)
	got := SpreadPlacement{}.Pick(candidates)
	// candidates arrive id-ascending; the first of the tied pair wins
	assert.Equal(t, candidates[1].ID, got.ID)
}

func TestBinPackPlacement_PicksHighestRunning(t *testing.T) {
	candidates := clustersWithLoad(t, 1, 3, 2)
	got := BinPackPlacement{}.Pick(candidates)
	assert.Equal(t, candidates[1].ID, got.ID)
}

func TestNewPlacementPolicy(t *testing.T) {
	assert.IsType(t, SpreadPlacement{}, NewPlacementPolicy(""))
	assert.IsType(t, SpreadPlacement{}, NewPlacementPolicy("spread"))
	assert.IsType(t, BinPackPlacement{}, NewPlacementPolicy("binpack"))
	assert.Panics(t, func() { NewPlacementPolicy("round-robin") })
}

func TestPlacement_NoCandidates(t *testing.T) {
	assert.Nil(t, SpreadPlacement{}.Pick(nil))
	assert.Nil(t, BinPackPlacement{}.Pick(nil))
}
