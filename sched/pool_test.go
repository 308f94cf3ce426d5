package sched

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestResourcePool_CanAdmit_Boundaries(t *testing.T) {
	pool := NewResourcePool("c1", Resources{RAMGB: 16, CPUCores: 8, GPUCount: 2}, 10)

	if !pool.CanAdmit(Resources{RAMGB: 16, CPUCores: 8, GPUCount: 2}) {
		t.Error("exact-fit request rejected")
	}
	if pool.CanAdmit(Resources{RAMGB: 16.1, CPUCores: 8, GPUCount: 2}) {
		t.Error("over-capacity RAM request admitted")
	}
	if pool.CanAdmit(Resources{RAMGB: 1, CPUCores: 1, GPUCount: 3}) {
		t.Error("over-capacity GPU request admitted")
	}
}

func TestResourcePool_Reserve_ThenCanAdmit_SeesAllocation(t *testing.T) {
	// GIVEN a pool with 16GB RAM and one 10GB reservation
	pool := NewResourcePool("c1", Resources{RAMGB: 16, CPUCores: 8, GPUCount: 0}, 10)
	if err := pool.Reserve("d1", Resources{RAMGB: 10, CPUCores: 2}); err != nil {
		t.Fatalf("Reserve(d1): %v", err)
	}

	// WHEN a second request is checked
	// THEN only what fits in the remainder is admissible
	if pool.CanAdmit(Resources{RAMGB: 7}) {
		t.Error("7GB admitted with only 6GB free")
	}
	if !pool.CanAdmit(Resources{RAMGB: 6}) {
		t.Error("6GB rejected with 6GB free")
	}
}

func TestResourcePool_Reserve_ConcurrencyCap(t *testing.T) {
	// GIVEN a pool capped at 2 concurrent deployments
	pool := NewResourcePool("c1", Resources{RAMGB: 100, CPUCores: 100, GPUCount: 10}, 2)
	if err := pool.Reserve("d1", Resources{RAMGB: 1}); err != nil {
		t.Fatalf("Reserve(d1): %v", err)
	}
	if err := pool.Reserve("d2", Resources{RAMGB: 1}); err != nil {
		t.Fatalf("Reserve(d2): %v", err)
	}

	// WHEN a third reservation is attempted despite ample resources
	err := pool.Reserve("d3", Resources{RAMGB: 1})

	// THEN it fails: running_count <= maxConcurrent is a hard invariant
	if !errors.Is(err, ErrInsufficientResources) {
		t.Fatalf("Reserve over concurrency cap: got %v, want ErrInsufficientResources", err)
	}
	if pool.Running() != 2 {
		t.Errorf("Running: got %d, want 2", pool.Running())
	}
}

func TestResourcePool_ConcurrentReserve_ExactlyOneWins(t *testing.T) {
	// GIVEN a pool where only one of two 12GB requests fits
	pool := NewResourcePool("c1", Resources{RAMGB: 16, CPUCores: 8, GPUCount: 0}, 10)

	// WHEN both reservations race
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = pool.Reserve(DeploymentID(fmt.Sprintf("d%d", i)), Resources{RAMGB: 12, CPUCores: 2})
		}(i)
	}
	wg.Wait()

	// THEN exactly one succeeds and one fails with ErrInsufficientResources
	successes, failures := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientResources):
			failures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || failures != 1 {
		t.Errorf("got %d successes and %d failures, want exactly 1 of each", successes, failures)
	}

	// AND the capacity invariant holds
	_, allocated, _ := pool.Usage()
	if allocated.RAMGB > 16 {
		t.Errorf("allocated RAM %.1f exceeds capacity 16", allocated.RAMGB)
	}
}

func TestResourcePool_Release_Idempotent(t *testing.T) {
	// GIVEN a pool with one reservation released once
	pool := NewResourcePool("c1", Resources{RAMGB: 16, CPUCores: 8, GPUCount: 1}, 10)
	if err := pool.Reserve("d1", Resources{RAMGB: 4, CPUCores: 2, GPUCount: 1}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !pool.Release("d1") {
		t.Fatal("first Release reported false")
	}

	// WHEN Release is called again (duplicate termination signal)
	released := pool.Release("d1")

	// THEN it is a no-op and the counters are unchanged
	if released {
		t.Error("second Release reported true")
	}
	_, allocated, running := pool.Usage()
	if allocated != (Resources{}) || running != 0 {
		t.Errorf("after double release: allocated=%v running=%d, want zero", allocated, running)
	}
}

func TestResourcePool_Reserve_SameIDTwice_CommitsOnce(t *testing.T) {
	pool := NewResourcePool("c1", Resources{RAMGB: 16, CPUCores: 8, GPUCount: 0}, 10)
	req := Resources{RAMGB: 10, CPUCores: 4}
	if err := pool.Reserve("d1", req); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	if err := pool.Reserve("d1", req); err != nil {
		t.Fatalf("repeated Reserve of same id: %v", err)
	}
	_, allocated, running := pool.Usage()
	if allocated.RAMGB != 10 || running != 1 {
		t.Errorf("after double reserve: allocated=%.1fGB running=%d, want 10GB and 1", allocated.RAMGB, running)
	}
}

func TestResourcePool_ReleaseUnknown_IsNoop(t *testing.T) {
	pool := NewResourcePool("c1", Resources{RAMGB: 16, CPUCores: 8, GPUCount: 0}, 10)
	if pool.Release("ghost") {
		t.Error("Release of unreserved id reported true")
	}
}
