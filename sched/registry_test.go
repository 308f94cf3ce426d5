package sched

import (
	"errors"
	"testing"
)

func TestClusterRegistry_Register_DuplicateRejected(t *testing.T) {
	r := NewClusterRegistry()
	c := NewCluster("c1", "east", Resources{RAMGB: 64, CPUCores: 16, GPUCount: 4}, 10)
	if err := r.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	dup := NewCluster("c1", "east-copy", Resources{RAMGB: 1, CPUCores: 1}, 10)
	if err := r.Register(dup); !errors.Is(err, ErrClusterExists) {
		t.Fatalf("duplicate Register: got %v, want ErrClusterExists", err)
	}
}

func TestClusterRegistry_List_AscendingIDOrder(t *testing.T) {
	// GIVEN clusters registered out of id order
	r := NewClusterRegistry()
	for _, id := range []ClusterID{"c3", "c1", "c2"} {
		if err := r.Register(NewCluster(id, string(id), Resources{RAMGB: 8, CPUCores: 4}, 10)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	// THEN List yields ascending cluster ids (the scheduler's fixed
	// deterministic candidate order)
	got := r.List()
	want := []ClusterID{"c1", "c2", "c3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List[%d]: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestClusterRegistry_SetState(t *testing.T) {
	r := NewClusterRegistry()
	c := NewCluster("c1", "east", Resources{RAMGB: 8, CPUCores: 4}, 10)
	if err := r.Register(c); err != nil {
		t.Fatal(err)
	}
	if c.State() != ClusterActive {
		t.Fatalf("new cluster state: got %s, want active", c.State())
	}

	if err := r.SetState("c1", ClusterMaintenance); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if c.State() != ClusterMaintenance {
		t.Errorf("state: got %s, want maintenance", c.State())
	}

	if err := r.SetState("c1", "degraded"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown state: got %v, want ErrValidation", err)
	}
	if err := r.SetState("ghost", ClusterOffline); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown cluster: got %v, want ErrNotFound", err)
	}
}

func TestClusterRegistry_Deregister_BusyClusterRefused(t *testing.T) {
	// GIVEN a cluster holding one reservation
	r := NewClusterRegistry()
	c := NewCluster("c1", "east", Resources{RAMGB: 8, CPUCores: 4}, 10)
	if err := r.Register(c); err != nil {
		t.Fatal(err)
	}
	if err := c.Pool().Reserve("d1", Resources{RAMGB: 2, CPUCores: 1}); err != nil {
		t.Fatal(err)
	}

	// WHEN deregistration is attempted
	// THEN it is refused until the reservation is released
	if err := r.Deregister("c1"); !errors.Is(err, ErrClusterBusy) {
		t.Fatalf("Deregister busy: got %v, want ErrClusterBusy", err)
	}
	c.Pool().Release("d1")
	if err := r.Deregister("c1"); err != nil {
		t.Fatalf("Deregister idle: %v", err)
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("cluster still present after Deregister")
	}
}
