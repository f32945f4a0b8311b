package swarm

import (
	"errors"
	"testing"

	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
)

func TestRegisterCapacity(t *testing.T) {
	s := NewState(3)
	for i := 0; i < 3; i++ {
		if err := s.Register(i, geom.V(float64(i), 0, 0)); err != nil {
			t.Fatalf("Unexpected error registering agent %d: %v", i, err)
		}
	}

	if err := s.Register(3, geom.Zero); !errors.Is(err, ErrCapacity) {
		t.Errorf("Expected ErrCapacity, got %v", err)
	}
	if err := s.Register(1, geom.Zero); !errors.Is(err, ErrDuplicateAgent) {
		t.Errorf("Expected ErrDuplicateAgent, got %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Expected 3 agents, got %d", s.Len())
	}
}

func TestRegistrationOrderIsKept(t *testing.T) {
	s := NewState(10)
	for _, id := range []int{7, 2, 9} {
		_ = s.Register(id, geom.Zero)
	}

	ids := s.IDs()
	want := []int{7, 2, 9}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, ids)
		}
	}
}

func TestNeighbors(t *testing.T) {
	s := NewState(10)
	_ = s.Register(0, geom.V(0, 10, 0))
	_ = s.Register(1, geom.V(5, 10, 0))
	_ = s.Register(2, geom.V(2, 10, 0))
	_ = s.Register(3, geom.V(-2, 10, 0))
	_ = s.Register(4, geom.V(30, 10, 0))

	got := s.Neighbors(geom.V(0, 10, 0), 5, 0)

	wantIDs := []int{2, 3, 1}
	if len(got) != len(wantIDs) {
		t.Fatalf("Expected %d neighbors, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("Position %d: expected agent %d, got %d", i, id, got[i].ID)
		}
	}
	if got[2].Distance != 5 {
		t.Errorf("Expected boundary neighbor at distance 5 to be included, got %v", got[2].Distance)
	}
}

func TestUpdatesUnknownAgent(t *testing.T) {
	s := NewState(2)
	if err := s.SetTarget(99, geom.Zero); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Expected ErrUnknownAgent, got %v", err)
	}
	if _, err := s.Agent(99); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Expected ErrUnknownAgent, got %v", err)
	}
}

func TestKinematicsAndTarget(t *testing.T) {
	s := NewState(2)
	_ = s.Register(0, geom.Zero)
	_ = s.UpdateKinematics(0, geom.V(1, 2, 3), geom.V(0, 1, 0))
	_ = s.SetTarget(0, geom.V(1, 2, 7))

	a, _ := s.Agent(0)
	if a.Position != geom.V(1, 2, 3) || a.Velocity != geom.V(0, 1, 0) {
		t.Errorf("Expected updated kinematics, got %+v", a)
	}
	if a.DistanceToTarget() != 4 {
		t.Errorf("Expected distance 4, got %v", a.DistanceToTarget())
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := NewState(5)
	_ = s.Register(0, geom.Zero)
	_ = s.SetStaging(0, geom.V(1, 1, 1))
	s.SetCommActive(false)
	s.Formations().Store(formation.New(formation.ShapeLine, 1, 10, 5))

	s.Reset()

	if s.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", s.Len())
	}
	if !s.CommActive() {
		t.Error("Expected link restored after reset")
	}
	if _, ok := s.Formations().Last(); ok {
		t.Error("Expected formation cache cleared")
	}
	if err := s.Register(0, geom.Zero); err != nil {
		t.Errorf("Expected id reusable after reset, got %v", err)
	}
}
