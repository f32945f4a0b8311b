package planner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/link"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/swarm"
)

// countingLink records handshakes and answers with a fixed outcome
type countingLink struct {
	ok         bool
	handshakes int
	fallbacks  int
}

func (c *countingLink) Handshake(int) bool {
	c.handshakes++
	return c.ok
}

func (c *countingLink) Fallback(current, target geom.Vector3) geom.Vector3 {
	c.fallbacks++
	return target.Sub(current).Normalize()
}

func newState(t *testing.T, positions map[int]geom.Vector3, velocities map[int]geom.Vector3) *swarm.State {
	t.Helper()
	s := swarm.NewState(50)
	for id := 0; id < len(positions); id++ {
		if err := s.Register(id, positions[id]); err != nil {
			t.Fatalf("register %d: %v", id, err)
		}
		if v, ok := velocities[id]; ok {
			_ = s.UpdateKinematics(id, positions[id], v)
		}
	}
	return s
}

func newPlanner(cfg Config, s *swarm.State, l Link) *Planner {
	return New(cfg, s, l, nil, logger.Nop())
}

func TestNoNeighborsIsPureAttraction(t *testing.T) {
	s := newState(t, map[int]geom.Vector3{
		0: geom.V(0, 10, 0),
		1: geom.V(0, 10, 4.5), // outside the safety radius but inside the danger range
	}, nil)
	p := newPlanner(DefaultConfig(), s, &countingLink{ok: true})

	target := geom.V(7, 13, -2)
	got := p.Plan(0, geom.V(0, 10, 0), target)

	want := target.Sub(geom.V(0, 10, 0)).Normalize()
	if got.Direction != want {
		t.Errorf("Expected exactly %v, got %v", want, got.Direction)
	}
	if got.Mode != ModeLinked {
		t.Errorf("Expected linked mode, got %s", got.Mode)
	}
}

func TestRepulsionBoundary(t *testing.T) {
	p := newPlanner(DefaultConfig(), swarm.NewState(2), nil)
	current := geom.V(0, 10, 0)
	heading := geom.Right

	tests := []struct {
		name     string
		distance float64
		wantZero bool
	}{
		{name: "just inside", distance: 4 - 1e-6, wantZero: false},
		{name: "on the radius", distance: 4, wantZero: true},
		{name: "outside", distance: 6, wantZero: true},
		{name: "singular", distance: 0.05, wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := swarm.Neighbor{ID: 1, Position: current.Add(geom.V(0, 0, tt.distance)), Distance: tt.distance}
			got, _ := p.Repulsion(current, heading, []swarm.Neighbor{n})
			if got.IsZero() != tt.wantZero {
				t.Errorf("Expected zero=%v, got %v", tt.wantZero, got)
			}
		})
	}
}

func TestRepulsionUsesPredictedPosition(t *testing.T) {
	p := newPlanner(DefaultConfig(), swarm.NewState(2), nil)
	current := geom.V(0, 10, 0)

	// Neighbor on +Z drifting towards +X: in 2s it is ahead-right, so the
	// push gains a -X component
	n := swarm.Neighbor{ID: 1, Position: geom.V(0, 10, 2), Velocity: geom.V(1, 0, 0), Distance: 2}
	got, threats := p.Repulsion(current, geom.Forward, []swarm.Neighbor{n})

	if threats != 1 {
		t.Fatalf("Expected 1 threat, got %d", threats)
	}
	if got.X >= 0 || got.Z >= 0 {
		t.Errorf("Expected push away from predicted position, got %v", got)
	}
	wantMagnitude := 3 * (4.0 - 2) / 4
	if math.Abs(got.Length()-wantMagnitude) > 1e-9 {
		t.Errorf("Expected magnitude %v, got %v", wantMagnitude, got.Length())
	}
}

func TestDanger(t *testing.T) {
	p := newPlanner(DefaultConfig(), swarm.NewState(2), nil)
	neighbors := []swarm.Neighbor{
		{ID: 1, Distance: 2.5, Velocity: geom.V(0, 0, 5)},
		{ID: 2, Distance: 5},
	}

	want := (5-2.5)/5 + 0.3*5.0/10
	if got := p.Danger(neighbors); math.Abs(got-want) > 1e-12 {
		t.Errorf("Expected danger %v, got %v", want, got)
	}
}

func TestScenarioAvoidanceBendsPath(t *testing.T) {
	current := geom.V(0, 10, 0)
	target := geom.V(10, 10, 0)

	free := newPlanner(DefaultConfig(), newState(t, map[int]geom.Vector3{0: current}, nil), &countingLink{ok: true})
	unobstructed := free.Plan(0, current, target).Direction

	t.Run("neighbor at five units", func(t *testing.T) {
		s := newState(t, map[int]geom.Vector3{0: current, 1: geom.V(5, 10, 0)}, nil)
		got := newPlanner(DefaultConfig(), s, &countingLink{ok: true}).Plan(0, current, target).Direction
		if got.X > unobstructed.X {
			t.Errorf("Expected X no greater than %v, got %v", unobstructed.X, got.X)
		}
	})

	t.Run("neighbor inside the safety radius", func(t *testing.T) {
		advanced := geom.V(2, 10, 0)
		s := newState(t, map[int]geom.Vector3{0: advanced, 1: geom.V(5, 10, 0)}, nil)
		got := newPlanner(DefaultConfig(), s, &countingLink{ok: true}).Plan(0, advanced, target).Direction
		if got.X >= unobstructed.X {
			t.Errorf("Expected X strictly below %v, got %v", unobstructed.X, got.X)
		}
		if math.Abs(got.Length()-1) > 1e-9 {
			t.Errorf("Expected unit vector, got length %v", got.Length())
		}
	})
}

func TestHandshakeFailureUsesFallback(t *testing.T) {
	s := newState(t, map[int]geom.Vector3{0: geom.V(0, 10, 0)}, nil)
	l := &countingLink{ok: false}
	p := newPlanner(DefaultConfig(), s, l)

	got := p.Plan(0, geom.V(0, 10, 0), geom.V(0, 10, 9))
	if got.Mode != ModeFallback {
		t.Errorf("Expected fallback mode, got %s", got.Mode)
	}
	if l.handshakes != 1 || l.fallbacks != 1 {
		t.Errorf("Expected one handshake and one fallback, got %d and %d", l.handshakes, l.fallbacks)
	}
	if p.Stats().Fallback != 1 {
		t.Errorf("Expected fallback counter 1, got %d", p.Stats().Fallback)
	}
}

func TestForcedLinkOutcomes(t *testing.T) {
	current := geom.V(0, 10, 0)
	target := geom.V(10, 10, 0)

	tests := []struct {
		name string
		cfg  link.Config
		want Mode
	}{
		{name: "never fails", cfg: link.Config{PacketLoss: 0, Corruption: 0, Jitter: 0.2}, want: ModeLinked},
		{name: "always fails", cfg: link.Config{PacketLoss: 1, Corruption: 1, Jitter: 0.2}, want: ModeFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(t, map[int]geom.Vector3{0: current}, nil)
			sim := link.NewSimulator(tt.cfg, rand.New(rand.NewSource(5)), logger.Nop())
			p := newPlanner(DefaultConfig(), s, sim)
			for i := 0; i < 50; i++ {
				if got := p.Plan(0, current, target).Mode; got != tt.want {
					t.Fatalf("Call %d: expected %s, got %s", i, tt.want, got)
				}
			}
		})
	}
}

func TestLinkDownNeverQueriesLink(t *testing.T) {
	s := newState(t, map[int]geom.Vector3{0: geom.V(0, 10, 0), 1: geom.V(1, 10, 0)}, nil)
	s.SetCommActive(false)
	l := &countingLink{ok: true}
	p := newPlanner(DefaultConfig(), s, l)

	for i := 0; i < 20; i++ {
		got := p.Plan(0, geom.V(0, 10, 0), geom.V(0, 10, 10))
		if got.Mode != ModeDegraded {
			t.Fatalf("Expected degraded mode, got %s", got.Mode)
		}
	}
	if l.handshakes != 0 || l.fallbacks != 0 {
		t.Errorf("Expected link untouched, got %d handshakes and %d fallbacks", l.handshakes, l.fallbacks)
	}
}

func TestDegradedAvoidance(t *testing.T) {
	current := geom.V(0, 10, 0)
	s := newState(t, map[int]geom.Vector3{0: current, 1: geom.V(0, 10, 2)}, nil)
	p := newPlanner(DefaultConfig(), s, nil)

	got := p.PlanAutonomous(0, current, geom.V(10, 10, 0))
	if got.Direction.Z >= 0 {
		t.Errorf("Expected push away from neighbor on +Z, got %v", got.Direction)
	}
	if got.Direction.X <= 0 {
		t.Errorf("Expected to keep heading towards the goal, got %v", got.Direction)
	}
}

func TestHeuristicBiasInCrowd(t *testing.T) {
	current := geom.V(0, 10, 0)
	positions := map[int]geom.Vector3{0: current}
	// Six neighbors packed on the +X side, none on -X
	for i := 1; i <= 6; i++ {
		positions[i] = geom.V(2.5, 10, float64(i-3)*0.5)
	}
	s := newState(t, positions, nil)
	p := newPlanner(DefaultConfig(), s, &countingLink{ok: true})

	bias := p.heuristic(current, s.Neighbors(current, 20, 0), 6)
	if bias != geom.Left.Scale(0.5) {
		t.Errorf("Expected bias towards -X, got %v", bias)
	}
	if none := p.heuristic(current, nil, 2); !none.IsZero() {
		t.Errorf("Expected no bias for a sparse neighborhood, got %v", none)
	}
}

func TestCollisionRiskEvent(t *testing.T) {
	current := geom.V(0, 10, 0)
	positions := map[int]geom.Vector3{0: current}
	for i := 1; i <= 5; i++ {
		positions[i] = geom.V(0.5, 10, float64(i)*0.1)
	}
	s := newState(t, positions, nil)
	rec := events.NewRecorder()
	p := New(DefaultConfig(), s, &countingLink{ok: true}, rec, logger.Nop())

	got := p.Plan(0, current, geom.V(10, 10, 0))
	if got.Danger <= 3 {
		t.Fatalf("Expected danger above 3, got %v", got.Danger)
	}
	if n := len(rec.OfKind(events.KindCollisionRisk)); n != 1 {
		t.Errorf("Expected 1 collision risk event, got %d", n)
	}
}

func TestForceScale(t *testing.T) {
	p := newPlanner(DefaultConfig(), swarm.NewState(1), nil)
	tests := []struct {
		distance float64
		want     float64
	}{
		{0.5, 0.8},
		{3, 1.5},
		{30, 2},
	}
	for _, tt := range tests {
		if got := p.forceScale(geom.Zero, geom.V(tt.distance, 0, 0)); got != tt.want {
			t.Errorf("Distance %v: expected %v, got %v", tt.distance, tt.want, got)
		}
	}
}
