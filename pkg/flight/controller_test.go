package flight

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/planner"
)

type fakeNavigator struct {
	plans      int
	autonomous int
}

func (f *fakeNavigator) Plan(_ int, current, target geom.Vector3) planner.Result {
	f.plans++
	return planner.Result{Direction: target.Sub(current).Normalize(), ForceScale: 1.5, Mode: planner.ModeLinked}
}

func (f *fakeNavigator) PlanAutonomous(_ int, current, target geom.Vector3) planner.Result {
	f.autonomous++
	return planner.Result{Direction: target.Sub(current).Normalize(), ForceScale: 1, Mode: planner.ModeDegraded}
}

func newController(nav Navigator, opts ...Option) *Controller {
	opts = append([]Option{WithLogger(logger.Nop()), WithRand(rand.New(rand.NewSource(3)))}, opts...)
	return New(1, DefaultConfig(), nav, opts...)
}

func airborne(t *testing.T, c *Controller, height float64) {
	t.Helper()
	if err := c.Arm(); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := c.TakeOff(height); err != nil {
		t.Fatalf("takeoff: %v", err)
	}
	c.Step(0.02, Observation{Position: geom.V(0, height, 0)})
	if c.State() != Hovering {
		t.Fatalf("Expected hovering, got %s", c.State())
	}
}

func TestRejectedTransitionsKeepState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Controller)
		cmd   func(c *Controller) error
		want  State
	}{
		{
			name: "takeoff while grounded",
			cmd:  func(c *Controller) error { return c.TakeOff(10) },
			want: Grounded,
		},
		{
			name: "move while grounded",
			cmd:  func(c *Controller) error { return c.StartNavigationMove(geom.V(1, 1, 1)) },
			want: Grounded,
		},
		{
			name:  "move while armed",
			setup: func(c *Controller) { _ = c.Arm() },
			cmd:   func(c *Controller) error { return c.StartFormationMove(geom.V(1, 1, 1)) },
			want:  Armed,
		},
		{
			name: "land while grounded",
			cmd:  func(c *Controller) error { return c.Land() },
			want: Grounded,
		},
		{
			name: "lock while grounded",
			cmd:  func(c *Controller) error { return c.Lock() },
			want: Grounded,
		},
		{
			name: "staging without a point",
			setup: func(c *Controller) {
				_ = c.Arm()
				_ = c.TakeOff(5)
			},
			cmd:  func(c *Controller) error { return c.MoveToStaging() },
			want: TakingOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(&fakeNavigator{})
			if tt.setup != nil {
				tt.setup(c)
			}
			if err := tt.cmd(c); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Expected ErrInvalidTransition, got %v", err)
			}
			if c.State() != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, c.State())
			}
		})
	}
}

func TestTakeoffReachesHoverAtMargin(t *testing.T) {
	c := newController(&fakeNavigator{})
	_ = c.Arm()
	_ = c.TakeOff(10)

	heights := []float64{0, 5, 9.4, 9.49}
	for _, h := range heights {
		cmd := c.Step(0.02, Observation{Position: geom.V(0, h, 0)})
		if c.State() != TakingOff {
			t.Fatalf("Expected taking-off at height %v, got %s", h, c.State())
		}
		if want := 12 * 1.2; math.Abs(cmd.Thrust-want) > 1e-9 {
			t.Errorf("Expected boosted thrust %v, got %v", want, cmd.Thrust)
		}
	}

	c.Step(0.02, Observation{Position: geom.V(0, 9.5, 0)})
	if c.State() != Hovering {
		t.Fatalf("Expected hovering at height 9.5, got %s", c.State())
	}
	target, ok := c.Target()
	if !ok || target != geom.V(0, 10, 0) {
		t.Errorf("Expected hover target (0,10,0), got %v", target)
	}
}

func TestArrivalThresholds(t *testing.T) {
	tests := []struct {
		name      string
		start     func(c *Controller, p geom.Vector3) error
		threshold float64
	}{
		{"staging", func(c *Controller, p geom.Vector3) error { c.SetStaging(p); return c.MoveToStaging() }, 2},
		{"formation", (*Controller).StartFormationMove, 1.5},
		{"fast formation", (*Controller).StartFastFormationMove, 1.8},
		{"navigation", (*Controller).StartNavigationMove, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &fakeNavigator{}
			c := newController(nav)
			airborne(t, c, 10)

			target := geom.V(20, 10, 0)
			if err := tt.start(c, target); err != nil {
				t.Fatalf("start: %v", err)
			}

			c.Step(0.02, Observation{Position: geom.V(20-tt.threshold-0.01, 10, 0)})
			if !c.State().Moving() {
				t.Fatalf("Expected still moving just outside the threshold, got %s", c.State())
			}
			c.Step(0.02, Observation{Position: geom.V(20-tt.threshold+0.01, 10, 0)})
			if c.State() != Hovering {
				t.Errorf("Expected hovering inside the threshold, got %s", c.State())
			}
		})
	}
}

func TestMoveForceProfiles(t *testing.T) {
	nav := &fakeNavigator{}
	c := newController(nav)
	airborne(t, c, 10)

	_ = c.StartFormationMove(geom.V(30, 10, 0))
	cmd := c.Step(0.02, Observation{Position: geom.V(0, 10, 0)})
	if cmd.Force != 15 {
		t.Errorf("Expected planner-scaled force 15, got %v", cmd.Force)
	}
	if cmd.Direction != geom.Right {
		t.Errorf("Expected direction +X, got %v", cmd.Direction)
	}

	_ = c.StartFastFormationMove(geom.V(30, 10, 0))
	cmd = c.Step(0.02, Observation{Position: geom.V(0, 10, 0)})
	if want := 10 * 2.5 * 2.0; cmd.Force != want {
		t.Errorf("Expected fast force %v, got %v", want, cmd.Force)
	}
}

func TestAutonomousUsesLocalPlanning(t *testing.T) {
	nav := &fakeNavigator{}
	c := newController(nav)
	airborne(t, c, 10)
	_ = c.StartNavigationMove(geom.V(50, 10, 0))

	c.Step(0.02, Observation{Position: geom.V(0, 10, 0)})
	c.SetAutonomous(true)
	cmd := c.Step(0.02, Observation{Position: geom.V(1, 10, 0)})

	if nav.plans != 1 || nav.autonomous != 1 {
		t.Errorf("Expected 1 networked and 1 autonomous plan, got %d and %d", nav.plans, nav.autonomous)
	}
	if cmd.Mode != planner.ModeDegraded {
		t.Errorf("Expected degraded mode, got %s", cmd.Mode)
	}
}

func TestHoldRegime(t *testing.T) {
	nav := &fakeNavigator{}
	c := newController(nav)
	airborne(t, c, 10)

	if err := c.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	cmd := c.Step(0.02, Observation{Position: geom.V(0.05, 10, 0)})
	if cmd.Force != 0 {
		t.Errorf("Expected no correction inside the deadband, got %v", cmd.Force)
	}

	cmd = c.Step(0.02, Observation{Position: geom.V(-1, 10, 0)})
	if cmd.Force != 2 || cmd.Direction != geom.Right {
		t.Errorf("Expected force 2 towards +X, got %v along %v", cmd.Force, cmd.Direction)
	}

	cmd = c.Step(0.02, Observation{Position: geom.V(-10, 10, 0)})
	if cmd.Force != 5 {
		t.Errorf("Expected force clamped to 5, got %v", cmd.Force)
	}

	cmd = c.Step(0.02, Observation{Position: geom.V(0, 0, 0)})
	if cmd.Thrust != 18 {
		t.Errorf("Expected hold thrust clamped to 18, got %v", cmd.Thrust)
	}
	if nav.plans != 0 {
		t.Errorf("Expected hold to bypass the planner, got %d plans", nav.plans)
	}

	c.Unlock()
	if c.State() != Hovering {
		t.Errorf("Expected hovering after unlock, got %s", c.State())
	}
}

func TestHoverThrustBand(t *testing.T) {
	c := newController(nil)
	airborne(t, c, 10)

	tests := []struct {
		y    float64
		want float64
	}{
		{10, 10},
		{9, 13},
		{0, 14},
		{30, 7},
	}
	for _, tt := range tests {
		if got := c.Step(0.02, Observation{Position: geom.V(0, tt.y, 0)}).Thrust; math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Height %v: expected thrust %v, got %v", tt.y, tt.want, got)
		}
	}
}

func TestLandingTouchdown(t *testing.T) {
	c := newController(nil)
	airborne(t, c, 10)

	if err := c.Land(); err != nil {
		t.Fatalf("land: %v", err)
	}
	cmd := c.Step(0.02, Observation{Position: geom.V(0, 5, 0)})
	if cmd.Thrust != 3 {
		t.Errorf("Expected landing thrust 3, got %v", cmd.Thrust)
	}

	cmd = c.Step(0.02, Observation{Position: geom.V(0, 1.5, 0), Velocity: geom.V(0, -2, 0)})
	if c.State() != Grounded {
		t.Fatalf("Expected grounded, got %s", c.State())
	}
	if !cmd.ZeroVelocity {
		t.Error("Expected velocity zeroed at touchdown")
	}
}

func TestFastLandingSteersToTarget(t *testing.T) {
	c := newController(nil)
	airborne(t, c, 10)

	if err := c.FastLand(geom.V(0, 1, 20)); err != nil {
		t.Fatalf("fast land: %v", err)
	}
	cmd := c.Step(0.02, Observation{Position: geom.V(0, 8, 0)})
	if cmd.Direction != geom.Forward {
		t.Errorf("Expected horizontal steering towards +Z, got %v", cmd.Direction)
	}
	if c.State() != FastLanding {
		t.Errorf("Expected fast-landing, got %s", c.State())
	}
}

func TestStuckRecovery(t *testing.T) {
	c := newController(&fakeNavigator{})
	airborne(t, c, 10)
	_ = c.StartNavigationMove(geom.V(40, 10, 0))

	still := Observation{Position: geom.V(0, 10, 0)}
	var kicks int
	for i := 0; i < 400; i++ {
		cmd := c.Step(0.01, still)
		if !cmd.Impulse.IsZero() {
			kicks++
			if cmd.Impulse.Y != 6 {
				t.Errorf("Expected upward kick 6, got %v", cmd.Impulse.Y)
			}
		}
	}

	if kicks != 1 || c.Recoveries() != 1 {
		t.Errorf("Expected one recovery in 4s, got %d kicks and %d recoveries", kicks, c.Recoveries())
	}
}

func TestNoStuckRecoveryWhileHolding(t *testing.T) {
	c := newController(&fakeNavigator{})
	airborne(t, c, 10)
	_ = c.Lock()

	for i := 0; i < 1000; i++ {
		if cmd := c.Step(0.01, Observation{Position: geom.V(0, 10, 0)}); !cmd.Impulse.IsZero() {
			t.Fatalf("Expected no impulse while holding, got %v", cmd.Impulse)
		}
	}
}

func TestTransitionHook(t *testing.T) {
	var seen []State
	c := newController(nil, WithTransitionHook(func(_ int, _, to State) {
		seen = append(seen, to)
	}))

	airborne(t, c, 4)
	_ = c.Land()
	c.Step(0.02, Observation{Position: geom.V(0, 1, 0)})

	want := []State{Armed, TakingOff, Hovering, Landing, Grounded}
	if len(seen) != len(want) {
		t.Fatalf("Expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestParseState(t *testing.T) {
	for s := Grounded; s <= FastLanding; s++ {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Errorf("Expected %s, got %s (%v)", s, got, err)
		}
	}
	if _, err := ParseState("cruising"); err == nil {
		t.Error("Expected error for unknown state")
	}
}
