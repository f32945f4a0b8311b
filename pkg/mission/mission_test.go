package mission

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/flight"
	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
)

// fakePhysics never moves anything on its own; tests place agents directly
type fakePhysics struct {
	pos     map[int]geom.Vector3
	vel     map[int]geom.Vector3
	applied map[int]flight.Command
	resets  int
}

func newFakePhysics() *fakePhysics {
	return &fakePhysics{
		pos:     map[int]geom.Vector3{},
		vel:     map[int]geom.Vector3{},
		applied: map[int]flight.Command{},
	}
}

func (f *fakePhysics) Position(id int) geom.Vector3     { return f.pos[id] }
func (f *fakePhysics) Velocity(id int) geom.Vector3     { return f.vel[id] }
func (f *fakePhysics) Apply(id int, cmd flight.Command) { f.applied[id] = cmd }

func (f *fakePhysics) Reset(spawn []geom.Vector3) {
	f.resets++
	f.pos = map[int]geom.Vector3{}
	f.vel = map[int]geom.Vector3{}
	for id, p := range spawn {
		f.pos[id] = p
	}
}

func (f *fakePhysics) setHeight(y float64) {
	for id, p := range f.pos {
		p.Y = y
		f.pos[id] = p
	}
}

func testConfig(agents int) Config {
	cfg := DefaultConfig()
	cfg.AgentCount = agents
	cfg.Timing.FormationHold = 1
	return cfg
}

func newMission(t *testing.T, cfg Config) (*Controller, *fakePhysics, *events.Recorder) {
	t.Helper()
	phys := newFakePhysics()
	rec := events.NewRecorder()
	c, err := New(cfg, phys,
		WithLogger(logger.Nop()),
		WithEmitter(rec),
		WithRand(rand.New(rand.NewSource(42))),
	)
	if err != nil {
		t.Fatalf("new mission: %v", err)
	}
	return c, phys, rec
}

func tickUntil(t *testing.T, c *Controller, dt float64, limit int, done func() bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if done() {
			return
		}
		c.Tick(dt)
	}
	if !done() {
		t.Fatalf("Condition not met after %d ticks (phase %s)", limit, c.Phase())
	}
}

func takeOff(t *testing.T, c *Controller, phys *fakePhysics) {
	t.Helper()
	if err := c.TakeOff(); err != nil {
		t.Fatalf("takeoff: %v", err)
	}
	phys.setHeight(8)
	tickUntil(t, c, 0.1, 200, func() bool { return c.Phase() == PhaseAirborne })
}

func placeOnSlots(c *Controller, phys *fakePhysics, center geom.Vector3, count int) {
	offsets := TourOffsets(c.cfg.AgentCount, c.cfg.Spacing, c.cfg.Navigation.MinOffsetSpacing, c.cfg.Navigation.OffsetRise)
	for id := range offsets {
		if id < count {
			phys.pos[id] = center.Add(offsets[id])
		} else {
			phys.pos[id] = geom.V(-100, 8, -100)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AgentCount = 60
	if _, err := New(cfg, newFakePhysics()); err == nil {
		t.Error("Expected error for agent count above max agents")
	}

	cfg = DefaultConfig()
	cfg.Navigation.SuccessThreshold = 1.5
	if _, err := New(cfg, newFakePhysics()); err == nil {
		t.Error("Expected error for success threshold above 1")
	}
}

func TestGroundGrid(t *testing.T) {
	grid := GroundGrid(5, 3)
	if len(grid) != 5 {
		t.Fatalf("Expected 5 positions, got %d", len(grid))
	}
	if grid[0] != geom.V(-3, 0, -1.5) || grid[4] != geom.V(0, 0, 1.5) {
		t.Errorf("Unexpected grid layout %v", grid)
	}
	if err := formation.Validate(grid, 3); err != nil {
		t.Errorf("Expected grid spacing of at least 3: %v", err)
	}
}

func TestTakeoffSequence(t *testing.T) {
	c, phys, rec := newMission(t, testConfig(5))

	takeOff(t, c, phys)

	for id := 0; id < 5; id++ {
		a, _ := c.Agent(id)
		if a.State() != flight.Hovering {
			t.Errorf("Agent %d: expected hovering, got %s", id, a.State())
		}
	}
	if err := c.TakeOff(); !errors.Is(err, ErrNotGrounded) {
		t.Errorf("Expected ErrNotGrounded on second takeoff, got %v", err)
	}
	if n := len(rec.OfKind(events.KindPhaseChanged)); n != 2 {
		t.Errorf("Expected 2 phase changes, got %d", n)
	}
}

func TestTakeoffOrder(t *testing.T) {
	got := takeoffOrder(5)
	want := []int{0, 2, 4, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestFormationPreconditions(t *testing.T) {
	c, phys, _ := newMission(t, testConfig(5))

	if err := c.Form(formation.ShapeV); !errors.Is(err, ErrNotAirborne) {
		t.Errorf("Expected ErrNotAirborne while grounded, got %v", err)
	}

	takeOff(t, c, phys)

	short := formation.New(formation.ShapeLine, 4, 10, 5)
	if err := c.ApplyFormation(short); !errors.Is(err, ErrInsufficientSlots) {
		t.Errorf("Expected ErrInsufficientSlots, got %v", err)
	}
	if c.Phase() != PhaseAirborne {
		t.Errorf("Expected phase unchanged, got %s", c.Phase())
	}
	for id := 0; id < 5; id++ {
		a, _ := c.Agent(id)
		if a.State() != flight.Hovering {
			t.Errorf("Agent %d: expected untouched, got %s", id, a.State())
		}
	}

	if err := c.Form(formation.ShapeCircularStaging); !errors.Is(err, ErrUnsupportedShape) {
		t.Errorf("Expected ErrUnsupportedShape, got %v", err)
	}

	if err := c.Form(formation.ShapeV); err != nil {
		t.Fatalf("form: %v", err)
	}
	if err := c.Form(formation.ShapeLine); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy while forming, got %v", err)
	}
}

func TestFormationSequence(t *testing.T) {
	c, phys, rec := newMission(t, testConfig(5))
	takeOff(t, c, phys)

	if err := c.Form(formation.ShapeV); err != nil {
		t.Fatalf("form: %v", err)
	}
	c.Tick(0.1)
	a0, _ := c.Agent(0)
	if a0.State() != flight.Staging {
		t.Errorf("Expected first agent staging, got %s", a0.State())
	}

	tickUntil(t, c, 0.1, 300, func() bool { return c.Phase() == PhaseHolding })
	for id := 0; id < 5; id++ {
		a, _ := c.Agent(id)
		if a.State() != flight.FormationHold {
			t.Errorf("Agent %d: expected formation-hold, got %s", id, a.State())
		}
		target, _ := a.Target()
		want := formation.Generate(formation.ShapeV, 5, 10, 5)[id]
		if target != want {
			t.Errorf("Agent %d: expected slot %v, got %v", id, want, target)
		}
	}

	tickUntil(t, c, 0.1, 50, func() bool { return c.Phase() == PhaseAirborne })
	if n := len(rec.OfKind(events.KindFormationChanged)); n != 1 {
		t.Errorf("Expected 1 formation event, got %d", n)
	}
	if tel := c.Telemetry(); tel.Formation != "v" {
		t.Errorf("Expected cached v formation, got %q", tel.Formation)
	}
}

func TestVerticalSkipsStaging(t *testing.T) {
	c, phys, _ := newMission(t, testConfig(4))
	takeOff(t, c, phys)

	if err := c.Form(formation.ShapeVertical); err != nil {
		t.Fatalf("form: %v", err)
	}
	c.Tick(0.1)
	a0, _ := c.Agent(0)
	if a0.State() != flight.FormationMove {
		t.Errorf("Expected formation move without staging, got %s", a0.State())
	}
	if got := c.State().Agents()[0].HasStaging; got {
		t.Error("Expected no staging point for a vertical column")
	}
}

func TestTourPreconditions(t *testing.T) {
	c, phys, _ := newMission(t, testConfig(5))
	wp := []Waypoint{NewWaypoint(geom.V(0, 10, 50), 10, 1)}

	if err := c.StartTour(wp); !errors.Is(err, ErrNotAirborne) {
		t.Errorf("Expected ErrNotAirborne, got %v", err)
	}
	takeOff(t, c, phys)
	if err := c.StartTour(nil); !errors.Is(err, ErrNoWaypoints) {
		t.Errorf("Expected ErrNoWaypoints, got %v", err)
	}
	if err := c.StartTour(wp); err != nil {
		t.Fatalf("start tour: %v", err)
	}
	if err := c.StartTour(wp); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
}

func TestWaypointProgressionBySuccessFraction(t *testing.T) {
	tests := []struct {
		name    string
		onSlot  int
		reached bool
	}{
		{name: "seven of ten", onSlot: 7, reached: true},
		{name: "all ten", onSlot: 10, reached: true},
		{name: "six of ten", onSlot: 6, reached: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, phys, rec := newMission(t, testConfig(10))
			takeOff(t, c, phys)

			center := geom.V(0, 10, 60)
			if err := c.StartTour([]Waypoint{NewWaypoint(center, 100, 5)}); err != nil {
				t.Fatalf("start tour: %v", err)
			}
			placeOnSlots(c, phys, center, tt.onSlot)
			c.Tick(0.1)

			tel := c.Telemetry()
			if tel.Waypoints[0].Reached != tt.reached {
				t.Errorf("Expected reached=%v, got %v", tt.reached, tel.Waypoints[0].Reached)
			}
			if got := len(rec.OfKind(events.KindWaypointReached)) == 1; got != tt.reached {
				t.Errorf("Expected waypoint event=%v", tt.reached)
			}
			if tel.TimingViolations != 0 {
				t.Errorf("Expected no timing violation, got %d", tel.TimingViolations)
			}
		})
	}
}

func TestWaypointProgressionByTimeout(t *testing.T) {
	c, phys, rec := newMission(t, testConfig(10))
	takeOff(t, c, phys)

	first := geom.V(0, 10, 60)
	second := geom.V(60, 10, 60)
	err := c.StartTour([]Waypoint{
		NewWaypoint(first, 2, 1),
		NewWaypoint(second, 2, 1),
	})
	if err != nil {
		t.Fatalf("start tour: %v", err)
	}
	placeOnSlots(c, phys, first, 5)

	for i := 0; i < 19; i++ {
		c.Tick(0.1)
	}
	if n := c.Telemetry().TimingViolations; n != 0 {
		t.Fatalf("Expected no violation before T1, got %d", n)
	}

	c.Tick(0.1)
	c.Tick(0.1)
	tel := c.Telemetry()
	if tel.TimingViolations != 1 {
		t.Fatalf("Expected 1 timing violation after T1, got %d", tel.TimingViolations)
	}
	if tel.Waypoints[0].Reached {
		t.Error("Expected timed-out waypoint not marked reached")
	}
	if n := len(rec.OfKind(events.KindTimingViolation)); n != 1 {
		t.Errorf("Expected 1 timing violation event, got %d", n)
	}
	a0, _ := c.Agent(0)
	if a0.State() != flight.FormationHold {
		t.Errorf("Expected swarm locked after T1, got %s", a0.State())
	}

	tickUntil(t, c, 0.1, 20, func() bool { return c.Telemetry().CurrentWaypoint == 1 })
	target, _ := a0.Target()
	if !target.ApproxEqual(second.Add(geom.V(-31.5, 0, 0)), 1e-9) {
		t.Errorf("Expected agent 0 heading to its second slot, got %v", target)
	}
}

func TestCommLossMidTourStopsLinkQueries(t *testing.T) {
	c, phys, rec := newMission(t, testConfig(5))
	takeOff(t, c, phys)

	if err := c.StartTour([]Waypoint{NewWaypoint(geom.V(0, 10, 80), 1000, 1)}); err != nil {
		t.Fatalf("start tour: %v", err)
	}
	for i := 0; i < 10; i++ {
		c.Tick(0.1)
	}
	before := c.Telemetry().Link.Requests
	if before == 0 {
		t.Fatal("Expected link queries before the loss")
	}

	c.TriggerCommLoss()
	for i := 0; i < 100; i++ {
		c.Tick(0.1)
	}

	tel := c.Telemetry()
	if tel.Link.Requests != before {
		t.Errorf("Expected link requests to stay at %d, got %d", before, tel.Link.Requests)
	}
	if tel.CommActive {
		t.Error("Expected link to stay down")
	}
	for _, a := range tel.Agents {
		if !a.Autonomous {
			t.Errorf("Agent %d: expected autonomous", a.ID)
		}
	}
	if tel.Planner.Degraded == 0 {
		t.Error("Expected degraded planning after the loss")
	}
	if n := len(rec.OfKind(events.KindCommunicationStatus)); n != 1 {
		t.Errorf("Expected 1 communication event, got %d", n)
	}
}

func TestScheduledCommLoss(t *testing.T) {
	cfg := testConfig(3)
	cfg.Navigation.CommLossAfter = 1
	c, phys, _ := newMission(t, cfg)
	takeOff(t, c, phys)

	if err := c.StartTour([]Waypoint{NewWaypoint(geom.V(0, 10, 80), 1000, 1)}); err != nil {
		t.Fatalf("start tour: %v", err)
	}
	tickUntil(t, c, 0.1, 15, func() bool { return !c.CommActive() })

	if tel := c.Telemetry(); tel.CommLostAt < 1 {
		t.Errorf("Expected loss after 1s of touring, got %v", tel.CommLostAt)
	}
}

func TestTourEndsWithLanding(t *testing.T) {
	cfg := testConfig(3)
	cfg.Navigation.LandingTarget = geom.V(20, 0, 20)
	c, phys, rec := newMission(t, cfg)
	takeOff(t, c, phys)

	if err := c.StartTour([]Waypoint{NewWaypoint(geom.V(0, 10, 30), 0.5, 0.5)}); err != nil {
		t.Fatalf("start tour: %v", err)
	}
	tickUntil(t, c, 0.1, 30, func() bool { return c.Phase() == PhaseFinalApproach })
	tickUntil(t, c, 0.1, 60, func() bool { return c.Phase() == PhaseLanding })

	a1, _ := c.Agent(1)
	if a1.State() != flight.FastLanding {
		t.Fatalf("Expected fast landing, got %s", a1.State())
	}
	target, _ := a1.Target()
	if target != geom.V(20, 1, 20) {
		t.Errorf("Expected landing slot (20,1,20), got %v", target)
	}

	phys.setHeight(1)
	tickUntil(t, c, 0.1, 5, func() bool { return c.Phase() == PhaseGrounded })
	if n := len(rec.OfKind(events.KindMissionComplete)); n != 1 {
		t.Errorf("Expected 1 mission complete event, got %d", n)
	}
}

func TestLandFromHover(t *testing.T) {
	c, phys, _ := newMission(t, testConfig(4))
	takeOff(t, c, phys)

	if err := c.Land(); err != nil {
		t.Fatalf("land: %v", err)
	}
	tickUntil(t, c, 0.1, 20, func() bool {
		a, _ := c.Agent(3)
		return a.State() == flight.Landing
	})
	phys.setHeight(0.5)
	tickUntil(t, c, 0.1, 5, func() bool { return c.Phase() == PhaseGrounded })

	if err := c.Land(); !errors.Is(err, ErrNotAirborne) {
		t.Errorf("Expected ErrNotAirborne, got %v", err)
	}
}

func TestRestartClearsEverything(t *testing.T) {
	c, phys, _ := newMission(t, testConfig(4))
	firstRun := c.RunID()
	takeOff(t, c, phys)
	_ = c.Form(formation.ShapeLine)
	c.TriggerCommLoss()

	if err := c.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}

	if c.RunID() == firstRun {
		t.Error("Expected a new run id")
	}
	if c.Phase() != PhaseGrounded {
		t.Errorf("Expected grounded, got %s", c.Phase())
	}
	if !c.CommActive() {
		t.Error("Expected link restored")
	}
	if _, ok := c.State().Formations().Last(); ok {
		t.Error("Expected formation cache cleared")
	}
	if phys.resets != 2 {
		t.Errorf("Expected 2 physics resets, got %d", phys.resets)
	}
	tel := c.Telemetry()
	if len(tel.Agents) != 4 || tel.Elapsed != 0 {
		t.Errorf("Expected 4 fresh agents at t=0, got %d at %v", len(tel.Agents), tel.Elapsed)
	}
	for _, a := range tel.Agents {
		if a.State != flight.Grounded.String() || a.Autonomous {
			t.Errorf("Agent %d: expected grounded and networked, got %s autonomous=%v", a.ID, a.State, a.Autonomous)
		}
	}
}

func TestSequenceRunsDueSteps(t *testing.T) {
	var ran []string
	seq := newSequence("test").
		then(0, "a", func() { ran = append(ran, "a") }).
		then(1, "b", func() { ran = append(ran, "b") }).
		pause(0.5, "wait").
		then(0, "c", func() { ran = append(ran, "c") })

	seq.advance(0.1)
	if len(ran) != 1 || seq.current() != "b" {
		t.Fatalf("Expected only a, got %v (waiting on %q)", ran, seq.current())
	}
	seq.advance(2)
	if len(ran) != 3 || !seq.done() {
		t.Errorf("Expected a, b and c, got %v", ran)
	}
}
