package mission

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/flight"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/link"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/planner"
	"github.com/picogrid/swarm-nav/pkg/swarm"
)

// Physics is the host that integrates agent motion. The controller only
// reads positions and velocities and hands back commands.
type Physics interface {
	Position(id int) geom.Vector3
	Velocity(id int) geom.Vector3
	Apply(id int, cmd flight.Command)
	Reset(spawn []geom.Vector3)
}

// LinkModel is a planner link that also reports handshake counters
type LinkModel interface {
	planner.Link
	Stats() link.Stats
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithEmitter sets where mission events go
func WithEmitter(e events.Emitter) Option {
	return func(c *Controller) { c.sink = e }
}

// WithRand sets the random source shared by the link and stuck recovery
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithLink replaces the simulated link
func WithLink(l LinkModel) Option {
	return func(c *Controller) { c.link = l }
}

// Controller sequences the whole swarm. It owns the shared swarm state and
// one flight controller per agent, and is advanced only by Tick.
type Controller struct {
	mu      sync.Mutex
	cfg     Config
	physics Physics
	state   *swarm.State
	link    LinkModel
	planner *planner.Planner
	sink    events.Emitter
	emitter events.Emitter
	log     logger.Logger
	rng     *rand.Rand

	runID   string
	agents  []*flight.Controller
	phase   Phase
	elapsed float64
	seq     *sequence

	tour             *tour
	commLostAt       float64
	timingViolations int
	landed           int
	completed        bool
}

// New validates cfg, spawns the swarm on the ground and returns a grounded
// controller
func New(cfg Config, physics Physics, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mission config: %w", err)
	}
	if physics == nil {
		return nil, fmt.Errorf("physics host is required")
	}

	c := &Controller{
		cfg:     cfg,
		physics: physics,
		state:   swarm.NewState(cfg.MaxAgents),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log).WithPrefix("mission")
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(1))
	}
	if c.link == nil {
		c.link = link.NewSimulator(cfg.Link, c.rng, c.log)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.restart(); err != nil {
		return nil, err
	}
	return c, nil
}

// RunID identifies the current run; it changes on every restart
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Phase is the current mission phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Elapsed is mission time in seconds since the last restart
func (c *Controller) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// State exposes the shared swarm state for read access
func (c *Controller) State() *swarm.State {
	return c.state
}

// Agent returns the flight controller of one agent
func (c *Controller) Agent(id int) (*flight.Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.agents {
		if a.ID() == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("agent %d: %w", id, swarm.ErrUnknownAgent)
}

// Restart clears the registry, formations, timers and the link switch,
// then respawns the swarm on the ground under a new run id
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restart()
}

func (c *Controller) restart() error {
	c.state.Reset()
	c.seq = nil
	c.tour = nil
	c.elapsed = 0
	c.commLostAt = -1
	c.timingViolations = 0
	c.landed = 0
	c.completed = false
	c.phase = PhaseGrounded

	c.runID = uuid.NewString()
	c.emitter = events.Stamped(c.sink, c.runID, func() float64 { return c.elapsed })
	c.planner = planner.New(c.cfg.Planner, c.state, c.link, c.emitter, c.log)

	spawn := GroundGrid(c.cfg.AgentCount, c.cfg.GroundSpacing)
	c.physics.Reset(spawn)

	c.agents = make([]*flight.Controller, 0, len(spawn))
	for id, p := range spawn {
		if err := c.state.Register(id, p); err != nil {
			return fmt.Errorf("respawn: %w", err)
		}
		ctrl := flight.New(id, c.cfg.Flight, c.planner,
			flight.WithLogger(c.log),
			flight.WithRand(c.rng),
			flight.WithTransitionHook(c.onTransition),
		)
		c.agents = append(c.agents, ctrl)
	}

	c.log.WithFields(map[string]interface{}{
		"run":    c.runID,
		"agents": len(c.agents),
	}).Info("Swarm spawned")
	return nil
}

// GroundGrid lays n agents on a square grid centered on the origin at
// ground level
func GroundGrid(n int, spacing float64) []geom.Vector3 {
	if n <= 0 {
		return []geom.Vector3{}
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols

	out := make([]geom.Vector3, n)
	for i := range out {
		col := i % cols
		row := i / cols
		out[i] = geom.V(
			(float64(col)-float64(cols-1)/2)*spacing,
			0,
			(float64(row)-float64(rows-1)/2)*spacing,
		)
	}
	return out
}

// Tick advances the mission by dt seconds: it reads the physics host, runs
// due sequence steps and the tour check, then steps every agent in
// registration order and hands the commands back to the host
func (c *Controller) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.elapsed += dt

	for _, a := range c.agents {
		id := a.ID()
		_ = c.state.UpdateKinematics(id, c.physics.Position(id), c.physics.Velocity(id))
	}

	if c.seq != nil {
		c.seq.advance(dt)
		if c.seq != nil && c.seq.done() {
			c.seq = nil
		}
	}
	if c.tour != nil {
		c.updateTour(dt)
	}

	for _, a := range c.agents {
		id := a.ID()
		obs := flight.Observation{Position: c.physics.Position(id), Velocity: c.physics.Velocity(id)}
		cmd := a.Step(dt, obs)
		c.physics.Apply(id, cmd)
		if target, ok := a.Target(); ok {
			_ = c.state.SetTarget(id, target)
		}
	}

	if c.phase == PhaseLanding && c.landed >= len(c.agents) {
		c.finishLanding()
	}
}

// TakeOff arms every agent with a stagger, then lifts them in even-then-odd
// order to the flight altitude minus the takeoff clearance
func (c *Controller) TakeOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseGrounded {
		return fmt.Errorf("takeoff from %s: %w", c.phase, ErrNotGrounded)
	}

	t := c.cfg.Timing
	height := c.cfg.Altitude - c.cfg.TakeoffClearance
	seq := newSequence("takeoff")
	for i, a := range c.agents {
		a := a
		wait := t.ArmStagger
		if i == 0 {
			wait = 0
		}
		seq.then(wait, "arm", func() { c.reject(a.Arm()) })
	}
	seq.pause(t.ArmWait, "arm settle")

	for n, idx := range takeoffOrder(len(c.agents)) {
		wait := t.TakeoffStagger
		if n == 0 {
			wait = 0
		}
		a := c.agents[idx]
		seq.then(wait, "takeoff", func() { c.reject(a.TakeOff(height)) })
	}
	seq.then(t.TakeoffWait, "airborne", func() {
		c.setPhase(PhaseAirborne)
		c.log.WithField("agents", len(c.agents)).Info("Swarm airborne")
	})

	c.seq = seq
	c.landed = 0
	c.completed = false
	c.setPhase(PhaseTakingOff)
	return nil
}

// takeoffOrder lifts even indices first then odd ones, so neighbors on the
// ground grid do not climb together
func takeoffOrder(n int) []int {
	order := make([]int, 0, n)
	for i := 0; i < n; i += 2 {
		order = append(order, i)
	}
	for i := 1; i < n; i += 2 {
		order = append(order, i)
	}
	return order
}

// Land cancels any running sequence or tour, releases every hold and lands
// the agents one after another
func (c *Controller) Land() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseGrounded:
		return fmt.Errorf("land: %w", ErrNotAirborne)
	case PhaseLanding:
		return nil
	}

	if c.tour != nil {
		c.tour.active = false
	}
	seq := newSequence("land")
	for i, a := range c.agents {
		a := a
		wait := c.cfg.Timing.LandStagger
		if i == 0 {
			wait = 0
		}
		seq.then(wait, "land", func() {
			a.Unlock()
			if a.State().Airborne() {
				c.reject(a.Land())
			}
		})
	}
	c.seq = seq
	c.landed = c.groundedCount()
	c.setPhase(PhaseLanding)
	return nil
}

// TriggerCommLoss turns the global link off and puts every agent in
// autonomous mode. There is no reconnection until restart.
func (c *Controller) TriggerCommLoss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggerCommLoss("manual")
}

func (c *Controller) triggerCommLoss(reason string) {
	if !c.state.SetCommActive(false) {
		return
	}
	for _, a := range c.agents {
		a.SetAutonomous(true)
	}
	c.commLostAt = c.elapsed

	c.log.WithField("reason", reason).Warn("Communication lost, swarm switching to autonomous mode")
	c.emitter.Emit(events.New(events.KindCommunicationStatus, "Communication lost").
		WithSeverity(events.SeverityWarning).
		WithDetail("active", false).
		WithDetail("reason", reason))
}

// CommActive reports the global link switch
func (c *Controller) CommActive() bool {
	return c.state.CommActive()
}

func (c *Controller) onTransition(id int, from, to flight.State) {
	if to == flight.Grounded && from.Airborne() {
		c.landed++
		c.log.WithField("agent", id).Debug("Agent landed")
	}
}

func (c *Controller) finishLanding() {
	c.seq = nil
	if c.tour != nil {
		c.tour.active = false
	}
	c.setPhase(PhaseGrounded)
	if c.completed {
		return
	}
	c.completed = true
	c.log.Info("Mission complete, swarm on the ground")
	c.emitter.Emit(events.New(events.KindMissionComplete, "Swarm landed").
		WithDetail("timing_violations", c.timingViolations))
}

func (c *Controller) groundedCount() int {
	n := 0
	for _, a := range c.agents {
		if !a.State().Airborne() {
			n++
		}
	}
	return n
}

func (c *Controller) setPhase(p Phase) {
	if c.phase == p {
		return
	}
	from := c.phase
	c.phase = p
	c.log.WithFields(map[string]interface{}{
		"from": from.String(),
		"to":   p.String(),
	}).Info("Mission phase changed")
	c.emitter.Emit(events.New(events.KindPhaseChanged, "Phase "+p.String()).
		WithDetail("from", from.String()).
		WithDetail("to", p.String()))
}

// reject swallows a refused agent command; the flight controller has
// already logged it
func (c *Controller) reject(err error) {
	if err != nil {
		c.log.Debugf("Agent command refused: %v", err)
	}
}
