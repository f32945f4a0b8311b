package flight

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/planner"
)

// ErrInvalidTransition is returned when a command does not apply to the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid flight transition")

// Navigator supplies planner directions
type Navigator interface {
	Plan(agentID int, current, target geom.Vector3) planner.Result
	PlanAutonomous(agentID int, current, target geom.Vector3) planner.Result
}

// Observation is what the physics host reports for one agent each tick
type Observation struct {
	Position geom.Vector3
	Velocity geom.Vector3
}

// Command is what the controller asks the physics host to apply. Direction
// is a unit vector scaled by Force; Thrust acts on the vertical axis only.
// Impulse is a one-shot kick and ZeroVelocity asks the host to stop the
// body.
type Command struct {
	Direction    geom.Vector3
	Force        float64
	Thrust       float64
	Impulse      geom.Vector3
	ZeroVelocity bool
	Mode         planner.Mode
	Planned      bool
}

// TransitionFunc observes state changes. It runs while the controller is
// locked and must not call back into it.
type TransitionFunc func(agentID int, from, to State)

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithRand sets the random source used by stuck recovery
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithTransitionHook registers a state change observer
func WithTransitionHook(fn TransitionFunc) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// Controller is the flight state machine of one agent
type Controller struct {
	mu  sync.Mutex
	id  int
	cfg Config
	nav Navigator
	log logger.Logger
	rng *rand.Rand

	state        State
	autonomous   bool
	target       geom.Vector3
	hasTarget    bool
	staging      geom.Vector3
	hasStaging   bool
	targetHeight float64

	position   geom.Vector3
	anchor     geom.Vector3
	observed   bool
	stuckTimer float64
	recoveries int

	onTransition TransitionFunc
}

// New creates a grounded controller for one agent
func New(id int, cfg Config, nav Navigator, opts ...Option) *Controller {
	c := &Controller{
		id:    id,
		cfg:   cfg,
		nav:   nav,
		state: Grounded,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log).WithPrefix("flight").WithField("agent", id)
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(int64(id) + 1))
	}
	return c
}

// ID is the agent id
func (c *Controller) ID() int { return c.id }

// State is the current flight state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target is the current target and whether one is set
func (c *Controller) Target() (geom.Vector3, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target, c.hasTarget
}

// Autonomous reports the autonomous flag
func (c *Controller) Autonomous() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autonomous
}

// Recoveries counts stuck recovery kicks
func (c *Controller) Recoveries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recoveries
}

// SetAutonomous switches the agent between networked and local planning.
// It is valid in every state.
func (c *Controller) SetAutonomous(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autonomous != on {
		c.log.WithField("autonomous", on).Info("Autonomous mode changed")
	}
	c.autonomous = on
}

// Arm readies a grounded agent. Arming an armed agent is a no-op.
func (c *Controller) Arm() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Armed:
		return nil
	case Grounded:
		c.transition(Armed)
		return nil
	}
	return c.reject("arm")
}

// TakeOff climbs to height. The agent must be armed.
func (c *Controller) TakeOff(height float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Armed {
		return c.reject("takeoff")
	}
	c.targetHeight = height
	c.hasTarget = false
	c.transition(TakingOff)
	return nil
}

// SetStaging records the staging point used by MoveToStaging
func (c *Controller) SetStaging(p geom.Vector3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staging = p
	c.hasStaging = true
}

// MoveToStaging flies to the recorded staging point
func (c *Controller) MoveToStaging() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasStaging {
		c.log.Warn("No staging point set")
		return fmt.Errorf("agent %d has no staging point: %w", c.id, ErrInvalidTransition)
	}
	return c.startMove(Staging, c.staging, "move to staging")
}

// SetTarget changes the target without changing state
func (c *Controller) SetTarget(p geom.Vector3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = p
	c.hasTarget = true
}

// StartFormationMove flies to a formation slot
func (c *Controller) StartFormationMove(p geom.Vector3) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startMove(FormationMove, p, "formation move")
}

// StartFastFormationMove flies to a formation slot with the fast force
// profile
func (c *Controller) StartFastFormationMove(p geom.Vector3) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startMove(FastFormationMove, p, "fast formation move")
}

// StartNavigationMove flies to a waypoint slot
func (c *Controller) StartNavigationMove(p geom.Vector3) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startMove(NavigationMove, p, "navigation move")
}

func (c *Controller) startMove(to State, p geom.Vector3, action string) error {
	if !c.state.commandable() {
		return c.reject(action)
	}
	c.target = p
	c.hasTarget = true
	c.stuckTimer = 0
	c.transition(to)
	return nil
}

// Lock switches to the precision hold on the current target
func (c *Controller) Lock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == FormationHold:
		return nil
	case !c.state.commandable() || c.state == TakingOff:
		return c.reject("lock")
	}
	if !c.hasTarget {
		c.target = c.position
		c.hasTarget = true
	}
	c.transition(FormationHold)
	return nil
}

// Unlock releases a precision hold back to hovering. It is a no-op in any
// other state.
func (c *Controller) Unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == FormationHold {
		c.transition(Hovering)
	}
}

// Land descends in place
func (c *Controller) Land() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.Landing():
		return nil
	case !c.state.Airborne():
		return c.reject("land")
	}
	c.transition(Landing)
	return nil
}

// FastLand descends while flying to a landing point
func (c *Controller) FastLand(target geom.Vector3) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Airborne() {
		return c.reject("fast land")
	}
	c.target = target
	c.hasTarget = true
	if c.state != FastLanding {
		c.transition(FastLanding)
	}
	return nil
}

func (c *Controller) reject(action string) error {
	c.log.WithFields(map[string]interface{}{
		"action": action,
		"state":  c.state.String(),
	}).Warn("Command rejected")
	return fmt.Errorf("agent %d cannot %s while %s: %w", c.id, action, c.state, ErrInvalidTransition)
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.log.WithFields(map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("State changed")
	if c.onTransition != nil {
		c.onTransition(c.id, from, to)
	}
}
