package mission

import (
	"errors"
	"fmt"

	"github.com/picogrid/swarm-nav/pkg/flight"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/link"
	"github.com/picogrid/swarm-nav/pkg/planner"
	"github.com/picogrid/swarm-nav/pkg/swarm"
)

var (
	ErrBusy              = errors.New("mission is busy")
	ErrNotAirborne       = errors.New("swarm is not airborne")
	ErrNotGrounded       = errors.New("swarm is not grounded")
	ErrInsufficientSlots = errors.New("formation has fewer slots than agents")
	ErrSlotMismatch      = errors.New("formation slot count does not match agent count")
	ErrNoWaypoints       = errors.New("tour has no waypoints")
	ErrUnsupportedShape  = errors.New("shape cannot be formed directly")
)

// Timing holds the waits and staggers of the timed sequences, in seconds
type Timing struct {
	ArmStagger        float64 `yaml:"arm_stagger" toml:"arm_stagger"`
	ArmWait           float64 `yaml:"arm_wait" toml:"arm_wait"`
	TakeoffStagger    float64 `yaml:"takeoff_stagger" toml:"takeoff_stagger"`
	TakeoffWait       float64 `yaml:"takeoff_wait" toml:"takeoff_wait"`
	StagingStagger    float64 `yaml:"staging_stagger" toml:"staging_stagger"`
	StagingWait       float64 `yaml:"staging_wait" toml:"staging_wait"`
	SlotStagger       float64 `yaml:"slot_stagger" toml:"slot_stagger"`
	ColumnStagger     float64 `yaml:"column_stagger" toml:"column_stagger"`
	FormationWait     float64 `yaml:"formation_wait" toml:"formation_wait"`
	FormationHold     float64 `yaml:"formation_hold" toml:"formation_hold"`
	LandStagger       float64 `yaml:"land_stagger" toml:"land_stagger"`
	FinalApproachWait float64 `yaml:"final_approach_wait" toml:"final_approach_wait"`
	TouchdownWait     float64 `yaml:"touchdown_wait" toml:"touchdown_wait"`
}

// Navigation holds the waypoint tour parameters
type Navigation struct {
	Waypoints        []Waypoint   `yaml:"waypoints" toml:"waypoints"`
	SuccessThreshold float64      `yaml:"success_threshold" toml:"success_threshold"`
	Tolerance        float64      `yaml:"tolerance" toml:"tolerance"`
	LandingTarget    geom.Vector3 `yaml:"landing_target" toml:"landing_target"`
	LandingHeight    float64      `yaml:"landing_height" toml:"landing_height"`
	CommLossAfter    float64      `yaml:"comm_loss_after" toml:"comm_loss_after"`
	MinOffsetSpacing float64      `yaml:"min_offset_spacing" toml:"min_offset_spacing"`
	OffsetRise       float64      `yaml:"offset_rise" toml:"offset_rise"`
}

// Config is everything the mission controller needs
type Config struct {
	AgentCount       int     `yaml:"agent_count" toml:"agent_count"`
	MaxAgents        int     `yaml:"max_agents" toml:"max_agents"`
	Altitude         float64 `yaml:"altitude" toml:"altitude"`
	Spacing          float64 `yaml:"spacing" toml:"spacing"`
	StagingRadius    float64 `yaml:"staging_radius" toml:"staging_radius"`
	TakeoffClearance float64 `yaml:"takeoff_clearance" toml:"takeoff_clearance"`
	GroundSpacing    float64 `yaml:"ground_spacing" toml:"ground_spacing"`
	MinSlotDistance  float64 `yaml:"min_slot_distance" toml:"min_slot_distance"`

	Timing     Timing         `yaml:"timing" toml:"timing"`
	Navigation Navigation     `yaml:"navigation" toml:"navigation"`
	Planner    planner.Config `yaml:"planner" toml:"planner"`
	Flight     flight.Config  `yaml:"flight" toml:"flight"`
	Link       link.Config    `yaml:"link" toml:"link"`
}

// DefaultConfig returns the standard ten-agent mission
func DefaultConfig() Config {
	return Config{
		AgentCount:       10,
		MaxAgents:        swarm.DefaultMaxAgents,
		Altitude:         10,
		Spacing:          5,
		StagingRadius:    4,
		TakeoffClearance: 2,
		GroundSpacing:    3,
		MinSlotDistance:  1,
		Timing: Timing{
			ArmStagger:        0.1,
			ArmWait:           0.5,
			TakeoffStagger:    0.15,
			TakeoffWait:       3,
			StagingStagger:    0.15,
			StagingWait:       3,
			SlotStagger:       0.25,
			ColumnStagger:     0.4,
			FormationWait:     6,
			FormationHold:     30,
			LandStagger:       0.2,
			FinalApproachWait: 4,
			TouchdownWait:     6,
		},
		Navigation: Navigation{
			SuccessThreshold: 0.7,
			Tolerance:        2,
			LandingHeight:    1,
			MinOffsetSpacing: 7,
			OffsetRise:       0.5,
		},
		Planner: planner.DefaultConfig(),
		Flight:  flight.DefaultConfig(),
		Link:    link.DefaultConfig(),
	}
}

// Validate checks the configuration before a controller is built
func (c Config) Validate() error {
	if c.AgentCount <= 0 {
		return fmt.Errorf("agent_count must be positive")
	}
	if c.MaxAgents > 0 && c.AgentCount > c.MaxAgents {
		return fmt.Errorf("agent_count %d exceeds max_agents %d", c.AgentCount, c.MaxAgents)
	}
	if c.Altitude <= 0 {
		return fmt.Errorf("altitude must be positive")
	}
	if c.Spacing <= 0 {
		return fmt.Errorf("spacing must be positive")
	}
	if c.StagingRadius <= 0 {
		return fmt.Errorf("staging_radius must be positive")
	}
	if c.Navigation.SuccessThreshold <= 0 || c.Navigation.SuccessThreshold > 1 {
		return fmt.Errorf("success_threshold must be in (0, 1]")
	}
	if c.Navigation.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}
	for i, wp := range c.Navigation.Waypoints {
		if err := wp.Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	if err := c.Flight.Validate(); err != nil {
		return fmt.Errorf("flight: %w", err)
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	return nil
}

// Waypoint is one stop of a tour. T1 bounds the time to converge and T2 is
// the hold once reached. Only Reached and ReachedAt change after creation.
type Waypoint struct {
	Position  geom.Vector3 `yaml:"position" toml:"position" json:"position"`
	T1        float64      `yaml:"t1" toml:"t1" json:"t1"`
	T2        float64      `yaml:"t2" toml:"t2" json:"t2"`
	Reached   bool         `yaml:"-" toml:"-" json:"reached"`
	ReachedAt float64      `yaml:"-" toml:"-" json:"reached_at"`
}

// NewWaypoint builds an unreached waypoint
func NewWaypoint(position geom.Vector3, t1, t2 float64) Waypoint {
	return Waypoint{Position: position, T1: t1, T2: t2}
}

// Validate rejects negative budgets
func (w Waypoint) Validate() error {
	if w.T1 <= 0 {
		return fmt.Errorf("t1 must be positive")
	}
	if w.T2 < 0 {
		return fmt.Errorf("t2 must not be negative")
	}
	return nil
}

// Phase is the mission-level state
type Phase int

const (
	PhaseGrounded Phase = iota
	PhaseTakingOff
	PhaseAirborne
	PhaseForming
	PhaseHolding
	PhaseTouring
	PhaseFinalApproach
	PhaseLanding
)

func (p Phase) String() string {
	switch p {
	case PhaseGrounded:
		return "grounded"
	case PhaseTakingOff:
		return "taking-off"
	case PhaseAirborne:
		return "airborne"
	case PhaseForming:
		return "forming"
	case PhaseHolding:
		return "holding"
	case PhaseTouring:
		return "touring"
	case PhaseFinalApproach:
		return "final-approach"
	case PhaseLanding:
		return "landing"
	default:
		return "unknown"
	}
}

// idle phases accept new formation and tour commands
func (p Phase) idle() bool {
	return p == PhaseAirborne || p == PhaseHolding
}
