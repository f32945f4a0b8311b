package flight

import (
	"fmt"
	"strings"
)

// State is a flight phase of one agent
type State int

const (
	Grounded State = iota
	Armed
	TakingOff
	Hovering
	Staging
	FormationMove
	FastFormationMove
	NavigationMove
	FormationHold
	Landing
	FastLanding
)

var stateNames = map[State]string{
	Grounded:          "grounded",
	Armed:             "armed",
	TakingOff:         "taking-off",
	Hovering:          "hovering",
	Staging:           "staging",
	FormationMove:     "formation-move",
	FastFormationMove: "fast-formation-move",
	NavigationMove:    "navigation-move",
	FormationHold:     "formation-hold",
	Landing:           "landing",
	FastLanding:       "fast-landing",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState is the inverse of String
func ParseState(name string) (State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return Grounded, fmt.Errorf("unknown flight state %q", name)
}

// Airborne is true for every state between takeoff and touchdown
func (s State) Airborne() bool {
	return s >= TakingOff
}

// Landing is true for both landing states
func (s State) Landing() bool {
	return s == Landing || s == FastLanding
}

// Moving is true for the states that steer through the planner
func (s State) Moving() bool {
	switch s {
	case Staging, FormationMove, FastFormationMove, NavigationMove:
		return true
	}
	return false
}

// commandable states accept move and lock commands
func (s State) commandable() bool {
	return s.Airborne() && !s.Landing()
}

// tracksProgress states are expected to keep moving; only they run stuck
// detection
func (s State) tracksProgress() bool {
	return s == TakingOff || s.Moving() || s.Landing()
}

// Config holds the physical constants and thresholds of the controller
type Config struct {
	HoverThrust    float64 `yaml:"hover_thrust" toml:"hover_thrust"`
	ThrustForce    float64 `yaml:"thrust_force" toml:"thrust_force"`
	MoveForce      float64 `yaml:"move_force" toml:"move_force"`
	FastMultiplier float64 `yaml:"fast_multiplier" toml:"fast_multiplier"`
	MaxSpeed       float64 `yaml:"max_speed" toml:"max_speed"`

	TakeoffBoost   float64 `yaml:"takeoff_boost" toml:"takeoff_boost"`
	TakeoffMargin  float64 `yaml:"takeoff_margin" toml:"takeoff_margin"`
	LandingThrust  float64 `yaml:"landing_thrust" toml:"landing_thrust"`
	TouchdownLevel float64 `yaml:"touchdown_level" toml:"touchdown_level"`

	StagingThreshold    float64 `yaml:"staging_threshold" toml:"staging_threshold"`
	FormationThreshold  float64 `yaml:"formation_threshold" toml:"formation_threshold"`
	FastThreshold       float64 `yaml:"fast_threshold" toml:"fast_threshold"`
	NavigationThreshold float64 `yaml:"navigation_threshold" toml:"navigation_threshold"`

	HoverDeadband float64 `yaml:"hover_deadband" toml:"hover_deadband"`
	HoverGain     float64 `yaml:"hover_gain" toml:"hover_gain"`
	HoverMinForce float64 `yaml:"hover_min_force" toml:"hover_min_force"`

	HoldDeadband    float64 `yaml:"hold_deadband" toml:"hold_deadband"`
	HoldGain        float64 `yaml:"hold_gain" toml:"hold_gain"`
	HoldMinForce    float64 `yaml:"hold_min_force" toml:"hold_min_force"`
	HoldMaxFraction float64 `yaml:"hold_max_fraction" toml:"hold_max_fraction"`

	HoldThrustGain   float64 `yaml:"hold_thrust_gain" toml:"hold_thrust_gain"`
	HoldThrustMin    float64 `yaml:"hold_thrust_min" toml:"hold_thrust_min"`
	HoldThrustMax    float64 `yaml:"hold_thrust_max" toml:"hold_thrust_max"`
	HoverThrustGain  float64 `yaml:"hover_thrust_gain" toml:"hover_thrust_gain"`
	HoverThrustMin   float64 `yaml:"hover_thrust_min" toml:"hover_thrust_min"`
	HoverThrustMax   float64 `yaml:"hover_thrust_max" toml:"hover_thrust_max"`
	FastDistanceNorm float64 `yaml:"fast_distance_norm" toml:"fast_distance_norm"`
	FastScaleMin     float64 `yaml:"fast_scale_min" toml:"fast_scale_min"`
	FastScaleMax     float64 `yaml:"fast_scale_max" toml:"fast_scale_max"`

	StuckThreshold float64 `yaml:"stuck_threshold" toml:"stuck_threshold"`
	StuckDuration  float64 `yaml:"stuck_duration" toml:"stuck_duration"`
	StuckLift      float64 `yaml:"stuck_lift" toml:"stuck_lift"`
	StuckJitter    float64 `yaml:"stuck_jitter" toml:"stuck_jitter"`
}

// DefaultConfig returns the standard airframe tuning
func DefaultConfig() Config {
	return Config{
		HoverThrust:    10,
		ThrustForce:    12,
		MoveForce:      10,
		FastMultiplier: 2,
		MaxSpeed:       14,

		TakeoffBoost:   1.2,
		TakeoffMargin:  0.5,
		LandingThrust:  0.3,
		TouchdownLevel: 1.5,

		StagingThreshold:    2,
		FormationThreshold:  1.5,
		FastThreshold:       1.8,
		NavigationThreshold: 2,

		HoverDeadband: 1,
		HoverGain:     2,
		HoverMinForce: 0.5,

		HoldDeadband:    0.1,
		HoldGain:        2,
		HoldMinForce:    0.1,
		HoldMaxFraction: 0.5,

		HoldThrustGain:   5,
		HoldThrustMin:    0.6,
		HoldThrustMax:    1.8,
		HoverThrustGain:  3,
		HoverThrustMin:   0.7,
		HoverThrustMax:   1.4,
		FastDistanceNorm: 1.5,
		FastScaleMin:     1,
		FastScaleMax:     2.5,

		StuckThreshold: 0.1,
		StuckDuration:  3,
		StuckLift:      0.5,
		StuckJitter:    0.3,
	}
}

// Validate checks the values the controller divides by or clamps with
func (c Config) Validate() error {
	switch {
	case c.HoverThrust <= 0:
		return fmt.Errorf("hover_thrust must be positive")
	case c.MoveForce <= 0:
		return fmt.Errorf("move_force must be positive")
	case c.FastDistanceNorm <= 0:
		return fmt.Errorf("fast_distance_norm must be positive")
	case c.HoldThrustMin > c.HoldThrustMax:
		return fmt.Errorf("hold_thrust_min must not exceed hold_thrust_max")
	case c.HoverThrustMin > c.HoverThrustMax:
		return fmt.Errorf("hover_thrust_min must not exceed hover_thrust_max")
	case c.StuckDuration <= 0:
		return fmt.Errorf("stuck_duration must be positive")
	}
	return nil
}

// arrivalThreshold is the distance under which a moving state counts as
// arrived
func (c Config) arrivalThreshold(s State) float64 {
	switch s {
	case Staging:
		return c.StagingThreshold
	case FormationMove:
		return c.FormationThreshold
	case FastFormationMove:
		return c.FastThreshold
	case NavigationMove:
		return c.NavigationThreshold
	}
	return 0
}
