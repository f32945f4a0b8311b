package config

import (
	"fmt"
	"strings"

	"github.com/picogrid/swarm-nav/pkg/flight"
	"github.com/picogrid/swarm-nav/pkg/kinematics"
	"github.com/picogrid/swarm-nav/pkg/link"
	"github.com/picogrid/swarm-nav/pkg/mission"
	"github.com/picogrid/swarm-nav/pkg/planner"
	"github.com/picogrid/swarm-nav/pkg/swarm"
)

// Config holds the complete swarm configuration
type Config struct {
	// Basic run settings
	Simulation SimulationSettings `yaml:"simulation" toml:"simulation"`

	// Swarm size and geometry
	Swarm SwarmConfig `yaml:"swarm" toml:"swarm"`

	// Sequence waits and staggers
	Timing mission.Timing `yaml:"timing" toml:"timing"`

	// Waypoint tour
	Navigation mission.Navigation `yaml:"navigation" toml:"navigation"`

	Planner planner.Config    `yaml:"planner" toml:"planner"`
	Link    link.Config       `yaml:"link" toml:"link"`
	Flight  flight.Config     `yaml:"flight" toml:"flight"`
	Physics kinematics.Config `yaml:"physics" toml:"physics"`

	// Scenario choices
	Scenario ScenarioConfig `yaml:"scenario" toml:"scenario"`

	// Logging and reporting
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// SimulationSettings holds basic run settings
type SimulationSettings struct {
	Name        string  `yaml:"name" toml:"name"`
	Description string  `yaml:"description" toml:"description"`
	TickRate    float64 `yaml:"tick_rate" toml:"tick_rate"`       // ticks per second
	TimeScale   float64 `yaml:"time_scale" toml:"time_scale"`     // simulated seconds per wall second
	MaxDuration float64 `yaml:"max_duration" toml:"max_duration"` // simulated seconds, 0 = unbounded
	Seed        int64   `yaml:"seed" toml:"seed"`
}

// SwarmConfig defines the swarm size and formation geometry
type SwarmConfig struct {
	AgentCount       int     `yaml:"agent_count" toml:"agent_count"`
	MaxAgents        int     `yaml:"max_agents" toml:"max_agents"`
	Altitude         float64 `yaml:"altitude" toml:"altitude"`
	Spacing          float64 `yaml:"spacing" toml:"spacing"`
	StagingRadius    float64 `yaml:"staging_radius" toml:"staging_radius"`
	TakeoffClearance float64 `yaml:"takeoff_clearance" toml:"takeoff_clearance"`
	GroundSpacing    float64 `yaml:"ground_spacing" toml:"ground_spacing"`
	MinSlotDistance  float64 `yaml:"min_slot_distance" toml:"min_slot_distance"`
}

// ScenarioConfig selects what a scenario flies
type ScenarioConfig struct {
	Formations  []string `yaml:"formations" toml:"formations"`
	Pattern     string   `yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	PatternsDir string   `yaml:"patterns_dir" toml:"patterns_dir"`
	LandAtEnd   bool     `yaml:"land_at_end" toml:"land_at_end"`
}

// LoggingConfig defines logging and reporting settings
type LoggingConfig struct {
	Level           string `yaml:"level" toml:"level"` // "debug", "info", "warn", "error"
	NoColor         bool   `yaml:"no_color" toml:"no_color"`
	EventLevel      string `yaml:"event_level" toml:"event_level"`
	EventDB         string `yaml:"event_db,omitempty" toml:"event_db,omitempty"`
	EventBufferSize int    `yaml:"event_buffer_size" toml:"event_buffer_size"`
	EnableAAR       bool   `yaml:"enable_aar" toml:"enable_aar"`
	AARFormat       string `yaml:"aar_format" toml:"aar_format"` // "json", "markdown"
	AAROutputPath   string `yaml:"aar_output_path" toml:"aar_output_path"`
}

var validLevels = []string{"debug", "info", "warn", "error"}

// GetDefaultConfig returns the standard ten-agent configuration
func GetDefaultConfig() *Config {
	m := mission.DefaultConfig()
	return &Config{
		Simulation: SimulationSettings{
			Name:        "swarm-nav",
			Description: "Drone swarm formation and waypoint navigation",
			TickRate:    50,
			TimeScale:   1,
			MaxDuration: 600,
			Seed:        1,
		},
		Swarm: SwarmConfig{
			AgentCount:       m.AgentCount,
			MaxAgents:        swarm.DefaultMaxAgents,
			Altitude:         m.Altitude,
			Spacing:          m.Spacing,
			StagingRadius:    m.StagingRadius,
			TakeoffClearance: m.TakeoffClearance,
			GroundSpacing:    m.GroundSpacing,
			MinSlotDistance:  m.MinSlotDistance,
		},
		Timing:     m.Timing,
		Navigation: m.Navigation,
		Planner:    m.Planner,
		Link:       m.Link,
		Flight:     m.Flight,
		Physics:    kinematics.DefaultConfig(),
		Scenario: ScenarioConfig{
			Formations:  []string{"v", "arrow", "line", "vertical"},
			PatternsDir: "patterns",
			LandAtEnd:   true,
		},
		Logging: LoggingConfig{
			Level:           "info",
			EventLevel:      "info",
			EventBufferSize: 256,
			EnableAAR:       true,
			AARFormat:       "json",
			AAROutputPath:   "reports",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Simulation.Name == "" {
		return fmt.Errorf("simulation name is required")
	}
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive")
	}
	if c.Simulation.TimeScale <= 0 {
		return fmt.Errorf("time scale must be positive")
	}
	if c.Simulation.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative")
	}

	if !validLevel(c.Logging.Level) {
		return fmt.Errorf("log level must be one of %s", strings.Join(validLevels, ", "))
	}
	switch c.Logging.AARFormat {
	case "json", "markdown":
	default:
		return fmt.Errorf("aar format must be json or markdown")
	}
	if c.Logging.EventBufferSize < 0 {
		return fmt.Errorf("event buffer size must not be negative")
	}

	if err := c.Physics.Validate(); err != nil {
		return fmt.Errorf("physics: %w", err)
	}
	return c.ToMission().Validate()
}

// ToMission extracts the mission controller configuration
func (c *Config) ToMission() mission.Config {
	return mission.Config{
		AgentCount:       c.Swarm.AgentCount,
		MaxAgents:        c.Swarm.MaxAgents,
		Altitude:         c.Swarm.Altitude,
		Spacing:          c.Swarm.Spacing,
		StagingRadius:    c.Swarm.StagingRadius,
		TakeoffClearance: c.Swarm.TakeoffClearance,
		GroundSpacing:    c.Swarm.GroundSpacing,
		MinSlotDistance:  c.Swarm.MinSlotDistance,
		Timing:           c.Timing,
		Navigation:       c.Navigation,
		Planner:          c.Planner,
		Flight:           c.Flight,
		Link:             c.Link,
	}
}

// TickInterval is the simulated seconds per tick
func (c *Config) TickInterval() float64 {
	return 1 / c.Simulation.TickRate
}

// String returns a human-readable representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(`Swarm Configuration:
  Name: %s
  Description: %s
  Tick Rate: %.0f Hz
  Time Scale: %.1fx
  Seed: %d

Swarm:
  Agents: %d (max %d)
  Altitude: %.1f m
  Spacing: %.1f m
  Staging Radius: %.1f m

Navigation:
  Waypoints: %d
  Success Threshold: %.0f%%
  Tolerance: %.1f m
  Comm Loss After: %.1f s

Link:
  Packet Loss: %.2f%%
  Corruption: %.2f%%

Scenario:
  Formations: %s
  Land At End: %t

Logging:
  Level: %s
  Event DB: %s
  AAR Enabled: %t
  AAR Format: %s`,
		c.Simulation.Name,
		c.Simulation.Description,
		c.Simulation.TickRate,
		c.Simulation.TimeScale,
		c.Simulation.Seed,
		c.Swarm.AgentCount,
		c.Swarm.MaxAgents,
		c.Swarm.Altitude,
		c.Swarm.Spacing,
		c.Swarm.StagingRadius,
		len(c.Navigation.Waypoints),
		c.Navigation.SuccessThreshold*100,
		c.Navigation.Tolerance,
		c.Navigation.CommLossAfter,
		c.Link.PacketLoss*100,
		c.Link.Corruption*100,
		strings.Join(c.Scenario.Formations, ", "),
		c.Scenario.LandAtEnd,
		c.Logging.Level,
		orNone(c.Logging.EventDB),
		c.Logging.EnableAAR,
		c.Logging.AARFormat,
	)
}

func validLevel(level string) bool {
	for _, valid := range validLevels {
		if level == valid {
			return true
		}
	}
	return false
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
