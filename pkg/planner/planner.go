package planner

import (
	"fmt"
	"sync/atomic"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/swarm"
)

// Config holds the potential-field parameters
type Config struct {
	CommunicationRange float64 `yaml:"communication_range" toml:"communication_range"`
	SafetyRadius       float64 `yaml:"safety_radius" toml:"safety_radius"`
	AvoidanceGain      float64 `yaml:"avoidance_gain" toml:"avoidance_gain"`
	MinDistance        float64 `yaml:"min_distance" toml:"min_distance"`
	Lookahead          float64 `yaml:"lookahead" toml:"lookahead"`
	SidestepGain       float64 `yaml:"sidestep_gain" toml:"sidestep_gain"`

	DangerRange       float64 `yaml:"danger_range" toml:"danger_range"`
	MaxExpectedSpeed  float64 `yaml:"max_expected_speed" toml:"max_expected_speed"`
	SpeedDangerWeight float64 `yaml:"speed_danger_weight" toml:"speed_danger_weight"`
	DangerWarning     float64 `yaml:"danger_warning" toml:"danger_warning"`

	DensityNorm      float64 `yaml:"density_norm" toml:"density_norm"`
	DensityThreshold float64 `yaml:"density_threshold" toml:"density_threshold"`
	ProbeDistance    float64 `yaml:"probe_distance" toml:"probe_distance"`
	ProbeRadius      float64 `yaml:"probe_radius" toml:"probe_radius"`
	HeuristicBias    float64 `yaml:"heuristic_bias" toml:"heuristic_bias"`
	HeuristicWeight  float64 `yaml:"heuristic_weight" toml:"heuristic_weight"`

	DegradedRadius float64 `yaml:"degraded_radius" toml:"degraded_radius"`
	DegradedMargin float64 `yaml:"degraded_margin" toml:"degraded_margin"`
	DegradedWeight float64 `yaml:"degraded_weight" toml:"degraded_weight"`

	ForceDistanceScale float64 `yaml:"force_distance_scale" toml:"force_distance_scale"`
	ForceMin           float64 `yaml:"force_min" toml:"force_min"`
	ForceMax           float64 `yaml:"force_max" toml:"force_max"`
}

// DefaultConfig returns the standard planner tuning
func DefaultConfig() Config {
	return Config{
		CommunicationRange: 20,
		SafetyRadius:       4,
		AvoidanceGain:      3,
		MinDistance:        0.1,
		Lookahead:          2,
		SidestepGain:       0.5,

		DangerRange:       5,
		MaxExpectedSpeed:  10,
		SpeedDangerWeight: 0.3,
		DangerWarning:     3,

		DensityNorm:      10,
		DensityThreshold: 0.5,
		ProbeDistance:    3,
		ProbeRadius:      2,
		HeuristicBias:    0.5,
		HeuristicWeight:  0.1,

		DegradedRadius: 4,
		DegradedMargin: 3,
		DegradedWeight: 0.2,

		ForceDistanceScale: 2,
		ForceMin:           0.8,
		ForceMax:           2,
	}
}

// Validate checks the parameters the algorithm divides by or compares
func (c Config) Validate() error {
	switch {
	case c.CommunicationRange <= 0:
		return fmt.Errorf("communication_range must be positive")
	case c.SafetyRadius <= 0:
		return fmt.Errorf("safety_radius must be positive")
	case c.DangerRange <= 0:
		return fmt.Errorf("danger_range must be positive")
	case c.MaxExpectedSpeed <= 0:
		return fmt.Errorf("max_expected_speed must be positive")
	case c.DensityNorm <= 0:
		return fmt.Errorf("density_norm must be positive")
	case c.DegradedMargin > c.DegradedRadius:
		return fmt.Errorf("degraded_margin must not exceed degraded_radius")
	case c.ForceMin > c.ForceMax:
		return fmt.Errorf("force_min must not exceed force_max")
	}
	return nil
}

// Mode tells how a direction was produced
type Mode int

const (
	// ModeLinked: handshake succeeded, full potential field
	ModeLinked Mode = iota
	// ModeFallback: handshake failed, jittered goal heading with local avoidance
	ModeFallback
	// ModeDegraded: link down or agent autonomous, local avoidance only
	ModeDegraded
)

func (m Mode) String() string {
	switch m {
	case ModeLinked:
		return "linked"
	case ModeFallback:
		return "fallback"
	case ModeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result is one planner answer
type Result struct {
	Direction  geom.Vector3
	ForceScale float64
	Mode       Mode
	Danger     float64
	Neighbors  int
}

// Link gates networked planning
type Link interface {
	Handshake(agentID int) bool
	Fallback(current, target geom.Vector3) geom.Vector3
}

// Registry is the part of the swarm state the planner reads
type Registry interface {
	Neighbors(ref geom.Vector3, radius float64, exclude int) []swarm.Neighbor
	CommActive() bool
}

// Stats counts planner calls by mode
type Stats struct {
	Linked        uint64 `json:"linked"`
	Fallback      uint64 `json:"fallback"`
	Degraded      uint64 `json:"degraded"`
	DangerWarning uint64 `json:"danger_warnings"`
}

// Planner computes safe movement directions for every agent
type Planner struct {
	cfg     Config
	reg     Registry
	link    Link
	emitter events.Emitter
	log     logger.Logger

	linked   atomic.Uint64
	fallback atomic.Uint64
	degraded atomic.Uint64
	warnings atomic.Uint64
}

// New builds a planner over a registry and a link
func New(cfg Config, reg Registry, link Link, emitter events.Emitter, log logger.Logger) *Planner {
	return &Planner{
		cfg:     cfg,
		reg:     reg,
		link:    link,
		emitter: events.OrNop(emitter),
		log:     logger.OrDefault(log).WithPrefix("planner"),
	}
}

// Config returns the planner parameters
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan returns the safe direction for an agent. With the link up the
// request is gated by a handshake; with the link down the link is never
// touched.
func (p *Planner) Plan(agentID int, current, target geom.Vector3) Result {
	if !p.reg.CommActive() || p.link == nil {
		return p.PlanAutonomous(agentID, current, target)
	}

	if !p.link.Handshake(agentID) {
		p.fallback.Add(1)
		nearby := p.reg.Neighbors(current, p.cfg.DegradedRadius, agentID)
		heading := p.link.Fallback(current, target)
		return Result{
			Direction:  p.withLocalAvoidance(heading, current, nearby),
			ForceScale: p.forceScale(current, target),
			Mode:       ModeFallback,
			Neighbors:  len(nearby),
		}
	}

	p.linked.Add(1)
	neighbors := p.reg.Neighbors(current, p.cfg.CommunicationRange, agentID)
	dir, danger := p.SafeDirection(current, target, neighbors)

	if danger > p.cfg.DangerWarning {
		p.warnings.Add(1)
		p.emitter.Emit(events.New(events.KindCollisionRisk, "High danger level").
			WithAgent(agentID).
			WithSeverity(events.SeverityWarning).
			WithDetail("danger", danger).
			WithDetail("neighbors", len(neighbors)))
	}

	return Result{
		Direction:  dir,
		ForceScale: p.forceScale(current, target),
		Mode:       ModeLinked,
		Danger:     danger,
		Neighbors:  len(neighbors),
	}
}

// PlanAutonomous steers on local information only. It never queries the
// link.
func (p *Planner) PlanAutonomous(agentID int, current, target geom.Vector3) Result {
	p.degraded.Add(1)
	nearby := p.reg.Neighbors(current, p.cfg.DegradedRadius, agentID)
	heading := target.Sub(current).Normalize()
	return Result{
		Direction:  p.withLocalAvoidance(heading, current, nearby),
		ForceScale: p.forceScale(current, target),
		Mode:       ModeDegraded,
		Neighbors:  len(nearby),
	}
}

// Stats returns the call counters
func (p *Planner) Stats() Stats {
	return Stats{
		Linked:        p.linked.Load(),
		Fallback:      p.fallback.Load(),
		Degraded:      p.degraded.Load(),
		DangerWarning: p.warnings.Load(),
	}
}

// ResetStats zeroes the counters
func (p *Planner) ResetStats() {
	p.linked.Store(0)
	p.fallback.Store(0)
	p.degraded.Store(0)
	p.warnings.Store(0)
}

func (p *Planner) forceScale(current, target geom.Vector3) float64 {
	d := current.DistanceTo(target)
	return geom.Clamp(d/p.cfg.ForceDistanceScale, p.cfg.ForceMin, p.cfg.ForceMax)
}

// withLocalAvoidance pushes a heading away from agents inside the degraded
// margin
func (p *Planner) withLocalAvoidance(heading, current geom.Vector3, nearby []swarm.Neighbor) geom.Vector3 {
	var push geom.Vector3
	for _, n := range nearby {
		if n.Distance >= p.cfg.DegradedMargin || n.Distance <= p.cfg.MinDistance {
			continue
		}
		away := current.Sub(n.Position).Normalize()
		push = push.Add(away.Scale(p.cfg.DegradedMargin - n.Distance))
	}
	if push.IsZero() {
		return heading
	}
	return heading.Add(push.Scale(p.cfg.DegradedWeight)).Normalize()
}
