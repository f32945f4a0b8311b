package mission

import (
	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/link"
	"github.com/picogrid/swarm-nav/pkg/planner"
)

// AgentTelemetry is a snapshot of one agent
type AgentTelemetry struct {
	ID         int          `json:"id"`
	State      string       `json:"state"`
	Position   geom.Vector3 `json:"position"`
	Target     geom.Vector3 `json:"target"`
	Distance   float64      `json:"distance_to_target"`
	Autonomous bool         `json:"autonomous"`
	Recoveries int          `json:"stuck_recoveries"`
}

// Telemetry is a snapshot of the whole mission
type Telemetry struct {
	RunID            string           `json:"run_id"`
	Phase            string           `json:"phase"`
	Step             string           `json:"step,omitempty"`
	Elapsed          float64          `json:"elapsed"`
	CommActive       bool             `json:"comm_active"`
	CommLostAt       float64          `json:"comm_lost_at"`
	Formation        string           `json:"formation,omitempty"`
	Quality          float64          `json:"formation_quality"`
	Agents           []AgentTelemetry `json:"agents"`
	Waypoints        []Waypoint       `json:"waypoints,omitempty"`
	CurrentWaypoint  int              `json:"current_waypoint"`
	TimingViolations int              `json:"timing_violations"`
	ViolatedIndexes  []int            `json:"violated_waypoints,omitempty"`
	Planner          planner.Stats    `json:"planner"`
	Link             link.Stats       `json:"link"`
}

// Telemetry captures the current mission state
func (c *Controller) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := Telemetry{
		RunID:            c.runID,
		Phase:            c.phase.String(),
		Elapsed:          c.elapsed,
		CommActive:       c.state.CommActive(),
		CommLostAt:       c.commLostAt,
		CurrentWaypoint:  -1,
		TimingViolations: c.timingViolations,
		Planner:          c.planner.Stats(),
		Link:             c.link.Stats(),
	}
	if c.seq != nil {
		t.Step = c.seq.current()
	}

	positions := make([]geom.Vector3, 0, len(c.agents))
	for _, a := range c.agents {
		snap, err := c.state.Agent(a.ID())
		if err != nil {
			continue
		}
		target, _ := a.Target()
		positions = append(positions, snap.Position)
		t.Agents = append(t.Agents, AgentTelemetry{
			ID:         a.ID(),
			State:      a.State().String(),
			Position:   snap.Position,
			Target:     target,
			Distance:   snap.Position.DistanceTo(target),
			Autonomous: a.Autonomous(),
			Recoveries: a.Recoveries(),
		})
	}

	if f, ok := c.state.Formations().Last(); ok {
		t.Formation = f.Shape.String()
		t.Quality = formation.Quality(positions, f.Positions)
	}

	if c.tour != nil {
		t.Waypoints = make([]Waypoint, len(c.tour.waypoints))
		copy(t.Waypoints, c.tour.waypoints)
		t.ViolatedIndexes = append([]int(nil), c.tour.violations...)
		if c.tour.active {
			t.CurrentWaypoint = c.tour.index
		}
	}
	return t
}
