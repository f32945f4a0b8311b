package planner

import (
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/swarm"
)

var probeDirections = []geom.Vector3{geom.Right, geom.Left, geom.Forward, geom.Back}

// SafeDirection combines goal attraction, predictive repulsion and the
// density heuristic into one unit vector. It also returns the danger level.
// Without a neighbor inside the safety radius the answer is exactly the
// normalized attraction.
func (p *Planner) SafeDirection(current, target geom.Vector3, neighbors []swarm.Neighbor) (geom.Vector3, float64) {
	attractive := target.Sub(current).Normalize()

	repulsive, threats := p.Repulsion(current, attractive, neighbors)
	danger := p.Danger(neighbors)
	bias := p.heuristic(current, neighbors, threats)

	if repulsive.IsZero() && bias.IsZero() {
		return attractive, danger
	}

	avoidanceWeight := geom.Clamp01(danger / p.cfg.DangerRange)
	attractiveWeight := 1 - avoidanceWeight

	combined := attractive.Scale(attractiveWeight).
		Add(repulsive.Normalize().Scale(avoidanceWeight)).
		Add(bias.Scale(p.cfg.HeuristicWeight))

	if combined.IsZero() {
		return attractive, danger
	}
	return combined.Normalize(), danger
}

// Repulsion sums the push away from every neighbor inside the safety radius,
// aimed away from where the neighbor will be after the look-ahead. A push
// that points straight back along the heading gets a sideways component so
// head-on pairs do not stall. It also returns the number of neighbors that
// contributed.
func (p *Planner) Repulsion(current, heading geom.Vector3, neighbors []swarm.Neighbor) (geom.Vector3, int) {
	var total geom.Vector3
	threats := 0

	for _, n := range neighbors {
		if n.Distance >= p.cfg.SafetyRadius || n.Distance <= p.cfg.MinDistance {
			continue
		}
		predicted := n.Position.Add(n.Velocity.Scale(p.cfg.Lookahead))
		away := current.Sub(predicted).Normalize()
		magnitude := p.cfg.AvoidanceGain * (p.cfg.SafetyRadius - n.Distance) / p.cfg.SafetyRadius
		total = total.Add(away.Scale(magnitude))
		threats++
	}

	if total.IsZero() || heading.IsZero() {
		return total, threats
	}

	const headOn = -0.99
	if total.Normalize().Dot(heading) < headOn {
		side := geom.Up.Cross(heading).Normalize()
		total = total.Add(side.Scale(total.Length() * p.cfg.SidestepGain))
	}
	return total, threats
}

// Danger scores how crowded and fast the neighborhood is: every neighbor
// inside the danger range adds its proximity plus a share of its speed.
func (p *Planner) Danger(neighbors []swarm.Neighbor) float64 {
	var total float64
	for _, n := range neighbors {
		if n.Distance >= p.cfg.DangerRange {
			continue
		}
		proximity := (p.cfg.DangerRange - n.Distance) / p.cfg.DangerRange
		speed := n.Velocity.Length() / p.cfg.MaxExpectedSpeed
		total += proximity + p.cfg.SpeedDangerWeight*speed
	}
	return total
}

// heuristic nudges a crowded agent towards the emptiest cardinal direction.
// It is a density probe, not a graph search.
func (p *Planner) heuristic(current geom.Vector3, neighbors []swarm.Neighbor, threats int) geom.Vector3 {
	density := float64(threats) / p.cfg.DensityNorm
	if density <= p.cfg.DensityThreshold {
		return geom.Zero
	}

	best := geom.Zero
	fewest := -1
	for _, dir := range probeDirections {
		probe := current.Add(dir.Scale(p.cfg.ProbeDistance))
		count := 0
		for _, n := range neighbors {
			if probe.DistanceTo(n.Position) < p.cfg.ProbeRadius {
				count++
			}
		}
		if fewest < 0 || count < fewest {
			fewest = count
			best = dir
		}
	}
	return best.Scale(p.cfg.HeuristicBias)
}
