package mission

import (
	"fmt"
	"math"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/geom"
)

// tour is the progress of a multi-waypoint navigation run
type tour struct {
	waypoints  []Waypoint
	offsets    []geom.Vector3
	index      int
	elapsed    float64
	holding    bool
	held       float64
	startedAt  float64
	active     bool
	violations []int
}

// StartTour flies the swarm through waypoints in order. Each agent keeps a
// fixed offset from the waypoint, captured once here, so the swarm shape
// survives the whole tour. After the last waypoint the swarm lands at the
// configured landing target.
func (c *Controller) StartTour(waypoints []Waypoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(waypoints) == 0 {
		return fmt.Errorf("start tour: %w", ErrNoWaypoints)
	}
	if err := c.requireIdle("tour"); err != nil {
		return err
	}

	wps := make([]Waypoint, len(waypoints))
	for i, wp := range waypoints {
		if err := wp.Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
		wps[i] = NewWaypoint(wp.Position, wp.T1, wp.T2)
	}

	c.seq = nil
	c.tour = &tour{
		waypoints: wps,
		offsets:   TourOffsets(len(c.agents), c.cfg.Spacing, c.cfg.Navigation.MinOffsetSpacing, c.cfg.Navigation.OffsetRise),
		startedAt: c.elapsed,
		active:    true,
	}
	c.setPhase(PhaseTouring)
	c.log.WithField("waypoints", len(wps)).Info("Navigation tour started")
	c.startWaypoint(0)
	return nil
}

// TourOffsets spreads n agents on a line across X, at least minSpacing
// apart, each one rise higher than the previous
func TourOffsets(n int, spacing, minSpacing, rise float64) []geom.Vector3 {
	s := math.Max(spacing, minSpacing)
	out := make([]geom.Vector3, n)
	for i := range out {
		out[i] = geom.V(-float64(n-1)*s/2+float64(i)*s, float64(i)*rise, 0)
	}
	return out
}

func (c *Controller) startWaypoint(index int) {
	t := c.tour
	t.index = index
	t.elapsed = 0
	t.held = 0
	t.holding = false

	center := t.waypoints[index].Position
	for i, a := range c.agents {
		c.reject(a.StartNavigationMove(center.Add(t.offsets[i])))
	}
	c.log.WithFields(map[string]interface{}{
		"waypoint": index,
		"position": center.String(),
	}).Info("Heading to waypoint")
}

// updateTour checks the current waypoint once per tick. A waypoint is
// reached when enough of the swarm is within tolerance of its slot; when
// T1 runs out first the tour moves on anyway and records a timing
// violation.
func (c *Controller) updateTour(dt float64) {
	t := c.tour
	if !t.active {
		return
	}

	after := c.cfg.Navigation.CommLossAfter
	if after > 0 && c.state.CommActive() && c.elapsed-t.startedAt >= after {
		c.triggerCommLoss("scheduled")
	}

	t.elapsed += dt
	wp := &t.waypoints[t.index]

	if !t.holding {
		fraction := c.arrivalFraction(wp.Position, t.offsets)
		switch {
		case fraction >= c.cfg.Navigation.SuccessThreshold:
			c.reachWaypoint(fraction, false)
		case t.elapsed >= wp.T1:
			c.reachWaypoint(fraction, true)
		}
		return
	}

	t.held += dt
	if t.held < wp.T2 {
		return
	}

	if t.index+1 < len(t.waypoints) {
		c.startWaypoint(t.index + 1)
		return
	}
	t.active = false
	c.log.Info("Tour complete, starting final approach")
	c.startFinalApproach(t.offsets)
}

// ArrivalFraction is the share of agents within tolerance of their slot
// around center
func (c *Controller) ArrivalFraction(center geom.Vector3) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	offsets := TourOffsets(len(c.agents), c.cfg.Spacing, c.cfg.Navigation.MinOffsetSpacing, c.cfg.Navigation.OffsetRise)
	if c.tour != nil {
		offsets = c.tour.offsets
	}
	return c.arrivalFraction(center, offsets)
}

func (c *Controller) arrivalFraction(center geom.Vector3, offsets []geom.Vector3) float64 {
	agents := c.state.Agents()
	if len(agents) == 0 {
		return 0
	}
	within := 0
	for i, a := range agents {
		if a.Position.DistanceTo(center.Add(offsets[i])) <= c.cfg.Navigation.Tolerance {
			within++
		}
	}
	return float64(within) / float64(len(agents))
}

func (c *Controller) reachWaypoint(fraction float64, timedOut bool) {
	t := c.tour
	wp := &t.waypoints[t.index]
	t.holding = true
	t.held = 0
	c.lockAll()

	fields := map[string]interface{}{
		"waypoint": t.index,
		"fraction": fraction,
		"elapsed":  t.elapsed,
	}

	if timedOut {
		c.timingViolations++
		t.violations = append(t.violations, t.index)
		c.log.WithFields(fields).Warn("Waypoint T1 exceeded, moving on")
		c.emitter.Emit(events.New(events.KindTimingViolation, fmt.Sprintf("Waypoint %d not reached within T1", t.index)).
			WithSeverity(events.SeverityWarning).
			WithDetail("waypoint", t.index).
			WithDetail("fraction", fraction).
			WithDetail("t1", wp.T1))
		return
	}

	wp.Reached = true
	wp.ReachedAt = c.elapsed
	c.log.WithFields(fields).Info("Waypoint reached")
	c.emitter.Emit(events.New(events.KindWaypointReached, fmt.Sprintf("Waypoint %d reached", t.index)).
		WithDetail("waypoint", t.index).
		WithDetail("fraction", fraction).
		WithDetail("elapsed", t.elapsed))
}

// startFinalApproach flies the swarm over the landing target at flight
// altitude, then drops every agent onto its landing slot
func (c *Controller) startFinalApproach(offsets []geom.Vector3) {
	land := c.cfg.Navigation.LandingTarget
	tm := c.cfg.Timing
	c.setPhase(PhaseFinalApproach)

	seq := newSequence("final approach")
	seq.then(0, "approach", func() {
		for i, a := range c.agents {
			a.Unlock()
			p := geom.V(land.X+offsets[i].X, c.cfg.Altitude, land.Z+offsets[i].Z)
			c.reject(a.StartNavigationMove(p))
		}
	})
	seq.then(tm.FinalApproachWait, "descend", func() {
		c.landed = c.groundedCount()
		c.setPhase(PhaseLanding)
		for i, a := range c.agents {
			a.Unlock()
			p := geom.V(land.X+offsets[i].X, c.cfg.Navigation.LandingHeight, land.Z+offsets[i].Z)
			c.reject(a.FastLand(p))
		}
	})
	seq.then(tm.TouchdownWait, "touchdown", func() {
		for _, a := range c.agents {
			if a.State().Airborne() {
				c.log.WithField("agent", a.ID()).Warn("Agent still airborne after touchdown wait")
			}
		}
	})
	c.seq = seq
}
