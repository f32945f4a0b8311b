package flight

import (
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/planner"
)

// Step advances the controller by dt seconds with the latest physics
// observation and returns the command for this tick
func (c *Controller) Step(dt float64, obs Observation) Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.position = obs.Position
	if !c.observed {
		c.anchor = obs.Position
		c.observed = true
	}

	var cmd Command
	switch c.state {
	case Grounded, Armed:
		// motors idle
	case TakingOff:
		cmd = c.stepTakeoff(obs)
	case Hovering:
		cmd = c.stepHover(obs)
	case Staging, FormationMove, FastFormationMove, NavigationMove:
		cmd = c.stepMove(obs)
	case FormationHold:
		cmd = c.stepHold(obs)
	case Landing, FastLanding:
		cmd = c.stepLanding(obs)
	}

	if c.state.tracksProgress() {
		cmd.Impulse = c.checkStuck(dt, obs.Position)
	} else {
		c.anchor = obs.Position
		c.stuckTimer = 0
	}
	return cmd
}

func (c *Controller) stepTakeoff(obs Observation) Command {
	if obs.Position.Y < c.targetHeight-c.cfg.TakeoffMargin {
		return Command{Thrust: c.cfg.ThrustForce * c.cfg.TakeoffBoost}
	}

	if !c.hasTarget {
		c.target = geom.V(obs.Position.X, c.targetHeight, obs.Position.Z)
		c.hasTarget = true
	}
	c.transition(Hovering)
	return c.stepHover(obs)
}

// stepHover holds the current target with a soft proportional pull
func (c *Controller) stepHover(obs Observation) Command {
	cmd := Command{Thrust: c.hoverThrust(obs.Position.Y)}
	if !c.hasTarget {
		return cmd
	}

	offset := c.target.Sub(obs.Position)
	d := offset.Length()
	if d > c.cfg.HoverDeadband {
		cmd.Direction = offset.Normalize()
		cmd.Force = geom.Clamp(c.cfg.HoverGain*d, c.cfg.HoverMinForce, c.cfg.MoveForce)
	}
	return cmd
}

func (c *Controller) stepMove(obs Observation) Command {
	d := obs.Position.DistanceTo(c.target)
	if d < c.cfg.arrivalThreshold(c.state) {
		c.log.WithField("distance", d).Debug("Target reached")
		c.transition(Hovering)
		return c.stepHover(obs)
	}

	result := c.plan(obs.Position)
	cmd := Command{
		Direction: result.Direction,
		Thrust:    c.hoverThrust(obs.Position.Y),
		Mode:      result.Mode,
		Planned:   true,
	}

	if c.state == FastFormationMove {
		scale := geom.Clamp(d/c.cfg.FastDistanceNorm, c.cfg.FastScaleMin, c.cfg.FastScaleMax)
		cmd.Force = c.cfg.MoveForce * scale * c.cfg.FastMultiplier
	} else {
		cmd.Force = c.cfg.MoveForce * result.ForceScale
	}
	return cmd
}

// stepHold is the precision regime: a stiff pull on the target and no
// planner
func (c *Controller) stepHold(obs Observation) Command {
	cmd := Command{Thrust: c.holdThrust(obs.Position.Y)}

	offset := c.target.Sub(obs.Position)
	e := offset.Length()
	if e > c.cfg.HoldDeadband {
		cmd.Direction = offset.Normalize()
		cmd.Force = geom.Clamp(c.cfg.HoldGain*e, c.cfg.HoldMinForce, c.cfg.MoveForce*c.cfg.HoldMaxFraction)
	}
	return cmd
}

func (c *Controller) stepLanding(obs Observation) Command {
	if obs.Position.Y <= c.cfg.TouchdownLevel {
		c.log.Info("Touchdown")
		c.transition(Grounded)
		c.hasTarget = false
		return Command{ZeroVelocity: true}
	}

	cmd := Command{Thrust: c.cfg.HoverThrust * c.cfg.LandingThrust}
	if c.state == FastLanding && c.hasTarget {
		horizontal := c.target.Sub(obs.Position).Horizontal()
		d := horizontal.Length()
		if d > c.cfg.HoverDeadband {
			cmd.Direction = horizontal.Normalize()
			cmd.Force = geom.Clamp(c.cfg.HoverGain*d, c.cfg.HoverMinForce, c.cfg.MoveForce)
		}
	}
	return cmd
}

func (c *Controller) plan(current geom.Vector3) planner.Result {
	if c.nav == nil {
		return planner.Result{
			Direction:  c.target.Sub(current).Normalize(),
			ForceScale: 1,
			Mode:       planner.ModeDegraded,
		}
	}
	if c.autonomous {
		return c.nav.PlanAutonomous(c.id, current, c.target)
	}
	return c.nav.Plan(c.id, current, c.target)
}

func (c *Controller) targetAltitude() float64 {
	if c.hasTarget {
		return c.target.Y
	}
	return c.targetHeight
}

func (c *Controller) hoverThrust(y float64) float64 {
	e := c.targetAltitude() - y
	h := c.cfg.HoverThrust
	return geom.Clamp(h+c.cfg.HoverThrustGain*e, h*c.cfg.HoverThrustMin, h*c.cfg.HoverThrustMax)
}

func (c *Controller) holdThrust(y float64) float64 {
	e := c.targetAltitude() - y
	h := c.cfg.HoverThrust
	return geom.Clamp(h+c.cfg.HoldThrustGain*e, h*c.cfg.HoldThrustMin, h*c.cfg.HoldThrustMax)
}

// checkStuck returns a recovery impulse once the agent has stayed within
// the stuck threshold of one spot for longer than the stuck duration
func (c *Controller) checkStuck(dt float64, position geom.Vector3) geom.Vector3 {
	if position.DistanceTo(c.anchor) >= c.cfg.StuckThreshold {
		c.anchor = position
		c.stuckTimer = 0
		return geom.Zero
	}

	c.stuckTimer += dt
	if c.stuckTimer <= c.cfg.StuckDuration {
		return geom.Zero
	}

	c.stuckTimer = 0
	c.recoveries++
	c.log.WithField("state", c.state.String()).Warn("Agent stuck, applying recovery impulse")

	jitter := geom.V(c.rng.Float64()*2-1, 0, c.rng.Float64()*2-1).ClampLength(1)
	return geom.Up.Scale(c.cfg.ThrustForce * c.cfg.StuckLift).
		Add(jitter.Scale(c.cfg.MoveForce * c.cfg.StuckJitter))
}
