package mission

import (
	"errors"
	"fmt"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
)

// Form generates a parametric formation for the whole swarm and starts the
// assembly sequence
func (c *Controller) Form(shape formation.Shape) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch shape {
	case formation.ShapeV, formation.ShapeArrow, formation.ShapeLine, formation.ShapeVertical:
	default:
		return fmt.Errorf("form %s: %w", shape, ErrUnsupportedShape)
	}
	f := formation.New(shape, len(c.agents), c.cfg.Altitude, c.cfg.Spacing)
	return c.applyFormation(f)
}

// FormCustom maps the swarm onto an arbitrary point set at flight altitude
func (c *Controller) FormCustom(points []geom.Vector3) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := formation.Formation{
		Shape:     formation.ShapeCustom,
		Positions: formation.Custom(points, len(c.agents), c.cfg.Altitude),
	}
	return c.applyFormation(f)
}

// ApplyFormation assembles a prepared formation. The slot count must match
// the agent count; otherwise nothing is changed.
func (c *Controller) ApplyFormation(f formation.Formation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyFormation(f.Clone())
}

func (c *Controller) applyFormation(f formation.Formation) error {
	if err := c.requireIdle("formation"); err != nil {
		return err
	}

	n := len(c.agents)
	switch {
	case f.Len() < n:
		c.log.WithFields(map[string]interface{}{
			"slots":  f.Len(),
			"agents": n,
		}).Error("Not enough formation slots")
		return fmt.Errorf("%s formation with %d slots for %d agents: %w", f.Shape, f.Len(), n, ErrInsufficientSlots)
	case f.Len() > n:
		return fmt.Errorf("%s formation with %d slots for %d agents: %w", f.Shape, f.Len(), n, ErrSlotMismatch)
	}

	var violation formation.Violation
	if err := formation.Validate(f.Positions, c.cfg.MinSlotDistance); errors.As(err, &violation) {
		c.log.WithFields(map[string]interface{}{
			"a":        violation.I,
			"b":        violation.J,
			"distance": violation.Distance,
		}).Warn("Formation slots are tightly packed")
	}

	c.state.Formations().Store(f)
	c.seq = c.formationSequence(f)
	c.setPhase(PhaseForming)

	c.log.WithFields(map[string]interface{}{
		"shape":  f.Shape.String(),
		"agents": n,
	}).Info("Formation started")
	c.emitter.Emit(events.New(events.KindFormationChanged, "Formation "+f.Shape.String()).
		WithDetail("shape", f.Shape.String()).
		WithDetail("agents", n).
		WithDetail("center", f.Center()))
	return nil
}

// formationSequence stages the swarm on a circle around the formation,
// hands out slots in visiting order, locks everyone and holds. Vertical
// columns skip staging.
func (c *Controller) formationSequence(f formation.Formation) *sequence {
	t := c.cfg.Timing
	seq := newSequence("formation " + f.Shape.String())

	slotStagger := t.SlotStagger
	if f.Shape == formation.ShapeVertical {
		slotStagger = t.ColumnStagger
	} else {
		staging := formation.CircularStaging(f.Positions, len(c.agents), c.cfg.StagingRadius)
		for i, a := range c.agents {
			a := a
			wait := t.StagingStagger
			if i == 0 {
				wait = 0
			}
			p := staging[i]
			seq.then(wait, "staging", func() {
				a.SetStaging(p)
				_ = c.state.SetStaging(a.ID(), p)
				c.reject(a.MoveToStaging())
			})
		}
		seq.pause(t.StagingWait, "staging settle")
	}

	for n, idx := range formation.VisitOrder(f.Shape, len(c.agents)) {
		wait := slotStagger
		if n == 0 {
			wait = 0
		}
		a, p := c.agents[idx], f.Positions[idx]
		seq.then(wait, "slot", func() { c.reject(a.StartFormationMove(p)) })
	}

	seq.then(t.FormationWait, "lock", func() {
		c.state.ClearStaging()
		c.lockAll()
		c.setPhase(PhaseHolding)
		c.log.WithFields(map[string]interface{}{
			"shape":   f.Shape.String(),
			"quality": formation.Quality(c.state.Positions(), f.Positions),
		}).Info("Formation locked")
	})
	seq.then(t.FormationHold, "hold", func() {
		c.setPhase(PhaseAirborne)
	})
	return seq
}

func (c *Controller) lockAll() {
	for _, a := range c.agents {
		c.reject(a.Lock())
	}
}

func (c *Controller) requireIdle(action string) error {
	switch {
	case c.phase.idle():
		return nil
	case c.phase == PhaseGrounded || c.phase == PhaseTakingOff:
		return fmt.Errorf("%s while %s: %w", action, c.phase, ErrNotAirborne)
	default:
		return fmt.Errorf("%s while %s: %w", action, c.phase, ErrBusy)
	}
}
