package simulation

import (
	"context"
	"fmt"

	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/mission"
)

// settle is extra simulated time granted on top of every sequence's own
// waits before a flow gives up
const settle = 30.0

// TakeOff lifts the swarm and waits until it is airborne
func (r *Runner) TakeOff(ctx context.Context) error {
	if err := r.mission.TakeOff(); err != nil {
		return err
	}
	t := r.timing()
	n := float64(r.agents())
	limit := n*(t.ArmStagger+t.TakeoffStagger) + t.ArmWait + t.TakeoffWait + settle
	return r.runUntilPhase(ctx, "takeoff", limit, mission.PhaseAirborne)
}

// Form assembles f and waits through the formation hold
func (r *Runner) Form(ctx context.Context, f formation.Formation) error {
	if err := r.mission.ApplyFormation(f); err != nil {
		return err
	}
	t := r.timing()
	n := float64(r.agents())
	limit := n*(t.StagingStagger+t.ColumnStagger) + t.StagingWait + t.FormationWait + t.FormationHold + settle
	return r.runUntilPhase(ctx, "formation "+f.Shape.String(), limit, mission.PhaseAirborne)
}

// Tour flies the waypoints and waits until the swarm has landed at the
// landing target
func (r *Runner) Tour(ctx context.Context, waypoints []mission.Waypoint) error {
	if err := r.mission.StartTour(waypoints); err != nil {
		return err
	}
	t := r.timing()
	limit := t.FinalApproachWait + t.TouchdownWait + float64(r.agents())*t.LandStagger + 2*settle
	for _, wp := range waypoints {
		limit += wp.T1 + wp.T2
	}
	return r.runUntilPhase(ctx, "tour", limit, mission.PhaseGrounded)
}

// Land puts the swarm down where it is
func (r *Runner) Land(ctx context.Context) error {
	if err := r.mission.Land(); err != nil {
		return err
	}
	limit := float64(r.agents())*r.timing().LandStagger + 2*settle
	return r.runUntilPhase(ctx, "landing", limit, mission.PhaseGrounded)
}

func (r *Runner) runUntilPhase(ctx context.Context, name string, limit float64, phase mission.Phase) error {
	done := func() bool { return r.mission.Phase() == phase }
	if err := r.RunUntil(ctx, done, limit); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	r.log.WithFields(map[string]interface{}{
		"flow":    name,
		"elapsed": fmt.Sprintf("%.1fs", r.mission.Elapsed()),
	}).Debug("Flow finished")
	return nil
}

func (r *Runner) timing() mission.Timing { return r.cfg.Timing }

func (r *Runner) agents() int { return r.cfg.AgentCount }
