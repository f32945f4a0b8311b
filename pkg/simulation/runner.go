package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/kinematics"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/mission"
)

var (
	// ErrTimeLimit is returned when a wait runs past its simulated deadline
	ErrTimeLimit = errors.New("simulated time limit reached")
	// ErrMaxDuration is returned once the mission clock passes the
	// configured maximum
	ErrMaxDuration = errors.New("mission reached its maximum duration")
)

// minInterval is the shortest wall-clock pause between batches of ticks
const minInterval = time.Millisecond

// Runner drives a mission controller and its point-mass world with a fixed
// step. Each tick advances the controller first and the physics second.
type Runner struct {
	mission *mission.Controller
	world   *kinematics.World
	log     logger.Logger
	cfg     mission.Config

	dt          float64
	scale       float64
	maxDuration float64
	report      float64
	lastReport  float64
	onProgress  func(mission.Telemetry)
}

// NewRunner builds the world and the mission from the runtime config
func NewRunner(rt *Runtime) (*Runner, error) {
	if rt == nil || rt.Config == nil {
		return nil, fmt.Errorf("runner needs a configuration")
	}
	cfg := rt.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	emitters := []events.Emitter{rt.Events}
	if rt.Recorder != nil {
		emitters = append(emitters, rt.Recorder)
	}

	log := logger.OrDefault(rt.Log)
	world := kinematics.NewWorld(cfg.Physics)
	mcfg := cfg.ToMission()
	m, err := mission.New(mcfg, world,
		mission.WithLogger(log),
		mission.WithEmitter(events.Multi(emitters...)),
		mission.WithRand(rand.New(rand.NewSource(cfg.Simulation.Seed))),
	)
	if err != nil {
		return nil, err
	}

	return &Runner{
		mission:     m,
		world:       world,
		cfg:         mcfg,
		log:         log.WithPrefix("runner"),
		dt:          cfg.TickInterval(),
		scale:       cfg.Simulation.TimeScale,
		maxDuration: cfg.Simulation.MaxDuration,
		report:      5,
	}, nil
}

// Mission is the driven controller
func (r *Runner) Mission() *mission.Controller { return r.mission }

// World is the physics host
func (r *Runner) World() *kinematics.World { return r.world }

// OnProgress registers a callback receiving a telemetry snapshot every
// interval simulated seconds
func (r *Runner) OnProgress(interval float64, fn func(mission.Telemetry)) {
	r.report = interval
	r.onProgress = fn
}

// Step runs one tick
func (r *Runner) Step() {
	r.mission.Tick(r.dt)
	r.world.Step(r.dt)

	if r.onProgress == nil || r.report <= 0 {
		return
	}
	if now := r.mission.Elapsed(); now-r.lastReport >= r.report {
		r.lastReport = now
		r.onProgress(r.mission.Telemetry())
	}
}

// Advance runs ticks without pacing until seconds of simulated time pass
func (r *Runner) Advance(seconds float64) {
	for t := 0.0; t < seconds; t += r.dt {
		r.Step()
	}
}

// AdvanceUntil runs ticks without pacing until done reports true or limit
// simulated seconds pass
func (r *Runner) AdvanceUntil(done func() bool, limit float64) error {
	for t := 0.0; !done(); t += r.dt {
		if t >= limit {
			return fmt.Errorf("after %.1fs: %w", limit, ErrTimeLimit)
		}
		r.Step()
	}
	return nil
}

// RunUntil runs ticks paced by the wall clock and the time scale. It stops
// when done reports true, after limit simulated seconds, past the mission's
// maximum duration, or when ctx is cancelled.
func (r *Runner) RunUntil(ctx context.Context, done func() bool, limit float64) error {
	interval := time.Duration(r.dt / r.scale * float64(time.Second))
	batch := 1
	if interval < minInterval {
		if interval > 0 {
			batch = int(minInterval / interval)
		} else {
			batch = 1000
		}
		interval = minInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := r.mission.Elapsed()
	for {
		if done() {
			return nil
		}
		if r.mission.Elapsed()-start >= limit {
			return fmt.Errorf("after %.1fs: %w", limit, ErrTimeLimit)
		}
		if r.maxDuration > 0 && r.mission.Elapsed() >= r.maxDuration {
			return fmt.Errorf("at %.0fs: %w", r.maxDuration, ErrMaxDuration)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for i := 0; i < batch && !done(); i++ {
				r.Step()
			}
		}
	}
}

// Wait paces the runner for seconds of simulated time
func (r *Runner) Wait(ctx context.Context, seconds float64) error {
	err := r.RunUntil(ctx, func() bool { return false }, seconds)
	if errors.Is(err, ErrTimeLimit) {
		return nil
	}
	return err
}
