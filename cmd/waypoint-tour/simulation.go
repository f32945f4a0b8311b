package waypointtour

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/picogrid/swarm-nav/pkg/config"
	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/mission"
	"github.com/picogrid/swarm-nav/pkg/simulation"
)

// Name is the registry key of this scenario
const Name = "waypoint-tour"

// Settings are the tour parameters that are not part of the shared
// configuration
type Settings struct {
	Formation formation.Shape
	RouteSize float64
	T1        float64
	T2        float64
}

// DefaultSettings matches the defaults in simulation.yaml
func DefaultSettings() Settings {
	return Settings{
		Formation: formation.ShapeLine,
		RouteSize: 30,
		T1:        25,
		T2:        3,
	}
}

// WaypointTour flies the swarm through timed waypoints and lands it at the
// landing target
type WaypointTour struct {
	mu       sync.Mutex
	settings Settings
	route    []mission.Waypoint
	cancel   context.CancelFunc
	stop     bool
}

// New creates the scenario
func New() simulation.Simulation {
	return &WaypointTour{settings: DefaultSettings()}
}

// Name returns the simulation name
func (s *WaypointTour) Name() string { return Name }

// Description returns the simulation description
func (s *WaypointTour) Description() string {
	return "Take off, fly timed waypoints with partial-consensus arrival, then land at the landing target"
}

// Configure applies the parameters. Waypoints listed in the configuration
// win over the generated square route.
func (s *WaypointTour) Configure(cfg *config.Config, params map[string]interface{}) error {
	config.MergeWithCLIOverrides(cfg, params)

	settings, err := ParseSettings(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	route := cfg.Navigation.Waypoints
	if len(route) == 0 {
		route = SquareRoute(settings.RouteSize, cfg.Swarm.Altitude, settings.T1, settings.T2)
		cfg.Navigation.Waypoints = route
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.route = route
	s.mu.Unlock()
	return nil
}

// ParseSettings reads the tour parameters, keeping defaults for anything
// missing
func ParseSettings(params map[string]interface{}) (Settings, error) {
	settings := DefaultSettings()

	if v, ok := params["formation"]; ok {
		name := fmt.Sprintf("%v", v)
		shape, err := formation.ParseShape(name)
		if err != nil {
			return settings, err
		}
		switch shape {
		case formation.ShapeNone, formation.ShapeV, formation.ShapeArrow, formation.ShapeLine, formation.ShapeVertical:
			settings.Formation = shape
		default:
			return settings, fmt.Errorf("%s cannot be flown as a formation", shape)
		}
	}

	floats := []struct {
		key string
		dst *float64
		min float64
	}{
		{"route_size", &settings.RouteSize, 1},
		{"t1", &settings.T1, 0},
		{"t2", &settings.T2, 0},
	}
	for _, f := range floats {
		v, ok := params[f.key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			*f.dst = val
		case int:
			*f.dst = float64(val)
		default:
			return settings, fmt.Errorf("%s must be a number", f.key)
		}
		if *f.dst < f.min {
			return settings, fmt.Errorf("%s must be at least %g", f.key, f.min)
		}
	}
	if settings.T1 <= 0 {
		return settings, fmt.Errorf("t1 must be positive")
	}
	return settings, nil
}

// Run executes the scenario
func (s *WaypointTour) Run(ctx context.Context, rt *simulation.Runtime) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stop {
		s.mu.Unlock()
		return nil
	}
	s.cancel = cancel
	settings, route := s.settings, s.route
	s.mu.Unlock()

	log := logger.OrDefault(rt.Log).WithPrefix(Name)
	cfg := rt.Config
	if len(route) == 0 {
		route = cfg.Navigation.Waypoints
	}

	runner, err := simulation.NewRunner(rt)
	if err != nil {
		return err
	}

	log.Infof("%s Taking off with %d agents", logger.IconRocket, cfg.Swarm.AgentCount)
	if err := runner.TakeOff(ctx); err != nil {
		return s.finish(err)
	}

	if settings.Formation != formation.ShapeNone {
		f := formation.New(settings.Formation, cfg.Swarm.AgentCount, cfg.Swarm.Altitude, cfg.Swarm.Spacing)
		log.Infof("%s Assembling %s formation", logger.IconTarget, settings.Formation)
		if err := runner.Form(ctx, f); err != nil {
			return s.finish(err)
		}
	}

	bar := logger.NewProgressBar(len(route), "Waypoints")
	runner.OnProgress(1, func(t mission.Telemetry) {
		bar.Update(Completed(t))
	})

	log.WithFields(map[string]interface{}{
		"waypoints":         len(route),
		"success_threshold": cfg.Navigation.SuccessThreshold,
		"comm_loss_after":   cfg.Navigation.CommLossAfter,
	}).Info(logger.IconLink + " Starting tour")
	err = runner.Tour(ctx, route)
	bar.Update(Completed(runner.Mission().Telemetry()))
	bar.Finish()
	if err != nil {
		return s.finish(err)
	}

	t := runner.Mission().Telemetry()
	if t.TimingViolations > 0 {
		log.Warnf("%s %d waypoint(s) missed their T1 budget", logger.IconClock, t.TimingViolations)
	}
	simulation.PrintSummary(os.Stdout, t)
	if path, err := simulation.SaveReport(rt, t); err != nil {
		log.Errorf("Failed to write report: %v", err)
	} else if path != "" {
		logger.Successf("Report written to %s", path)
	}
	return nil
}

// Completed counts the waypoints the tour has finished with, reached or
// not
func Completed(t mission.Telemetry) int {
	if t.CurrentWaypoint < 0 {
		if len(t.Waypoints) > 0 && t.Phase != mission.PhaseTouring.String() {
			return len(t.Waypoints)
		}
		return 0
	}
	return t.CurrentWaypoint
}

// Stop gracefully shuts down the simulation
func (s *WaypointTour) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *WaypointTour) finish(err error) error {
	s.mu.Lock()
	stopped := s.stop
	s.mu.Unlock()
	if stopped && errors.Is(err, context.Canceled) {
		logger.Info("Simulation stopped by user")
		return nil
	}
	return err
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register(Name, New); err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
	}
}
