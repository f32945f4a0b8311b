package formationshow

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
	"github.com/picogrid/swarm-nav/pkg/patterns"
	"github.com/picogrid/swarm-nav/pkg/simulation"
)

// Name is the registry key of this scenario
const Name = "formation-show"

// FormationShow flies a list of parametric formations, optionally a saved
// pattern, and lands
type FormationShow struct {
	mu     sync.Mutex
	shapes []formation.Shape
	cancel context.CancelFunc
	stop   bool
}

// New creates the scenario
func New() simulation.Simulation {
	return &FormationShow{}
}

// Name returns the simulation name
func (s *FormationShow) Name() string { return Name }

// Description returns the simulation description
func (s *FormationShow) Description() string {
	return "Take off, fly a sequence of formations with a hold after each, then land"
}

// Configure applies the parameters and resolves the formation names
func (s *FormationShow) Configure(cfg *config.Config, params map[string]interface{}) error {
	config.MergeWithCLIOverrides(cfg, params)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	shapes, err := ParseShapes(cfg.Scenario.Formations)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if len(shapes) == 0 && cfg.Scenario.Pattern == "" {
		return fmt.Errorf("configuration error: no formations or pattern to fly")
	}

	s.mu.Lock()
	s.shapes = shapes
	s.mu.Unlock()
	return nil
}

// ParseShapes resolves formation names to shapes the mission can form
// directly
func ParseShapes(names []string) ([]formation.Shape, error) {
	shapes := make([]formation.Shape, 0, len(names))
	for _, name := range names {
		shape, err := formation.ParseShape(name)
		if err != nil {
			return nil, err
		}
		switch shape {
		case formation.ShapeV, formation.ShapeArrow, formation.ShapeLine, formation.ShapeVertical:
			shapes = append(shapes, shape)
		default:
			return nil, fmt.Errorf("%s cannot be flown as a formation", shape)
		}
	}
	return shapes, nil
}

// Run executes the scenario
func (s *FormationShow) Run(ctx context.Context, rt *simulation.Runtime) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stop {
		s.mu.Unlock()
		return nil
	}
	s.cancel = cancel
	shapes := s.shapes
	s.mu.Unlock()

	log := logger.OrDefault(rt.Log).WithPrefix(Name)
	cfg := rt.Config

	runner, err := simulation.NewRunner(rt)
	if err != nil {
		return err
	}
	runner.OnProgress(5, func(t mission.Telemetry) {
		log.WithFields(map[string]interface{}{
			"phase":   t.Phase,
			"step":    t.Step,
			"quality": fmt.Sprintf("%.2f", t.Quality),
		}).Info("Progress")
	})

	takeoff := fmt.Sprintf("%s Taking off with %d agents", logger.IconRocket, cfg.Swarm.AgentCount)
	if err := logger.WithSpinner(takeoff, func() error { return runner.TakeOff(ctx) }); err != nil {
		return s.finish(err)
	}

	for i, shape := range shapes {
		f := formation.New(shape, cfg.Swarm.AgentCount, cfg.Swarm.Altitude, cfg.Swarm.Spacing)
		log.Infof("%s Formation %d/%d: %s", logger.IconTarget, i+1, len(shapes), shape)
		if err := runner.Form(ctx, f); err != nil {
			return s.finish(err)
		}
		s.logQuality(log, runner)
	}

	if cfg.Scenario.Pattern != "" {
		f, err := loadPattern(cfg.Scenario.PatternsDir, cfg.Scenario.Pattern)
		if err != nil {
			log.Warnf("Skipping pattern %s: %v", cfg.Scenario.Pattern, err)
		} else if err := runner.Form(ctx, f); err != nil {
			if !errors.Is(err, mission.ErrSlotMismatch) && !errors.Is(err, mission.ErrInsufficientSlots) {
				return s.finish(err)
			}
			log.Warnf("Skipping pattern %s: %v", cfg.Scenario.Pattern, err)
		} else {
			s.logQuality(log, runner)
		}
	}

	if cfg.Scenario.LandAtEnd {
		log.Infof("%s Landing", logger.IconLanding)
		if err := runner.Land(ctx); err != nil {
			return s.finish(err)
		}
	}

	t := runner.Mission().Telemetry()
	simulation.PrintSummary(os.Stdout, t)
	if path, err := simulation.SaveReport(rt, t); err != nil {
		log.Errorf("Failed to write report: %v", err)
	} else if path != "" {
		logger.Successf("Report written to %s", path)
	}
	return nil
}

// Stop gracefully shuts down the simulation
func (s *FormationShow) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// finish maps a cancellation triggered by Stop to a clean exit
func (s *FormationShow) finish(err error) error {
	s.mu.Lock()
	stopped := s.stop
	s.mu.Unlock()
	if stopped && errors.Is(err, context.Canceled) {
		logger.Info("Simulation stopped by user")
		return nil
	}
	return err
}

func (s *FormationShow) logQuality(log logger.Logger, runner *simulation.Runner) {
	t := runner.Mission().Telemetry()
	log.WithFields(map[string]interface{}{
		"formation": t.Formation,
		"quality":   fmt.Sprintf("%.2f", t.Quality),
	}).Info(logger.IconLock + " Formation held")
}

func loadPattern(dir, name string) (formation.Formation, error) {
	store, err := patterns.NewStore(dir)
	if err != nil {
		return formation.Formation{}, err
	}
	p, err := store.Load(name)
	if err != nil {
		return formation.Formation{}, err
	}
	return p.Formation(), nil
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register(Name, New); err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
	}
}
