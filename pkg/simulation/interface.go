package simulation

import (
	"context"

	"github.com/picogrid/swarm-nav/pkg/config"
	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/logger"
)

// Runtime is what the CLI hands a scenario: the merged configuration, a
// logger and the event pipeline
type Runtime struct {
	Config   *config.Config
	Log      logger.Logger
	Events   events.Emitter
	Recorder *events.Recorder
}

// Simulation defines the interface that all scenarios must implement
type Simulation interface {
	// Name returns the name of the scenario
	Name() string

	// Description returns a brief description of what the scenario does
	Description() string

	// Configure applies the scenario parameters on top of the loaded
	// configuration
	Configure(cfg *config.Config, params map[string]interface{}) error

	// Run flies the scenario until it completes or ctx is cancelled
	Run(ctx context.Context, rt *Runtime) error

	// Stop asks a running scenario to finish
	Stop() error
}
