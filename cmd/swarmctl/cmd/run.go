package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-nav/pkg/config"
	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/simulation"
	"github.com/picogrid/swarm-nav/pkg/utils"

	// Import scenarios to register them
	_ "github.com/picogrid/swarm-nav/cmd/formation-show"
	_ "github.com/picogrid/swarm-nav/cmd/waypoint-tour"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Long:  `Run a scenario interactively or with specified parameters`,
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "scenario name to run")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().String("event-db", "", "SQLite file to store mission events in")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if path, _ := cmd.Flags().GetString("event-db"); path != "" {
		cfg.Logging.EventDB = path
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	simName, err := selectSimulation(cmd, simInfos)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	info, ok := utils.FindSimulation(simInfos, simName)
	if !ok {
		return fmt.Errorf("simulation definition not found for %s", simName)
	}

	paramsFile, _ := cmd.Flags().GetString("params")
	params, err := resolveParameters(info.Definition, paramsFile)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	if err := sim.Configure(cfg, params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, closeEvents, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("Received interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
		cancel()
	}()

	logger.LogSection(os.Stdout, fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx, rt); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// newRuntime wires the event pipeline: a colored console, the optional
// SQLite store and the in-memory recorder used by the report
func newRuntime(ctx context.Context, cfg *config.Config) (*simulation.Runtime, func(), error) {
	sinks := []events.Sink{events.NewConsoleSink(os.Stdout, cfg.Logging.EventLevel)}

	var store *events.SQLiteSink
	if cfg.Logging.EventDB != "" {
		var err error
		store, err = events.OpenSQLite(ctx, cfg.Logging.EventDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open event database: %w", err)
		}
		sinks = append(sinks, store)
		logger.Infof("Recording events to %s", cfg.Logging.EventDB)
	}

	log := logger.Default()
	dispatcher := events.NewDispatcher(cfg.Logging.EventBufferSize, log, sinks...)
	rt := &simulation.Runtime{
		Config:   cfg,
		Log:      log,
		Events:   dispatcher,
		Recorder: events.NewRecorder(),
	}

	closeFn := func() {
		dispatcher.Close()
		if n := dispatcher.Dropped(); n > 0 {
			logger.Warnf("%d event(s) dropped by a full buffer", n)
		}
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Errorf("Failed to close event database: %v", err)
			}
		}
	}
	return rt, closeFn, nil
}

// resolveParameters reads values from the parameters file and prompts for
// the rest
func resolveParameters(def simulation.Definition, paramsFile string) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	if paramsFile != "" {
		fromFile, err := loadParamsFile(def, paramsFile)
		if err != nil {
			return nil, err
		}
		params = fromFile
	}

	var remaining []simulation.Parameter
	for _, p := range def.Parameters {
		if _, ok := params[p.Name]; !ok {
			remaining = append(remaining, p)
		}
	}

	prompted, err := utils.PromptForParameters(remaining)
	if err != nil {
		return nil, err
	}
	for k, v := range prompted {
		params[k] = v
	}
	return params, nil
}

// loadParamsFile reads a YAML map of parameter values and runs each through
// its parameter's parser so file values follow the same rules as prompts
func loadParamsFile(def simulation.Definition, path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameters file: %w", err)
	}

	params := make(map[string]interface{}, len(raw))
	for name, value := range raw {
		p, ok := def.Parameter(name)
		if !ok {
			logger.Warnf("Ignoring unknown parameter %s", name)
			continue
		}
		parsed, err := p.Parse(paramText(value))
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = parsed
	}
	return params, nil
}

// paramText renders a YAML value the way a user would type it
func paramText(value interface{}) string {
	switch v := value.(type) {
	case []interface{}:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = fmt.Sprint(item)
		}
		return strings.Join(items, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func selectSimulation(cmd *cobra.Command, simInfos []utils.SimulationInfo) (string, error) {
	// Check if simulation is specified via flag
	simName, _ := cmd.Flags().GetString("simulation")
	if simName != "" {
		return simName, nil
	}

	if len(simInfos) == 0 {
		return "", fmt.Errorf("no simulations found")
	}

	options := make([]string, len(simInfos))
	descriptions := make(map[string]string)
	for i, info := range simInfos {
		options[i] = info.Definition.Name
		descriptions[info.Definition.Name] = info.Definition.Description
	}

	if utils.SkipPrompts() {
		return options[0], nil
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: options,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	return selected, nil
}
