package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/simulation"
)

// DefinitionFile is the scenario description file name
const DefinitionFile = "simulation.yaml"

// SimulationInfo contains information about a discovered scenario
type SimulationInfo struct {
	Path       string
	Definition simulation.Definition
}

// DiscoverSimulations finds every scenario under the project's cmd directory
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := FindProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverSimulationsIn finds every simulation.yaml below dir, sorted by
// scenario name. Unreadable definitions are skipped with a warning.
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != DefinitionFile {
			return nil
		}

		def, err := simulation.LoadDefinition(path)
		if err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		simulations = append(simulations, SimulationInfo{
			Path:       filepath.Dir(path),
			Definition: *def,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	sort.Slice(simulations, func(i, j int) bool {
		return simulations[i].Definition.Name < simulations[j].Definition.Name
	})
	return simulations, nil
}

// FindSimulation returns the discovered scenario with the given name
func FindSimulation(infos []SimulationInfo, name string) (SimulationInfo, bool) {
	for _, info := range infos {
		if info.Definition.Name == name {
			return info, true
		}
	}
	return SimulationInfo{}, false
}

// FindProjectRoot walks up from the working directory to the go.mod
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
