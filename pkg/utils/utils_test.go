package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/picogrid/swarm-nav/pkg/simulation"
)

func writeDefinition(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefinitionFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverSimulationsIn(t *testing.T) {
	root := t.TempDir()
	writeDefinition(t, filepath.Join(root, "waypoint-tour"), "name: waypoint-tour\ndescription: tour\n")
	writeDefinition(t, filepath.Join(root, "formation-show"), "name: formation-show\ndescription: show\n")
	writeDefinition(t, filepath.Join(root, "broken"), "name: [\n")

	infos, err := DiscoverSimulationsIn(root)
	if err != nil {
		t.Fatalf("Discovery failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 simulations, got %d", len(infos))
	}
	if infos[0].Definition.Name != "formation-show" {
		t.Errorf("Expected sorted results, got %s first", infos[0].Definition.Name)
	}
	if infos[1].Path != filepath.Join(root, "waypoint-tour") {
		t.Errorf("Unexpected path %s", infos[1].Path)
	}

	if _, ok := FindSimulation(infos, "waypoint-tour"); !ok {
		t.Error("Expected to find waypoint-tour")
	}
	if _, ok := FindSimulation(infos, "missing"); ok {
		t.Error("Expected missing simulation to be absent")
	}
}

func TestPromptsSkipped(t *testing.T) {
	t.Setenv(SkipPromptsEnv, "true")
	t.Setenv("SWARM_AGENT_COUNT", "7")

	params := []simulation.Parameter{
		{Name: "agent_count", Type: simulation.TypeInteger, Default: 10, Min: 1, Max: 50},
		{Name: "packet_loss", Type: simulation.TypeFloat, Default: 0.01},
		{Name: "formations", Type: simulation.TypeList, Default: []interface{}{"v", "line"}},
		{Name: "pattern", Type: simulation.TypeString},
	}

	values, err := PromptForParameters(params)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if values["agent_count"] != 7 {
		t.Errorf("Expected agent_count 7 from the environment, got %v", values["agent_count"])
	}
	if values["packet_loss"] != 0.01 {
		t.Errorf("Expected default packet_loss 0.01, got %v", values["packet_loss"])
	}
	if got, ok := values["formations"].([]string); !ok || len(got) != 2 {
		t.Errorf("Expected two formations, got %v", values["formations"])
	}
	if _, ok := values["pattern"]; ok {
		t.Error("Expected optional parameter without default to be omitted")
	}
}

func TestPromptsSkippedRequiresValues(t *testing.T) {
	t.Setenv(SkipPromptsEnv, "true")

	params := []simulation.Parameter{{Name: "seed", Type: simulation.TypeInteger, Required: true}}
	if _, err := PromptForParameters(params); err == nil {
		t.Error("Expected error for required parameter without a value")
	}

	t.Setenv("SWARM_SEED", "200")
	bounded := []simulation.Parameter{{Name: "seed", Type: simulation.TypeInteger, Max: 100}}
	if _, err := PromptForParameters(bounded); err == nil {
		t.Error("Expected range error for out-of-bounds environment value")
	}
}
