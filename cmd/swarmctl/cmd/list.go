package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/simulation"
	"github.com/picogrid/swarm-nav/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenarios",
	Long:  `List all available scenarios with their descriptions`,
	RunE:  listSimulations,
}

func listSimulations(cmd *cobra.Command, _ []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	if len(simInfos) == 0 {
		fmt.Println("No simulations found")
		return nil
	}

	registered := make(map[string]bool)
	for _, name := range simulation.DefaultRegistry.List() {
		registered[name] = true
	}

	table := logger.NewTable("NAME", "VERSION", "CATEGORY", "PARAMS", "DESCRIPTION")
	for _, info := range simInfos {
		name := info.Definition.Name
		if !registered[name] {
			name += " (not built in)"
		}
		table.AddRow(
			name,
			info.Definition.Version,
			info.Definition.Category,
			fmt.Sprintf("%d", len(info.Definition.Parameters)),
			info.Definition.Description,
		)
	}
	table.Print(os.Stdout)
	return nil
}
