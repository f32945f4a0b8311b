package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-nav/pkg/config"
	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/patterns"
)

var formationCmd = &cobra.Command{
	Use:   "formation",
	Short: "Preview, score and store formations",
}

var formationPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the slots of a formation",
	RunE:  previewFormation,
}

var formationQualityCmd = &cobra.Command{
	Use:   "quality <pattern>",
	Short: "Score a saved pattern against a generated formation",
	Args:  cobra.ExactArgs(1),
	RunE:  scoreFormation,
}

var formationSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a formation as a named pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  saveFormation,
}

var formationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved patterns",
	RunE:  listPatterns,
}

var formationDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  deletePattern,
}

func init() {
	for _, c := range []*cobra.Command{formationPreviewCmd, formationQualityCmd, formationSaveCmd} {
		c.Flags().String("shape", "v", "formation shape (v, arrow, line, vertical)")
		c.Flags().Int("agents", 0, "number of slots (default from config)")
		c.Flags().Float64("altitude", 0, "formation altitude (default from config)")
		c.Flags().Float64("spacing", 0, "slot spacing (default from config)")
		c.Flags().Float64("rotate", 0, "rotate about the vertical axis, in degrees")
		c.Flags().Float64("scale", 1, "scale about the formation center")
		c.Flags().String("points", "", "custom points as \"x,y,z;x,y,z\" instead of a shape")
	}
	formationPreviewCmd.Flags().Bool("json", false, "print the formation as JSON")
	formationSaveCmd.Flags().String("description", "", "pattern description")

	formationCmd.PersistentFlags().String("dir", "", "pattern directory (default from config)")

	formationCmd.AddCommand(formationPreviewCmd)
	formationCmd.AddCommand(formationQualityCmd)
	formationCmd.AddCommand(formationSaveCmd)
	formationCmd.AddCommand(formationListCmd)
	formationCmd.AddCommand(formationDeleteCmd)
}

func previewFormation(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := buildFormation(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}

	logger.LogSection(out, fmt.Sprintf("Formation %s (%d slots)", f.Shape, f.Len()))
	table := logger.NewTable("SLOT", "X", "Y", "Z")
	for i, p := range f.Positions {
		table.AddRow(strconv.Itoa(i), fmt.Sprintf("%.2f", p.X), fmt.Sprintf("%.2f", p.Y), fmt.Sprintf("%.2f", p.Z))
	}
	table.Print(out)

	_, _ = fmt.Fprintln(out)
	logger.LogKeyValue(out, "Center", f.Center())
	logger.LogKeyValue(out, "Min separation", fmt.Sprintf("%.2f", formation.MinSeparation(f.Positions)))
	if err := formation.Validate(f.Positions, cfg.Swarm.MinSlotDistance); err != nil {
		logger.LogKeyValue(out, "Warning", err)
	}
	if f.Shape != formation.ShapeCustom {
		order := formation.VisitOrder(f.Shape, f.Len())
		logger.LogKeyValue(out, "Visit order", fmt.Sprint(order))
	}
	return nil
}

func scoreFormation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := patternStore(cmd, cfg)
	if err != nil {
		return err
	}
	p, err := store.Load(args[0])
	if err != nil {
		return err
	}

	if agents, _ := cmd.Flags().GetInt("agents"); agents == 0 {
		_ = cmd.Flags().Set("agents", strconv.Itoa(len(p.Positions)))
	}
	target, err := buildFormation(cmd, cfg)
	if err != nil {
		return err
	}

	if target.Len() != len(p.Positions) {
		return fmt.Errorf("pattern %s has %d slots, formation has %d: %w",
			p.Name, len(p.Positions), target.Len(), formation.ErrLengthMismatch)
	}
	quality := formation.Quality(p.Positions, target.Positions)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s vs %s: quality %.1f/100\n", p.Name, target.Shape, quality)
	return nil
}

func saveFormation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := buildFormation(cmd, cfg)
	if err != nil {
		return err
	}
	store, err := patternStore(cmd, cfg)
	if err != nil {
		return err
	}

	altitude, spacing := formationGeometry(cmd, cfg)
	p := patterns.FromFormation(args[0], f, altitude, spacing)
	p.Description, _ = cmd.Flags().GetString("description")
	if err := store.Save(p); err != nil {
		return err
	}
	logger.Successf("Saved pattern %s with %d slots to %s", p.Name, len(p.Positions), store.Dir())
	return nil
}

func listPatterns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := patternStore(cmd, cfg)
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "No saved patterns")
		return nil
	}

	table := logger.NewTable("NAME", "SHAPE", "SLOTS", "ALTITUDE", "DESCRIPTION")
	for _, name := range names {
		p, err := store.Load(name)
		if err != nil {
			logger.Warnf("Skipping %s: %v", name, err)
			continue
		}
		table.AddRow(p.Name, p.Shape.String(), strconv.Itoa(len(p.Positions)), fmt.Sprintf("%.1f", p.Altitude), p.Description)
	}
	table.Print(out)
	return nil
}

func deletePattern(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := patternStore(cmd, cfg)
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	logger.Successf("Deleted pattern %s", args[0])
	return nil
}

// buildFormation generates the formation described by the shared flags
func buildFormation(cmd *cobra.Command, cfg *config.Config) (formation.Formation, error) {
	agents, _ := cmd.Flags().GetInt("agents")
	if agents <= 0 {
		agents = cfg.Swarm.AgentCount
	}
	altitude, spacing := formationGeometry(cmd, cfg)

	var f formation.Formation
	if raw, _ := cmd.Flags().GetString("points"); raw != "" {
		points, err := parsePoints(raw)
		if err != nil {
			return f, err
		}
		f = formation.Formation{Shape: formation.ShapeCustom, Positions: formation.Custom(points, agents, altitude)}
	} else {
		name, _ := cmd.Flags().GetString("shape")
		shape, err := formation.ParseShape(name)
		if err != nil {
			return f, err
		}
		if shape != formation.ShapeV && shape != formation.ShapeArrow && shape != formation.ShapeLine && shape != formation.ShapeVertical {
			return f, fmt.Errorf("%s cannot be generated from flags", shape)
		}
		f = formation.New(shape, agents, altitude, spacing)
	}

	if degrees, _ := cmd.Flags().GetFloat64("rotate"); degrees != 0 {
		f.Positions = formation.Rotate(f.Positions, degrees, f.Center(), geom.Up)
	}
	if factor, _ := cmd.Flags().GetFloat64("scale"); factor != 1 {
		if factor <= 0 {
			return f, fmt.Errorf("scale must be positive")
		}
		f.Positions = formation.Scale(f.Positions, factor, f.Center())
	}
	return f, nil
}

func formationGeometry(cmd *cobra.Command, cfg *config.Config) (altitude, spacing float64) {
	altitude, _ = cmd.Flags().GetFloat64("altitude")
	if altitude <= 0 {
		altitude = cfg.Swarm.Altitude
	}
	spacing, _ = cmd.Flags().GetFloat64("spacing")
	if spacing <= 0 {
		spacing = cfg.Swarm.Spacing
	}
	return altitude, spacing
}

func patternStore(cmd *cobra.Command, cfg *config.Config) (*patterns.Store, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Scenario.PatternsDir
	}
	return patterns.NewStore(dir)
}

// parsePoints reads "x,y,z;x,y,z" point lists
func parsePoints(raw string) ([]geom.Vector3, error) {
	var points []geom.Vector3
	for _, item := range strings.Split(raw, ";") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		parts := strings.Split(item, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("point %q must have three coordinates", item)
		}
		var coords [3]float64
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, fmt.Errorf("point %q: %w", item, err)
			}
			coords[i] = v
		}
		points = append(points, geom.V(coords[0], coords[1], coords[2]))
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no points given")
	}
	return points, nil
}
