package simulation

import (
	"fmt"
	"io"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/mission"
	"github.com/picogrid/swarm-nav/pkg/report"
)

// PrintSummary writes the end-of-run agent table and mission counters
func PrintSummary(w io.Writer, t mission.Telemetry) {
	logger.LogSection(w, "Mission Summary")
	logger.LogKeyValue(w, "Run ID", t.RunID)
	logger.LogKeyValue(w, "Phase", t.Phase)
	logger.LogKeyValue(w, "Elapsed", fmt.Sprintf("%.1fs", t.Elapsed))
	if t.Formation != "" {
		logger.LogKeyValue(w, "Formation", fmt.Sprintf("%s (quality %.2f)", t.Formation, t.Quality))
	}
	if len(t.Waypoints) > 0 {
		reached := 0
		for _, wp := range t.Waypoints {
			if wp.Reached {
				reached++
			}
		}
		logger.LogKeyValue(w, "Waypoints", fmt.Sprintf("%d/%d reached, %d timing violation(s)", reached, len(t.Waypoints), t.TimingViolations))
	}
	logger.LogKeyValue(w, "Link", fmt.Sprintf("%d handshakes, %.1f%% ok", t.Link.Requests, t.Link.SuccessRate()*100))
	logger.LogKeyValue(w, "Plans", fmt.Sprintf("%d linked, %d fallback, %d degraded", t.Planner.Linked, t.Planner.Fallback, t.Planner.Degraded))
	_, _ = fmt.Fprintln(w)

	table := logger.NewTable("ID", "STATE", "POSITION", "TO TARGET", "AUTONOMOUS", "RECOVERIES")
	for _, a := range t.Agents {
		table.AddRow(
			fmt.Sprintf("%d", a.ID),
			a.State,
			a.Position.String(),
			fmt.Sprintf("%.2f", a.Distance),
			fmt.Sprintf("%t", a.Autonomous),
			fmt.Sprintf("%d", a.Recoveries),
		)
	}
	table.Print(w)
}

// SaveReport writes the after-action report when the configuration asks
// for one and returns its path
func SaveReport(rt *Runtime, t mission.Telemetry) (string, error) {
	if rt == nil || rt.Config == nil || !rt.Config.Logging.EnableAAR {
		return "", nil
	}

	cfg := report.Config{
		OutputDir:     rt.Config.Logging.AAROutputPath,
		Format:        rt.Config.Logging.AARFormat,
		IncludeEvents: true,
	}
	var recorded []events.Event
	if rt.Recorder != nil {
		recorded = rt.Recorder.Events()
	}
	path, err := report.Build(t, recorded, cfg).Save(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}
