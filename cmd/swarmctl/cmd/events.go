package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events <db>",
	Short: "Browse mission events stored in an event database",
	Long: `Without --run, list the runs stored in the database. With --run, print
that run's events in mission-clock order and a count per kind.`,
	Args: cobra.ExactArgs(1),
	RunE: showEvents,
}

func init() {
	eventsCmd.Flags().String("run", "", "run id to show")
	eventsCmd.Flags().String("kind", "", "only show events of this kind")
}

func showEvents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := events.OpenSQLite(ctx, args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	runID, _ := cmd.Flags().GetString("run")
	if runID == "" {
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(out, "No runs recorded")
			return nil
		}
		table := logger.NewTable("RUN", "STARTED", "EVENTS", "DURATION")
		for _, r := range runs {
			table.AddRow(r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), strconv.Itoa(r.Events), fmt.Sprintf("%.1fs", r.Duration))
		}
		table.Print(out)
		return nil
	}

	kind, _ := cmd.Flags().GetString("kind")
	list, err := store.ListRun(ctx, runID, events.Kind(kind))
	if err != nil {
		return err
	}
	for _, e := range list {
		_, _ = fmt.Fprintln(out, events.Format(e))
	}

	counts, err := store.CountByKind(ctx, runID)
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	_, _ = fmt.Fprintln(out)
	for _, k := range kinds {
		logger.LogKeyValue(out, k, counts[events.Kind(k)])
	}
	return nil
}
