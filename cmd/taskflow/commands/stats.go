package commands

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/api"
	"github.com/marcus/taskflow/internal/stats"
	"github.com/marcus/taskflow/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show automation statistics",
	Long: `Display statistics for the tasks on a running server: counts by status,
team and priority, the share of tasks that were auto-assigned and the
estimated time saved.

Use --history N to list the last N stored snapshots instead.
Use --json for machine-readable output.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.Flags().Int("history", 0, "Show the last N stored snapshots")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	history, _ := cmd.Flags().GetInt("history")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	if history > 0 {
		h, err := c.StatsHistory(ctx, history)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(out, h)
		}
		renderStatsHistory(out, h)
		return nil
	}

	r, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, r)
	}
	renderStatsHuman(out, r)
	return nil
}

func renderStatsHuman(out io.Writer, r stats.Report) {
	st := ui.NewStyles()

	fmt.Fprintln(out, st.Title.Render("Taskflow Stats"))

	fmt.Fprintln(out, st.Highlight.Render("Tasks"))
	fmt.Fprintf(out, "  Total:           %s\n", st.Value.Render(strconv.Itoa(r.TotalTasks)))
	fmt.Fprintf(out, "  Auto-assigned:   %s (%s)\n",
		st.Value.Render(strconv.Itoa(r.AutoAssignedTasks)), st.StatusOK.Render(r.AutomationRate))
	fmt.Fprintln(out)

	fmt.Fprintln(out, st.Highlight.Render("Impact"))
	fmt.Fprintf(out, "  Time saved:      %s\n", r.EstimatedTimeSaved)
	fmt.Fprintf(out, "  Error reduction: %s\n", r.ErrorReduction)
	fmt.Fprintln(out)

	for _, section := range []struct {
		title  string
		counts map[string]int
	}{
		{"By Status", r.TasksByStatus},
		{"By Team", r.TasksByTeam},
		{"By Priority", r.TasksByPriority},
	} {
		if len(section.counts) == 0 {
			continue
		}
		fmt.Fprintln(out, st.Highlight.Render(section.title))
		fmt.Fprintf(out, "  %s\n", joinCounts(section.counts))
		fmt.Fprintln(out)
	}
}

// joinCounts renders counts largest first, ties by name.
func joinCounts(counts map[string]int) string {
	type kv struct {
		name  string
		count int
	}
	items := make([]kv, 0, len(counts))
	for name, n := range counts {
		items = append(items, kv{name, n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].name < items[j].name
	})

	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s: %d", it.name, it.count))
	}
	return strings.Join(parts, "  ")
}

func renderStatsHistory(out io.Writer, h api.StatsHistory) {
	if h.Count == 0 {
		fmt.Fprintln(out, "No snapshots stored yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TAKEN\tTOTAL\tAUTO\tRATE\tSAVED")
	for _, s := range h.Snapshots {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			formatTime(s.TakenAt),
			s.Report.TotalTasks,
			s.Report.AutoAssignedTasks,
			s.Report.AutomationRate,
			s.Report.EstimatedTimeSaved,
		)
	}
	_ = w.Flush()
}
