package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard",
	Long: `Open a terminal dashboard that polls the server for statistics, tasks
and audit activity.

Keys: tab switches panel, j/k scroll, f cycles the priority filter,
r refreshes, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		return ui.New(c, interval).Run()
	},
}

func init() {
	dashboardCmd.Flags().Duration("interval", 5*time.Second, "Refresh interval")
	rootCmd.AddCommand(dashboardCmd)
}
