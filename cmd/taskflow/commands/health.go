package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		h, err := c.Health(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", c.BaseURL(), err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, h)
		}
		fmt.Fprintf(out, "%s✓%s %s is %s (version %s, %s)\n",
			colorGreen, colorReset, c.BaseURL(), h.Status, h.Version, formatTime(h.Timestamp))
		return nil
	},
}

func init() {
	healthCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(healthCmd)
}
