package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail",
	Long: `Show recent audit events, newest first: task and workflow changes and
requests rejected for a bad API key.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().String("entity", "", "Filter by entity type (task, workflow, auth)")
	auditCmd.Flags().IntP("limit", "n", 50, "Maximum number of events")
	auditCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	entity, _ := cmd.Flags().GetString("entity")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	switch audit.EntityType(entity) {
	case "", audit.EntityTask, audit.EntityWorkflow, audit.EntityAuth:
	default:
		return fmt.Errorf("invalid --entity %q (valid: task, workflow, auth)", entity)
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	list, err := c.Audit(ctx, entity, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, list)
	}
	if list.Count == 0 {
		fmt.Fprintln(out, "No audit events.")
		return nil
	}
	printAuditTable(out, list.Events)
	return nil
}

func printAuditTable(out io.Writer, events []audit.Event) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tENTITY\tID\tACTION\tDETAILS")
	for _, e := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.EntityType,
			orDash(e.EntityID),
			e.Action,
			truncateDetails(string(e.Details), 60),
		)
	}
	_ = w.Flush()
}

func truncateDetails(s string, n int) string {
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
