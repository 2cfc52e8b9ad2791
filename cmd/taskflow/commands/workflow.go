package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/workflows"
)

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Aliases: []string{"wf"},
	Short:   "Register and list workflow definitions",
}

var workflowCreateCmd = &cobra.Command{
	Use:   "create --name <name> --trigger <trigger> --action <action>...",
	Short: "Register a workflow",
	Long: `Register a workflow definition. Repeat --action for each step; pass
--action "" alone to register a workflow with no actions.`,
	RunE: runWorkflowCreate,
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	RunE:  runWorkflowList,
}

var workflowGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowGet,
}

func init() {
	workflowCreateCmd.Flags().String("name", "", "Workflow name")
	workflowCreateCmd.Flags().String("trigger", "", "Event that starts the workflow")
	workflowCreateCmd.Flags().StringArray("action", nil, "Action step (repeatable)")
	workflowCreateCmd.Flags().Bool("json", false, "Output as JSON")

	workflowListCmd.Flags().Bool("json", false, "Output as JSON")
	workflowGetCmd.Flags().Bool("json", false, "Output as JSON")

	workflowCmd.AddCommand(workflowCreateCmd)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowGetCmd)
	rootCmd.AddCommand(workflowCmd)
}

func runWorkflowCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	trigger, _ := cmd.Flags().GetString("trigger")
	asJSON, _ := cmd.Flags().GetBool("json")

	def := workflows.Definition{Name: name, Trigger: trigger}
	if cmd.Flags().Changed("action") {
		raw, _ := cmd.Flags().GetStringArray("action")
		actions := make([]string, 0, len(raw))
		for _, a := range raw {
			if a != "" {
				actions = append(actions, a)
			}
		}
		def.Actions = &actions
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	resp, err := c.CreateWorkflow(ctx, def)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, resp)
	}
	fmt.Fprintf(out, "%s (id %d)\n", resp.Message, resp.Workflow.ID)
	return nil
}

func runWorkflowList(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	list, err := c.ListWorkflows(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, list)
	}
	if list.Count == 0 {
		fmt.Fprintln(out, "No workflows registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTRIGGER\tACTIONS\tENABLED")
	for _, wf := range list.Workflows {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\n", wf.ID, wf.Name, wf.Trigger, len(wf.Actions), wf.Enabled)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n%d workflow(s)\n", list.Count)
	return nil
}

func runWorkflowGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	wf, err := c.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, wf)
	}
	fmt.Fprintf(out, "Workflow: #%d %s\n", wf.ID, wf.Name)
	fmt.Fprintf(out, "Trigger:  %s\n", wf.Trigger)
	fmt.Fprintf(out, "Enabled:  %t\n", wf.Enabled)
	fmt.Fprintf(out, "Created:  %s\n", formatTime(wf.CreatedAt))
	if len(wf.Actions) == 0 {
		fmt.Fprintln(out, "Actions:  (none)")
	} else {
		fmt.Fprintf(out, "Actions:  %s\n", strings.Join(wf.Actions, " → "))
	}
	return nil
}
