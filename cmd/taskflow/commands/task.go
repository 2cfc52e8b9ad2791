package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/taskflow/internal/tasks"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, list and update tasks",
	Long: `Work with tasks on a running taskflow server.

New tasks are assigned to a team by type and get a due date from their
priority automatically.`,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create --title <title> --type <type> --priority <priority>",
	Short: "Create a task",
	Long: `Create a task. Type is one of bug, feature, documentation, other.
Priority is one of high, medium, low.`,
	RunE: runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, optionally filtered by status, assignee and priority.

Use --json to output as JSON for scripting.`,
	RunE: runTaskList,
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's status, assignee, description or priority",
	Long: `Update a task. Only the flags you pass are sent; everything else is
left as it is.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskUpdate,
}

func init() {
	taskCreateCmd.Flags().String("title", "", "Task title")
	taskCreateCmd.Flags().String("type", "", "Task type (bug, feature, documentation, other)")
	taskCreateCmd.Flags().String("priority", "", "Priority (high, medium, low)")
	taskCreateCmd.Flags().String("description", "", "Optional description")
	taskCreateCmd.Flags().Bool("json", false, "Output as JSON")

	taskListCmd.Flags().String("status", "", "Filter by status")
	taskListCmd.Flags().String("assigned-to", "", "Filter by assignee")
	taskListCmd.Flags().String("priority", "", "Filter by priority")
	taskListCmd.Flags().Bool("json", false, "Output as JSON")

	taskGetCmd.Flags().Bool("json", false, "Output as JSON")

	taskUpdateCmd.Flags().String("status", "", "New status")
	taskUpdateCmd.Flags().String("assigned-to", "", "New assignee")
	taskUpdateCmd.Flags().String("description", "", "New description")
	taskUpdateCmd.Flags().String("priority", "", "New priority")
	taskUpdateCmd.Flags().Bool("json", false, "Output as JSON")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	typ, _ := cmd.Flags().GetString("type")
	priority, _ := cmd.Flags().GetString("priority")
	description, _ := cmd.Flags().GetString("description")
	asJSON, _ := cmd.Flags().GetBool("json")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	resp, err := c.CreateTask(ctx, tasks.Candidate{
		Title:       title,
		Type:        typ,
		Priority:    priority,
		Description: description,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, resp)
	}
	fmt.Fprintf(out, "%s (id %d)\n", resp.Message, resp.Task.ID)
	if resp.AutomationApplied.AutoAssigned {
		fmt.Fprintf(out, "  Assigned to: %s\n", resp.Task.AssignedTo)
	}
	if resp.AutomationApplied.DueDateCalculated {
		fmt.Fprintf(out, "  Due:         %s\n", formatTime(resp.Task.DueDate))
	}
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	assignee, _ := cmd.Flags().GetString("assigned-to")
	priority, _ := cmd.Flags().GetString("priority")
	asJSON, _ := cmd.Flags().GetBool("json")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	list, err := c.ListTasks(ctx, tasks.Filter{Status: status, AssignedTo: assignee, Priority: priority})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, list)
	}
	if list.Count == 0 {
		fmt.Fprintln(out, "No tasks match the given filters.")
		return nil
	}
	printTaskTable(out, list.Tasks)
	fmt.Fprintf(out, "\n%d task(s)\n", list.Count)
	return nil
}

func printTaskTable(out io.Writer, ts []tasks.Task) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tTYPE\tPRIORITY\tSTATUS\tASSIGNED\tDUE")
	for _, t := range ts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Title,
			t.Type,
			t.Priority,
			t.Status,
			orDash(t.AssignedTo),
			formatTime(t.DueDate),
		)
	}
	_ = w.Flush()
}

func runTaskGet(cmd *cobra.Command, args []string) error {
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

	t, err := c.GetTask(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, t)
	}
	printTask(out, t)
	return nil
}

func printTask(out io.Writer, t tasks.Task) {
	fmt.Fprintf(out, "Task:        #%d %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "Type:        %s\n", t.Type)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Assigned to: %s\n", orDash(t.AssignedTo))
	fmt.Fprintf(out, "Due:         %s\n", formatTime(t.DueDate))
	fmt.Fprintf(out, "Created:     %s\n", formatTime(t.CreatedAt))
	if t.UpdatedAt != nil {
		fmt.Fprintf(out, "Updated:     %s\n", formatTime(*t.UpdatedAt))
	}
	if t.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", t.Description)
	}
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	patch := patchFromFlags(cmd.Flags())
	if patch == (tasks.Patch{}) {
		return fmt.Errorf("nothing to update: pass at least one of --status, --assigned-to, --description, --priority")
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	resp, err := c.UpdateTask(ctx, id, patch)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, resp)
	}
	fmt.Fprintln(out, resp.Message)
	printTask(out, resp.Task)
	return nil
}

// patchFromFlags includes only the flags that were explicitly set, so an
// empty value can still clear a field.
func patchFromFlags(fs *pflag.FlagSet) tasks.Patch {
	var p tasks.Patch
	if fs.Changed("status") {
		v, _ := fs.GetString("status")
		p.Status = &v
	}
	if fs.Changed("assigned-to") {
		v, _ := fs.GetString("assigned-to")
		p.AssignedTo = &v
	}
	if fs.Changed("description") {
		v, _ := fs.GetString("description")
		p.Description = &v
	}
	if fs.Changed("priority") {
		v, _ := fs.GetString("priority")
		pr := tasks.Priority(v)
		p.Priority = &pr
	}
	return p
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
