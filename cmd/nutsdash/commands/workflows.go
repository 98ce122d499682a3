package commands

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/display"
	"github.com/nutsq/nutsdash/nuts/dashboard"
	"github.com/nutsq/nutsdash/nuts/unify"
	"github.com/nutsq/nutsdash/sym"
)

// WorkflowsCmd groups workflow commands
var WorkflowsCmd = &cobra.Command{
	Use:     "workflows",
	Aliases: []string{"wf"},
	Short:   sym.Short("workflows"),
	Long: `List and act on the workflows of the nuts scheduling service.

A workflow without a run in progress is listed as "scheduled" with its next
run time; a materialized run shows its status and job progress.

Examples:
  nutsdash workflows ls
  nutsdash workflows show etl
  nutsdash workflows trigger etl
  nutsdash workflows cancel etl             # Drop the next scheduled run
  nutsdash workflows reschedule etl --at 2024-01-02T03:00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var workflowsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List workflows",
	Args:  cobra.NoArgs,
	RunE:  runWorkflowsLs,
}

var workflowsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a workflow and its jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsShow,
}

var workflowsTriggerCmd = &cobra.Command{
	Use:   "trigger <name>",
	Short: "Run a workflow now",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsTrigger,
}

var workflowsCancelCmd = &cobra.Command{
	Use:   "cancel <name>",
	Short: "Cancel the next scheduled run of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsCancel,
}

var workflowsRescheduleCmd = &cobra.Command{
	Use:   "reschedule <name>",
	Short: "Move the next run of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsReschedule,
}

func init() {
	addRunAtFlags(workflowsRescheduleCmd)

	WorkflowsCmd.AddCommand(workflowsLsCmd)
	WorkflowsCmd.AddCommand(workflowsShowCmd)
	WorkflowsCmd.AddCommand(workflowsTriggerCmd)
	WorkflowsCmd.AddCommand(workflowsCancelCmd)
	WorkflowsCmd.AddCommand(workflowsRescheduleCmd)
}

func runWorkflowsLs(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	cur, err := dashboard.Current(cmd.Context(), s.svc.Workflows())
	if err != nil {
		return err
	}

	summaries := unify.Summarize(cur.Snapshot.Data)
	return output(cmd, summaries, func(w io.Writer) error {
		return display.RenderWorkflows(w, summaries, time.Local)
	})
}

func runWorkflowsShow(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	cur, err := dashboard.Current(cmd.Context(), s.svc.Workflow(args[0]))
	if err != nil {
		return err
	}

	ws := cur.Snapshot.Data
	return output(cmd, ws, func(w io.Writer) error {
		return display.RenderWorkflow(w, ws, time.Local)
	})
}

func runWorkflowsTrigger(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	resp, err := s.svc.TriggerWorkflow(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return outputResult(cmd, resp)
}

func runWorkflowsCancel(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	resp, err := s.svc.CancelScheduledWorkflow(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return outputResult(cmd, resp)
}

func runWorkflowsReschedule(cmd *cobra.Command, args []string) error {
	at, err := runAtFlags(cmd)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	resp, err := s.svc.RescheduleWorkflow(cmd.Context(), args[0], at)
	if err != nil {
		return err
	}
	return outputResult(cmd, resp)
}
