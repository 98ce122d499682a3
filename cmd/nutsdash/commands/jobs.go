package commands

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/display"
	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/nuts/action"
	"github.com/nutsq/nutsdash/nuts/dashboard"
	"github.com/nutsq/nutsdash/nuts/unify"
	"github.com/nutsq/nutsdash/sym"
)

// JobsCmd groups job commands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: sym.Short("jobs"),
	Long: `List and act on the jobs of the nuts scheduling service.

Every job instance has exactly one status: scheduled, pending, running,
completed or failed. The same name may appear several times, e.g. scheduled
for its next run and failed from the previous one.

Examples:
  nutsdash jobs ls                          # All jobs
  nutsdash jobs ls --status failed          # Failed jobs only
  nutsdash jobs show nightly-report         # Every instance of one job
  nutsdash jobs cancel nightly-report       # Cancel the current instance
  nutsdash jobs schedule report --at 2024-01-02T03:00
  nutsdash jobs enqueue report --params 'eu 3'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsLs,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show every instance of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <name>",
	Short: "Cancel a pending, scheduled or running job",
	Long: `Cancel a job according to its status: a pending job is removed from the
queue, a scheduled job is unscheduled and a running job is asked to stop.

Without --status the first non-terminal instance of the job is cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsCancel,
}

var jobsScheduleCmd = &cobra.Command{
	Use:   "schedule <name>",
	Short: "Schedule a run of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsSchedule,
}

var jobsEnqueueCmd = &cobra.Command{
	Use:   "enqueue <name>",
	Short: "Run a job now",
	Long: `Put a job on the pending queue.

--params is split shell-style; each word that is valid JSON is sent decoded,
anything else as a string:
  --params 'eu 3 true'       -> ["eu", 3, true]
  --params '"a b" {"k":1}'   -> ["a b", {"k": 1}]`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsEnqueue,
}

func init() {
	jobsLsCmd.Flags().String("status", "", "Filter by status: "+statusList())
	jobsCancelCmd.Flags().String("status", "", "Status of the instance to cancel (default: its current status)")
	addRunAtFlags(jobsScheduleCmd)
	jobsEnqueueCmd.Flags().String("params", "", "Job parameters")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
	JobsCmd.AddCommand(jobsScheduleCmd)
	JobsCmd.AddCommand(jobsEnqueueCmd)
}

func statusList() string {
	names := make([]string, len(unify.AllStatuses))
	for i, s := range unify.AllStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func runJobsLs(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	if status != "" && status != "all" && !unify.IsValidStatus(status) {
		return &action.ValidationError{Field: "status", Value: status, Reason: "expected one of " + statusList()}
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	cur, err := dashboard.Current(cmd.Context(), s.svc.Jobs())
	if err != nil {
		return err
	}

	all := cur.Snapshot.Data
	jobs := unify.FilterByStatus(all, status)
	return output(cmd, jobs, func(w io.Writer) error {
		display.RenderJobCounts(w, unify.CountByStatus(all))
		return display.RenderJobs(w, jobs, time.Local)
	})
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	cur, err := dashboard.Current(cmd.Context(), s.svc.Jobs())
	if err != nil {
		return err
	}

	jobs := unify.Instances(cur.Snapshot.Data, args[0])
	if len(jobs) == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %q", args[0])
	}
	return output(cmd, jobs, func(w io.Writer) error {
		return display.RenderJobs(w, jobs, time.Local)
	})
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	job, err := s.svc.CancelTarget(cmd.Context(), args[0], status)
	if err != nil {
		return err
	}

	resp, err := s.svc.CancelJob(cmd.Context(), job)
	if err != nil {
		return err
	}
	return outputResult(cmd, resp)
}

func runJobsSchedule(cmd *cobra.Command, args []string) error {
	at, err := runAtFlags(cmd)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	resp, err := s.svc.ScheduleJob(cmd.Context(), args[0], at)
	if err != nil {
		return err
	}
	return outputResult(cmd, resp)
}

func runJobsEnqueue(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("params")
	params, err := action.ParseParams(raw)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	resp, err := s.svc.EnqueueJob(cmd.Context(), args[0], params)
	if err != nil {
		return err
	}
	return outputResult(cmd, resp)
}
