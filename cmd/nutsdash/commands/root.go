// Package commands implements the nutsdash command line.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/am"
	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/dashboard"
)

// RootCmd is the nutsdash command
var RootCmd = &cobra.Command{
	Use:   "nutsdash",
	Short: "Operator dashboard for the nuts job scheduler",
	Long: `nutsdash - Operator dashboard for the nuts job scheduler.

Shows pending, running, scheduled and completed jobs and workflows of a nuts
scheduling service, and lets operators cancel, schedule, enqueue and trigger
them. Views refresh in the background and right after every action.

Available commands:
  jobs      - List and act on jobs
  workflows - List and act on workflows
  watch     - Live view in the terminal
  serve     - Run the dashboard server (HTTP API + WebSocket)
  am        - Show or write configuration ("I am")
  version   - Show version information

Examples:
  nutsdash jobs ls --status running
  nutsdash jobs cancel nightly-report
  nutsdash workflows reschedule etl --at 2024-01-02T03:00
  nutsdash watch workflows
  nutsdash serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")

		jsonLogs := false
		if cfg, err := am.Load(); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	RootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	RootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, yaml")
	RootCmd.PersistentFlags().String("api-url", "", "Base URL of the nuts scheduling service (overrides api.base_url)")

	RootCmd.AddCommand(JobsCmd)
	RootCmd.AddCommand(WorkflowsCmd)
	RootCmd.AddCommand(WatchCmd)
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(AmCmd)
	RootCmd.AddCommand(VersionCmd)
}

// session is what a command needs to talk to the backend
type session struct {
	cfg    *am.Config
	client *api.Client
	svc    *dashboard.Service
}

// newSession loads configuration and builds the transport client and the
// dashboard service. Views are not started.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	baseURL := cfg.API.BaseURL
	if flag, _ := cmd.Flags().GetString("api-url"); flag != "" {
		baseURL = flag
	}

	client, err := api.New(api.Config{
		BaseURL:           baseURL,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	}, api.WithLogger(logger.ComponentLogger("nuts-api")))
	if err != nil {
		return nil, err
	}

	svc := dashboard.New(client, dashboard.Config{Interval: cfg.RefreshInterval(), DetailIdleTTL: cfg.DetailIdleTTL()}, logger.ComponentLogger("dashboard"))
	return &session{cfg: cfg, client: client, svc: svc}, nil
}

// unreachableHint is shown when the nuts backend cannot be reached
const unreachableHint = "is the nuts backend running? check api.base_url, NUTS_API_URL or --api-url"

// Execute runs RootCmd, attaching operator hints to well-known failures
func Execute(ctx context.Context) error {
	return withHints(RootCmd.ExecuteContext(ctx))
}

func withHints(err error) error {
	if errors.IsServiceUnavailableError(err) {
		return errors.WithHint(err, unreachableHint)
	}
	return err
}

// PrintError writes err and its hints for the operator
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintln(w, "Hint:", hint)
	}
}
