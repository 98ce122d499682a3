package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/display"
	"github.com/nutsq/nutsdash/nuts/action"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/sym"
)

// output writes v in the format selected on cmd
func output(cmd *cobra.Command, v interface{}, table func(io.Writer) error) error {
	f, err := display.FormatFor(cmd)
	if err != nil {
		return err
	}
	return display.Output(cmd.OutOrStdout(), f, v, table)
}

// outputResult reports the outcome of a mutation
func outputResult(cmd *cobra.Command, resp api.SuccessResponse) error {
	return output(cmd, resp, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, pterm.Green(sym.Done), resp.Message)
		return err
	})
}

// runAtFlags reads --at and --tz into an instant
func runAtFlags(cmd *cobra.Command) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	tz, _ := cmd.Flags().GetString("tz")

	loc := time.Local
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return time.Time{}, &action.ValidationError{Field: "tz", Value: tz, Reason: "unknown time zone"}
		}
	}
	return action.ParseRunAt(at, loc)
}

func addRunAtFlags(cmd *cobra.Command) {
	cmd.Flags().String("at", "", "Run time, e.g. 2024-01-02T03:00 (local) or an RFC 3339 timestamp")
	cmd.Flags().String("tz", "", "Time zone for --at (default: local)")
	_ = cmd.MarkFlagRequired("at")
}
