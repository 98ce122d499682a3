package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nutsq/nutsdash/display"
	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/dashboard"
	"github.com/nutsq/nutsdash/nuts/liveview"
	"github.com/nutsq/nutsdash/nuts/unify"
	"github.com/nutsq/nutsdash/sym"
)

// clearScreen moves the cursor home and clears the terminal
const clearScreen = "\033[H\033[2J"

// WatchCmd shows a live view in the terminal
var WatchCmd = &cobra.Command{
	Use:   "watch [jobs|workflows]",
	Short: sym.Short("watch"),
	Long: `Show jobs (default) or workflows and re-render on every refresh.

The view polls the backend every view.refresh_interval_seconds (see 'nutsdash am
show'). When a refresh fails the last known state stays on screen with a
warning. With --json or --output yaml one document is written per update.

Examples:
  nutsdash watch                  # Jobs
  nutsdash watch workflows
  nutsdash watch --interval 1s
  nutsdash watch jobs --json --count 1`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{dashboard.KeyJobs, dashboard.KeyWorkflows},
	RunE:      runWatch,
}

func init() {
	WatchCmd.Flags().Duration("interval", 0, "Refresh interval (default: from config)")
	WatchCmd.Flags().Int("count", 0, "Exit after this many updates (0 = until interrupted)")
}

// watchDocument is one structured update written by watch
type watchDocument struct {
	View      string     `json:"view" yaml:"view"`
	UpdatedAt *time.Time `json:"updated_at" yaml:"updated_at"`
	Stale     bool       `json:"stale" yaml:"stale"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
	Data      any        `json:"data" yaml:"data"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	target := dashboard.KeyJobs
	if len(args) == 1 {
		target = args[0]
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		s.svc.SetInterval(interval)
	}

	switch target {
	case dashboard.KeyJobs:
		return watchView(cmd, s.svc.Jobs(), "Jobs",
			func(jobs []unify.UnifiedJob) any { return jobs },
			func(w io.Writer, jobs []unify.UnifiedJob) error {
				display.RenderJobCounts(w, unify.CountByStatus(jobs))
				return display.RenderJobs(w, jobs, time.Local)
			})
	case dashboard.KeyWorkflows:
		return watchView(cmd, s.svc.Workflows(), "Workflows",
			func(listings []api.WorkflowListing) any { return unify.Summarize(listings) },
			func(w io.Writer, listings []api.WorkflowListing) error {
				return display.RenderWorkflows(w, unify.Summarize(listings), time.Local)
			})
	}
	return errors.Newf("unknown view %q (want jobs or workflows)", target)
}

// watchView polls only v and renders it on every update until the command's
// context ends or --count updates were shown
func watchView[T any](cmd *cobra.Command, v *liveview.View[T], title string,
	data func(T) any, table func(io.Writer, T) error) error {
	format, err := display.FormatFor(cmd)
	if err != nil {
		return err
	}
	count, _ := cmd.Flags().GetInt("count")

	out := cmd.OutOrStdout()
	redraw := format == display.FormatTable && isTerminal(out)

	updates := v.Subscribe()
	defer v.Unsubscribe(updates)
	v.Start()
	defer v.Stop()

	ctx := cmd.Context()
	for shown := 0; count <= 0 || shown < count; shown++ {
		var u liveview.Update[T]
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-updates:
			if !ok {
				return nil
			}
			u = next
		}

		if format != display.FormatTable {
			if err := display.Output(out, format, document(u, data), nil); err != nil {
				return err
			}
			continue
		}

		if redraw {
			fmt.Fprint(out, clearScreen)
		}
		header := display.ViewHeader{Title: title, Stale: u.Stale, Err: u.Err}
		if u.Snapshot != nil {
			header.UpdatedAt = u.Snapshot.UpdatedAt
		}
		display.RenderHeader(out, header, time.Now())
		if u.Snapshot == nil {
			fmt.Fprintln(out, "Waiting for the first successful refresh...")
			continue
		}
		if err := table(out, u.Snapshot.Data); err != nil {
			return err
		}
	}
	return nil
}

func document[T any](u liveview.Update[T], data func(T) any) watchDocument {
	doc := watchDocument{View: u.Key, Stale: u.Stale}
	if u.Err != nil {
		doc.Error = u.Err.Error()
	}
	if u.Snapshot != nil {
		t := u.Snapshot.UpdatedAt
		doc.UpdatedAt = &t
		doc.Data = data(u.Snapshot.Data)
	}
	return doc
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
