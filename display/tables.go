package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/unify"
	"github.com/nutsq/nutsdash/sym"
)

// timeLayout is how backend instants are shown to operators
const timeLayout = "2006-01-02 15:04:05"

// StatusColor renders a job or workflow status in its dashboard color
func StatusColor(status string) string {
	switch status {
	case string(unify.StatusPending):
		return pterm.Yellow(status)
	case string(unify.StatusRunning):
		return pterm.LightCyan(status)
	case string(unify.StatusScheduled):
		return pterm.LightMagenta(status)
	case string(unify.StatusCompleted):
		return pterm.Green(status)
	case string(unify.StatusFailed):
		return pterm.Red(status)
	}
	return pterm.Gray(status)
}

// FormatInstant shows a backend ISO-8601 string in loc. Values that do not
// parse are shown verbatim; empty values as "-".
func FormatInstant(iso string, loc *time.Location) string {
	if iso == "" {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.In(loc).Format(timeLayout)
		}
	}
	return iso
}

// FormatParams renders job parameters compactly
func FormatParams(params []any) string {
	if len(params) == 0 {
		return "-"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprint(params)
	}
	return string(data)
}

// FormatAge renders how long ago t was, e.g. "4s ago"
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ViewHeader is the freshness line printed above a table
type ViewHeader struct {
	Title     string
	UpdatedAt time.Time
	Stale     bool
	Err       error
}

// RenderHeader writes the view title, its age and a warning when stale
func RenderHeader(w io.Writer, h ViewHeader, now time.Time) {
	fmt.Fprintf(w, "%s %s\n", pterm.Bold.Sprint(h.Title), pterm.Gray("(updated "+FormatAge(h.UpdatedAt, now)+")"))
	if h.Stale {
		msg := "showing last known state"
		if h.Err != nil {
			msg = "refresh failed: " + h.Err.Error() + "; " + msg
		}
		fmt.Fprintln(w, pterm.Yellow(sym.Stale+" "+msg))
	}
}

// RenderJobs writes unified jobs as a table, one row per instance
func RenderJobs(w io.Writer, jobs []unify.UnifiedJob, loc *time.Location) error {
	if len(jobs) == 0 {
		fmt.Fprintln(w, pterm.Gray("No jobs"))
		return nil
	}

	data := pterm.TableData{{"NAME", "STATUS", "WHEN", "WORKER", "DETAIL"}}
	for _, j := range jobs {
		when, detail := "-", "-"
		switch j.Status {
		case unify.StatusScheduled:
			when = FormatInstant(j.NextRun, loc)
		case unify.StatusRunning:
			when = FormatInstant(j.StartedAt, loc)
			detail = FormatParams(j.Params)
		case unify.StatusPending:
			detail = FormatParams(j.Params)
		case unify.StatusFailed:
			detail = deref(j.Error)
		}
		if j.WorkflowName != nil {
			tag := "[" + *j.WorkflowName + "]"
			if detail == "-" {
				detail = tag
			} else {
				detail += " " + tag
			}
		}
		worker := j.WorkerID
		if worker == "" {
			worker = "-"
		}
		data = append(data, []string{j.Name, StatusColor(string(j.Status)), when, worker, detail})
	}
	return renderTable(w, data)
}

// RenderJobCounts writes a one-line summary of jobs per status
func RenderJobCounts(w io.Writer, counts map[unify.Status]int) {
	parts := make([]string, 0, len(unify.AllStatuses))
	for _, s := range unify.AllStatuses {
		parts = append(parts, fmt.Sprintf("%s %d", StatusColor(string(s)), counts[s]))
	}
	fmt.Fprintln(w, strings.Join(parts, pterm.Gray(" · ")))
}

// RenderWorkflows writes workflow summaries as a table
func RenderWorkflows(w io.Writer, workflows []unify.WorkflowSummary, loc *time.Location) error {
	if len(workflows) == 0 {
		fmt.Fprintln(w, pterm.Gray("No workflows"))
		return nil
	}

	data := pterm.TableData{{"NAME", "STATUS", "PROGRESS", "NEXT RUN", "SCHEDULE"}}
	for _, wf := range workflows {
		schedule := wf.Schedule
		if schedule == "" {
			schedule = "-"
		}
		data = append(data, []string{
			wf.Name,
			StatusColor(wf.Status),
			wf.Progress,
			FormatInstant(deref(wf.NextRun), loc),
			schedule,
		})
	}
	return renderTable(w, data)
}

// RenderWorkflow writes one workflow with its constituent jobs
func RenderWorkflow(w io.Writer, ws api.WorkflowStatus, loc *time.Location) error {
	status := unify.DisplayStatus(ws)
	fmt.Fprintf(w, "%s %s  %s %s\n",
		pterm.Bold.Sprint(ws.Name), StatusColor(status),
		pterm.Gray("progress"), unify.ProgressLabel(ws))
	if ws.Schedule != "" {
		fmt.Fprintf(w, "%s %s\n", pterm.Gray("schedule"), ws.Schedule)
	}
	if ws.NextRun != nil {
		fmt.Fprintf(w, "%s %s\n", pterm.Gray("next run"), FormatInstant(*ws.NextRun, loc))
	}
	if ws.Error != nil {
		fmt.Fprintf(w, "%s %s\n", pterm.Red("error"), *ws.Error)
	}

	if len(ws.Jobs) == 0 {
		fmt.Fprintln(w, pterm.Gray("No jobs"))
		return nil
	}

	data := pterm.TableData{{"JOB", "STATUS", "REQUIRES", "ERROR"}}
	for _, j := range ws.Jobs {
		js := deref(j.Status)
		if js == "" {
			js = "-"
		}
		requires := strings.Join(j.Requires, ", ")
		if requires == "" {
			requires = "-"
		}
		errText := deref(j.Error)
		if errText == "" {
			errText = "-"
		}
		data = append(data, []string{j.Name, StatusColor(js), requires, errText})
	}
	return renderTable(w, data)
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
