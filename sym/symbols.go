// Package sym defines the glyphs nutsdash shows for its commands and views.
// They are stable across the CLI help, the terminal views and the dashboard.
package sym

// Command glyphs
const (
	Jobs      = "⧗" // jobs: the unified job list
	Workflows = "⋔" // workflows: multi-job runs
	Watch     = "◉" // watch: live terminal view
	Serve     = "⇄" // serve: dashboard server
	AM        = "≡" // am: configuration and system settings
)

// Status markers
const (
	Stale = "⚠" // view shows the last known state after a failed refresh
	Done  = "✓" // mutation accepted by the backend
)

// SymbolToCommand maps glyph strings to their text command equivalents.
var SymbolToCommand = map[string]string{
	Jobs:      "jobs",
	Workflows: "workflows",
	Watch:     "watch",
	Serve:     "serve",
	AM:        "am",
}

// CommandToSymbol maps text commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{
	"jobs":      Jobs,
	"workflows": Workflows,
	"watch":     Watch,
	"serve":     Serve,
	"am":        AM,
}

// CommandDescriptions provides the one-line help of each command.
var CommandDescriptions = map[string]string{
	"jobs":      "List and act on jobs",
	"workflows": "List and act on workflows",
	"watch":     "Live view of jobs or workflows",
	"serve":     "Run the dashboard server",
	"am":        "Show or write nutsdash configuration",
}

// Short renders a command's help line with its glyph
func Short(command string) string {
	return CommandToSymbol[command] + " " + CommandDescriptions[command]
}
