package display

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/errors"
)

// Format is an output format selected with --output
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an --output value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", errors.Newf("unknown output format %q (want table, json or yaml)", s)
}

// FormatFor resolves the output format of cmd: --json wins, then --output
func FormatFor(cmd *cobra.Command) (Format, error) {
	if cmd == nil {
		return FormatTable, nil
	}
	if ShouldOutputJSON(cmd) {
		return FormatJSON, nil
	}
	var out string
	if f := cmd.Flag("output"); f != nil {
		out = f.Value.String()
	}
	return ParseFormat(out)
}

// ShouldOutputJSON reports whether --json was set on cmd or the root command
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}

	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
	return globalFlag
}

// Output writes v in format f. Table output is delegated to table, which may
// be nil for values that only have a structured form.
func Output(w io.Writer, f Format, v interface{}, table func(io.Writer) error) error {
	switch f {
	case FormatJSON:
		return OutputJSON(w, v)
	case FormatYAML:
		return OutputYAML(w, v)
	}
	if table == nil {
		return OutputYAML(w, v)
	}
	return table(w)
}
