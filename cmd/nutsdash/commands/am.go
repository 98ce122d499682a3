package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/am"
	"github.com/nutsq/nutsdash/display"
	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.Short("am"),
	Long: `am - Show or write nutsdash configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags (--api-url)
2. Environment variables (NUTSDASH_* prefix, NUTS_API_URL)
3. Project config (./nutsdash.toml or ./am.toml, searched up directories)
4. User config (~/.nutsdash/am.toml)
5. Default values

Examples:
  nutsdash am show                  # Effective configuration as TOML
  nutsdash am show --format json
  nutsdash am init                  # Write defaults to ~/.nutsdash/am.toml`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to a file",
	Args:  cobra.NoArgs,
	RunE:  runAmInit,
}

func init() {
	amShowCmd.Flags().String("format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().String("path", "", "Config file to write (default: ~/.nutsdash/am.toml)")
	amInitCmd.Flags().Bool("force", false, "Overwrite an existing file (the old one is kept as .back1)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	switch format {
	case "toml":
		data, err := am.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# nutsdash configuration\n%s", data)
		return nil
	case "json":
		return display.OutputJSON(out, cfg)
	case "yaml":
		return display.OutputYAML(out, cfg)
	}
	return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = am.UserConfigPath()
	}
	if path == "" {
		return errors.New("cannot determine home directory; pass --path")
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf("%s already exists (use --force to overwrite)", path)
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := am.Save(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
