package config

import (
	"os"

	"github.com/marmos91/relayfs/internal/cli/output"
	"github.com/marmos91/relayfs/pkg/config"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current relayfsd configuration.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  relayfsd config show

  # Show as JSON
  relayfsd config show --output json

  # Show specific config file
  relayfsd config show --config /etc/relayfs/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
