package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netops-labs/enms-in-go/pkg/config"
)

var configurationCmd = &cobra.Command{
	Use:   "configuration",
	Short: "Inspect the server configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'configuration' requires a subcommand (show)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var configurationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration attributes and their sources",
	Long: `Show configuration attributes and their sources.

The values reflect the current config file and environment, which may differ
from those of a running server.

Config file location: /etc/enms/enms.yml (or ENMS_CONFIG_PATH)

Example:
  enmsctl configuration show
  enmsctl configuration show --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		if err := showConfiguration(output); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(configurationCmd)
	configurationCmd.AddCommand(configurationShowCmd)
	configurationShowCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

func showConfiguration(output string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if output == "json" {
		out, err := cfg.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(cfg.FormatText())
	return nil
}
