package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enmsctl",
	Short: "Run and administer the eNMS control plane",
	Long: `Run and administer the eNMS control plane.

The server reads its settings from enms.yml (see "enmsctl configuration show")
and its connection strings and keys from the environment.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
