// Package cmd implements the CLI commands for the parity trading agent.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "parity-arb",
	Short: "Parity trading agent for binary prediction markets",
	Long: `parity-arb watches binary prediction markets whose outcome prices should
sum to 1.0, flags the ones that drift, and trades the reversion with simulated
fills under a revocable spending allowance.

Configuration is read from environment variables; a .env file in the working
directory is loaded first if present.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Real environment variables win over .env entries.
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
