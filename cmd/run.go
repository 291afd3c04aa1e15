package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oddslab/parity-arb/internal/app"
	"github.com/oddslab/parity-arb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading agent",
	Long: `Starts the parity trading agent, which will:
1. Poll the Gamma events API for active binary markets
2. Hydrate outcome prices from CLOB order book midpoints
3. Flag markets whose outcome prices drift from summing to 1.0
4. Simulate bundle executions against the spending allowance
5. Manage open positions until reversion, stop-loss or timeout
6. Serve status, positions and permissions over HTTP

The agent idles until a spending permission is granted, either via
PERMISSION_AUTO_GRANT=true or a POST to /api/permission, and stops
trading the moment the permission is revoked or expires.`,
	RunE: runAgent,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := application.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
