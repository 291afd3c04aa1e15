package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/oddslab/parity-arb/internal/detector"
	"github.com/oddslab/parity-arb/internal/marketdata"
	"github.com/oddslab/parity-arb/pkg/config"
	"github.com/oddslab/parity-arb/pkg/types"
)

const marketsScanTimeout = 60 * time.Second

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Fetch markets and scan for parity signals once",
	Long: `Runs a single detection cycle without trading: fetches active binary
markets from the Gamma events API, hydrates outcome prices from CLOB order
book midpoints, scans for parity violations and prints the result as a table.

Nothing is executed or persisted.`,
	RunE: runMarketsScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().IntP("limit", "l", 0, "Maximum markets to fetch (0 = MARKET_LIMIT from config)")
	marketsCmd.Flags().BoolP("verbose", "v", false, "Include liquidity and volume columns")
}

func runMarketsScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The table goes to stdout; keep the log stream down to warnings.
	logger, err := config.NewLoggerAt("warn")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("read limit flag: %w", err)
	}
	if limit > 0 {
		cfg.MarketLimit = limit
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("read verbose flag: %w", err)
	}

	client, err := marketdata.New(&marketdata.Config{
		GammaURL:           cfg.GammaAPIURL,
		CLOBURL:            cfg.CLOBAPIURL,
		MarketLimit:        cfg.MarketLimit,
		RateLimitRPS:       cfg.HTTPRateLimitRPS,
		RateLimitBurst:     cfg.HTTPRateLimitBurst,
		HydrateConcurrency: cfg.HydrateConcurrency,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("create market data client: %w", err)
	}

	det, err := detector.New(&detector.Config{
		MinSpreadThreshold: cfg.MinSpreadThreshold,
		MinProfitThreshold: cfg.MinProfitThreshold,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), marketsScanTimeout)
	defer cancel()

	fmt.Printf("Scanning markets from %s\n\n", cfg.GammaAPIURL)

	markets, err := client.FetchMarkets(ctx)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	hydrated := client.HydrateMarkets(ctx, markets)
	signals := det.Scan(markets)

	printMarketsTable(os.Stdout, markets, signals, verbose)

	fmt.Printf("\n%d markets, %d prices hydrated, %d parity signals\n",
		len(markets), hydrated, len(signals))

	return nil
}

// printMarketsTable renders one row per market with its parity state. Markets
// carrying a signal show the recommended side and the spread magnitude.
func printMarketsTable(w io.Writer, markets []types.Market, signals []types.Signal, verbose bool) {
	byMarket := make(map[string]types.Signal, len(signals))
	for _, sig := range signals {
		byMarket[sig.MarketID] = sig
	}

	table := tablewriter.NewWriter(w)
	if verbose {
		table.Header("#", "SLUG", "QUESTION", "YES", "NO", "SUM", "LIQUIDITY", "VOL24H", "SIGNAL")
	} else {
		table.Header("#", "SLUG", "QUESTION", "YES", "NO", "SUM", "SIGNAL")
	}

	for i, mkt := range markets {
		signal := "-"
		if sig, ok := byMarket[mkt.ID]; ok {
			signal = fmt.Sprintf("%s %.4f", sig.Side, sig.Spread)
		}

		idx := fmt.Sprintf("%d", i+1)
		slug := truncate(mkt.Slug, 28)
		question := truncate(mkt.Question, 40)
		yes := fmt.Sprintf("%.4f", mkt.YesPrice())
		no := fmt.Sprintf("%.4f", mkt.NoPrice())
		sum := fmt.Sprintf("%.4f", mkt.PriceSum())

		if verbose {
			table.Append(idx, slug, question, yes, no, sum,
				fmt.Sprintf("%.0f", mkt.Liquidity),
				fmt.Sprintf("%.0f", mkt.Volume24h),
				signal)
		} else {
			table.Append(idx, slug, question, yes, no, sum, signal)
		}
	}

	table.Render()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
