package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/allowance"
	"github.com/oddslab/parity-arb/internal/detector"
	"github.com/oddslab/parity-arb/internal/execution"
	"github.com/oddslab/parity-arb/internal/fees"
	"github.com/oddslab/parity-arb/internal/positions"
	"github.com/oddslab/parity-arb/pkg/config"
	"github.com/oddslab/parity-arb/pkg/types"
)

const (
	// simBookHalfSpread is the distance of each synthetic quote from the
	// outcome price, so executions land half a cent off the midpoint.
	simBookHalfSpread = 0.005
	simBookDepth      = 1000.0

	// simReversion is the fraction of the parity drift surviving each tick.
	simReversion  = 0.6
	simNoiseScale = 0.25

	// simMaxHold keeps the timeout exit out of reach: scenario clocks run in
	// wall time and a timeout would make results depend on host speed.
	simMaxHold = time.Hour
)

//nolint:gochecknoglobals // Cobra boilerplate
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay the strategy offline against synthetic markets",
	Long: `Runs the detection and execution pipeline offline against synthetic binary
markets. Each run draws markets whose outcome prices sum to roughly 1.0 with
configurable dispersion, then replays tick-by-tick reversion: scan for parity
signals, execute bundles against synthetic order books under a fresh spending
allowance, manage exits, and force-close whatever is left at the final prices.

Detection thresholds, trade size and fee settings come from the environment;
the flags shape the scenario itself. Results are deterministic for a given
seed. No network access.`,
	RunE: runSimulate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntP("runs", "n", 10, "Independent scenario runs")
	simulateCmd.Flags().IntP("ticks", "t", 40, "Price ticks per run")
	simulateCmd.Flags().IntP("markets", "m", 25, "Synthetic markets per run")
	simulateCmd.Flags().Uint64P("seed", "s", 42, "RNG seed")
	simulateCmd.Flags().Float64P("dispersion", "d", 0.04, "Std dev of the initial parity drift")
	simulateCmd.Flags().Float64("daily-limit", 1000, "Spending allowance per run (USDC)")
}

// simParams collects everything one simulation needs: scenario shape from
// flags, trading parameters from the environment config.
type simParams struct {
	runs        int
	ticks       int
	marketCount int
	seed        uint64
	dispersion  float64
	dailyLimit  float64

	tradeSize    float64
	minSpread    float64
	minProfit    float64
	profitTarget float64
	stopLoss     float64
	adverseStd   float64
	fillMean     float64
	fillStd      float64
	feeBps       int
}

// simResult is the aggregate outcome of one scenario run.
type simResult struct {
	Run     int
	Signals int
	Bundles int
	Fills   int
	Spend   float64
	Trades  int
	Wins    int
	PnL     float64
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerAt("warn")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	params, err := simParamsFrom(cmd, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Simulating %d runs of %d ticks over %d markets (seed %d)\n\n",
		params.runs, params.ticks, params.marketCount, params.seed)

	results, err := runSimulation(params, logger)
	if err != nil {
		return fmt.Errorf("run simulation: %w", err)
	}

	printSimulationReport(os.Stdout, params, results)

	return nil
}

func simParamsFrom(cmd *cobra.Command, cfg *config.Config) (simParams, error) {
	p := simParams{
		tradeSize:    cfg.TradeSize,
		minSpread:    cfg.MinSpreadThreshold,
		minProfit:    cfg.MinProfitThreshold,
		profitTarget: cfg.ProfitTargetSpread,
		stopLoss:     cfg.StopLossSpread,
		adverseStd:   cfg.AdverseSelectionStd,
		fillMean:     cfg.FillRatioMean,
		fillStd:      cfg.FillRatioStd,
		feeBps:       cfg.TakerFeeBps,
	}

	var err error
	if p.runs, err = cmd.Flags().GetInt("runs"); err != nil {
		return p, fmt.Errorf("read runs flag: %w", err)
	}
	if p.ticks, err = cmd.Flags().GetInt("ticks"); err != nil {
		return p, fmt.Errorf("read ticks flag: %w", err)
	}
	if p.marketCount, err = cmd.Flags().GetInt("markets"); err != nil {
		return p, fmt.Errorf("read markets flag: %w", err)
	}
	if p.seed, err = cmd.Flags().GetUint64("seed"); err != nil {
		return p, fmt.Errorf("read seed flag: %w", err)
	}
	if p.dispersion, err = cmd.Flags().GetFloat64("dispersion"); err != nil {
		return p, fmt.Errorf("read dispersion flag: %w", err)
	}
	if p.dailyLimit, err = cmd.Flags().GetFloat64("daily-limit"); err != nil {
		return p, fmt.Errorf("read daily-limit flag: %w", err)
	}

	if err := validateSimParams(p); err != nil {
		return p, err
	}

	return p, nil
}

func validateSimParams(p simParams) error {
	if p.runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", p.runs)
	}
	if p.ticks < 1 {
		return fmt.Errorf("ticks must be at least 1, got %d", p.ticks)
	}
	if p.marketCount < 1 {
		return fmt.Errorf("markets must be at least 1, got %d", p.marketCount)
	}
	if p.dispersion <= 0 {
		return fmt.Errorf("dispersion must be positive, got %f", p.dispersion)
	}
	if p.dailyLimit <= 0 {
		return fmt.Errorf("daily limit must be positive, got %f", p.dailyLimit)
	}

	return nil
}

// runSimulation executes every scenario run with its own RNG stream, ledger
// and position book. Run k always sees the same draws for a given seed.
func runSimulation(params simParams, logger *zap.Logger) ([]simResult, error) {
	results := make([]simResult, 0, params.runs)

	for run := 0; run < params.runs; run++ {
		rng := rand.New(rand.NewPCG(params.seed, params.seed+uint64(run)+1))

		res, err := runScenario(run+1, params, rng, logger)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", run+1, err)
		}

		results = append(results, res)
	}

	return results, nil
}

func runScenario(run int, p simParams, rng *rand.Rand, logger *zap.Logger) (simResult, error) {
	ledger, err := allowance.New(&allowance.Config{Logger: logger})
	if err != nil {
		return simResult{}, fmt.Errorf("create ledger: %w", err)
	}
	ledger.Grant(p.dailyLimit, 24*time.Hour)

	det, err := detector.New(&detector.Config{
		MinSpreadThreshold: p.minSpread,
		MinProfitThreshold: p.minProfit,
		Logger:             logger,
	})
	if err != nil {
		return simResult{}, fmt.Errorf("create detector: %w", err)
	}

	feeModel := fees.NewModel(p.feeBps)
	calibrator := fees.NewCalibrator()

	sim, err := execution.New(&execution.Config{
		LatencyMean:         0,
		AdverseSelectionStd: p.adverseStd,
		FillRatioMean:       p.fillMean,
		FillRatioStd:        p.fillStd,
		FeeModel:            feeModel,
		Ledger:              ledger,
		Calibrator:          calibrator,
		Rand:                rng,
		Logger:              logger,
	})
	if err != nil {
		return simResult{}, fmt.Errorf("create simulator: %w", err)
	}

	mgr, err := positions.New(&positions.Config{
		ProfitTargetSpread: p.profitTarget,
		StopLossSpread:     p.stopLoss,
		MaxHold:            simMaxHold,
		FeeModel:           feeModel,
		Logger:             logger,
	})
	if err != nil {
		return simResult{}, fmt.Errorf("create position manager: %w", err)
	}

	markets := syntheticMarkets(rng, p.marketCount, p.dispersion, p.feeBps)
	ctx := context.Background()
	res := simResult{Run: run}

	for tick := 0; tick < p.ticks; tick++ {
		if tick > 0 {
			evolveMarkets(rng, markets, p.dispersion)
		}

		mgr.CheckExits(markets)

		signals := det.Scan(markets)
		res.Signals += len(signals)

		byID := make(map[string]types.Market, len(markets))
		for _, mkt := range markets {
			byID[mkt.ID] = mkt
		}

		for _, sig := range signals {
			mkt, ok := byID[sig.MarketID]
			if !ok {
				continue
			}

			feeRate := feeModel.RateFor(mkt.TakerFeeBps)
			if _, ok := det.Profitable(sig, p.tradeSize, feeRate, calibrator.CalibratedRate()); !ok {
				continue
			}

			res.Bundles++
			for i, tokenID := range mkt.TokenIDs {
				if i >= len(mkt.OutcomePrices) {
					break
				}

				result, err := sim.Execute(ctx, execution.Request{
					MarketID: mkt.ID,
					TokenID:  tokenID,
					Side:     sig.Side,
					Size:     p.tradeSize,
					Book:     syntheticBook(tokenID, mkt.OutcomePrices[i]),
					FeeBps:   mkt.TakerFeeBps,
				})
				if err != nil {
					continue
				}

				res.Fills++
				mgr.Open(types.Position{
					MarketID:    mkt.ID,
					TokenID:     tokenID,
					Side:        result.Side,
					Size:        result.FilledSize,
					EntryPrice:  result.ExecutionPrice,
					EntryTime:   result.ExecutedAt,
					EntrySpread: sig.Spread,
				})
			}
		}
	}

	// Whatever survived the last tick closes at the final prices.
	last := make(map[string]float64)
	for _, mkt := range markets {
		for i, tokenID := range mkt.TokenIDs {
			if i < len(mkt.OutcomePrices) {
				last[tokenID] = mkt.OutcomePrices[i]
			}
		}
	}
	mgr.CloseAll(func(tokenID string) (float64, bool) {
		price, ok := last[tokenID]
		return price, ok
	})

	for _, rec := range mgr.History() {
		res.Trades++
		res.PnL += rec.PnL
		if rec.PnL > 0 {
			res.Wins++
		}
	}
	res.Spend = ledger.Status().SpentToday

	return res, nil
}

// syntheticMarkets draws binary markets whose price sums scatter around 1.0
// with the given dispersion. The YES price anchors each market; the parity
// drift lives entirely on the NO leg.
func syntheticMarkets(rng *rand.Rand, count int, dispersion float64, feeBps int) []types.Market {
	markets := make([]types.Market, 0, count)

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("sim-%03d", i)
		yes := clampPrice(0.5 + rng.NormFloat64()*0.15)
		drift := rng.NormFloat64() * dispersion
		no := clampPrice(1.0 - yes + drift)

		markets = append(markets, types.Market{
			ID:              id,
			Question:        fmt.Sprintf("Synthetic market %03d", i),
			Slug:            id,
			Outcomes:        []string{"Yes", "No"},
			OutcomePrices:   []float64{yes, no},
			TokenIDs:        []string{id + "-yes", id + "-no"},
			TakerFeeBps:     feeBps,
			Liquidity:       100000,
			Volume24h:       50000,
			Active:          true,
			AcceptingOrders: true,
		})
	}

	return markets
}

// evolveMarkets advances one tick: the parity drift decays toward zero and
// picks up fresh noise, mimicking reversion after a mispricing.
func evolveMarkets(rng *rand.Rand, markets []types.Market, dispersion float64) {
	for i := range markets {
		m := &markets[i]
		drift := m.PriceSum() - 1.0
		drift = drift*simReversion + rng.NormFloat64()*dispersion*simNoiseScale
		m.OutcomePrices[1] = clampPrice(1.0 - m.OutcomePrices[0] + drift)
	}
}

// syntheticBook quotes one deep level either side of the outcome price, so
// the book midpoint equals the price the detector saw.
func syntheticBook(tokenID string, price float64) *types.OrderBook {
	book := &types.OrderBook{
		TokenID:   tokenID,
		Bids:      []types.PriceLevel{{Price: clampPrice(price - simBookHalfSpread), Size: simBookDepth}},
		Asks:      []types.PriceLevel{{Price: clampPrice(price + simBookHalfSpread), Size: simBookDepth}},
		FetchedAt: time.Now(),
	}
	book.Normalize()

	return book
}

func clampPrice(v float64) float64 {
	if v < 0.01 {
		return 0.01
	}
	if v > 0.99 {
		return 0.99
	}

	return v
}

func printSimulationReport(w io.Writer, params simParams, results []simResult) {
	table := tablewriter.NewWriter(w)
	table.Header("RUN", "SIGNALS", "BUNDLES", "FILLS", "SPEND", "TRADES", "WIN %", "PNL")

	var total simResult
	for _, res := range results {
		table.Append(
			fmt.Sprintf("%d", res.Run),
			fmt.Sprintf("%d", res.Signals),
			fmt.Sprintf("%d", res.Bundles),
			fmt.Sprintf("%d", res.Fills),
			fmt.Sprintf("$%.2f", res.Spend),
			fmt.Sprintf("%d", res.Trades),
			fmt.Sprintf("%.1f", winPct(res.Wins, res.Trades)),
			fmt.Sprintf("$%.4f", res.PnL),
		)

		total.Signals += res.Signals
		total.Bundles += res.Bundles
		total.Fills += res.Fills
		total.Spend += res.Spend
		total.Trades += res.Trades
		total.Wins += res.Wins
		total.PnL += res.PnL
	}

	table.Render()

	fmt.Fprintf(w, "\n--- AGGREGATE (%d runs x %d ticks, size %.1f, fee %d bps) ---\n",
		params.runs, params.ticks, params.tradeSize, params.feeBps)
	fmt.Fprintf(w, "  Signals:         %d\n", total.Signals)
	fmt.Fprintf(w, "  Bundles:         %d\n", total.Bundles)
	fmt.Fprintf(w, "  Fills:           %d\n", total.Fills)
	fmt.Fprintf(w, "  Simulated spend: $%.2f\n", total.Spend)
	fmt.Fprintf(w, "  Closed trades:   %d\n", total.Trades)
	fmt.Fprintf(w, "  Win rate:        %.1f%%\n", winPct(total.Wins, total.Trades))
	fmt.Fprintf(w, "  Net PnL:         $%.4f\n", total.PnL)

	if total.PnL > 0 {
		fmt.Fprintf(w, "\n  >>> Net positive under simulated fills\n")
	} else {
		fmt.Fprintf(w, "\n  >>> Net negative under simulated fills: widen thresholds or cut size\n")
	}
}

func winPct(wins, trades int) float64 {
	if trades == 0 {
		return 0
	}

	return float64(wins) / float64(trades) * 100
}
