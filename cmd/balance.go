package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/oddslab/parity-arb/pkg/chain"
	"github.com/oddslab/parity-arb/pkg/config"
)

const balanceTimeout = 30 * time.Second

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Probe the chain and read wallet balances",
	Long: `Connects to the configured Polygon RPC endpoint, reports chain id, latest
block and round-trip latency, then reads the native and USDC balances of the
observed wallet. Read-only: the agent holds no keys and signs nothing.`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringP("address", "a", "", "Wallet address (overrides WALLET_ADDRESS)")
	balanceCmd.Flags().StringP("rpc", "r", "", "Polygon RPC endpoint (overrides POLYGON_RPC_URL)")
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerAt("warn")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	rpcURL, err := cmd.Flags().GetString("rpc")
	if err != nil {
		return fmt.Errorf("read rpc flag: %w", err)
	}
	if rpcURL == "" {
		rpcURL = cfg.PolygonRPCURL
	}

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("read address flag: %w", err)
	}
	if address == "" {
		address = cfg.WalletAddress
	}

	client, err := chain.NewClient(rpcURL, logger)
	if err != nil {
		return fmt.Errorf("create chain client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), balanceTimeout)
	defer cancel()

	fmt.Println("=== Chain ===")
	probe, err := client.Probe(ctx)
	if err != nil {
		return fmt.Errorf("probe chain: %w", err)
	}
	fmt.Printf("RPC:      %s\n", rpcURL)
	fmt.Printf("Chain ID: %s\n", probe.ChainID.String())
	fmt.Printf("Block:    %d\n", probe.BlockNumber)
	fmt.Printf("Latency:  %s\n", probe.Latency)

	if address == "" {
		fmt.Println("\nNo wallet configured; set WALLET_ADDRESS or pass --address to read balances")
		return nil
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid wallet address: %s", address)
	}

	balances, err := client.Balances(ctx, common.HexToAddress(address))
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	fmt.Println("\n=== Wallet ===")
	fmt.Printf("Address: %s\n", address)
	fmt.Printf("Native:  %.6f\n", balances.NativeFloat())
	fmt.Printf("USDC:    %.2f\n", balances.USDCFloat())

	return nil
}
