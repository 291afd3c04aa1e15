// Package chain probes Polygon RPC connectivity and reads wallet balances.
// The agent never signs or submits transactions; everything here is
// observability for the operator. A failed probe is logged and the agent
// keeps running on simulated spends.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// polygonUSDC is the bridged USDC contract on Polygon PoS.
const polygonUSDC = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// Client reads chain state over JSON-RPC. Connections are dialed per call;
// the RPC endpoint is public infrastructure and sessions are not worth
// keeping alive between polls.
type Client struct {
	rpcURL string
	logger *zap.Logger
}

// ProbeResult is the outcome of one connectivity check.
type ProbeResult struct {
	ChainID     *big.Int
	BlockNumber uint64
	Latency     time.Duration
}

// Balances holds on-chain token balances for the observed wallet.
type Balances struct {
	Native *big.Int // wei
	USDC   *big.Int // 6-decimal units
}

// NativeFloat converts the native balance from wei to whole tokens.
func (b *Balances) NativeFloat() float64 {
	v, _ := new(big.Float).Quo(
		new(big.Float).SetInt(b.Native),
		big.NewFloat(1e18)).Float64()
	return v
}

// USDCFloat converts the USDC balance from 6-decimal units to USD.
func (b *Balances) USDCFloat() float64 {
	v, _ := new(big.Float).Quo(
		new(big.Float).SetInt(b.USDC),
		big.NewFloat(1e6)).Float64()
	return v
}

// NewClient creates a new chain client.
func NewClient(rpcURL string, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Client{rpcURL: rpcURL, logger: logger}, nil
}

// Probe checks RPC connectivity: dial, chain id, latest block number.
func (c *Client) Probe(ctx context.Context) (*ProbeResult, error) {
	start := time.Now()
	ProbesTotal.Inc()

	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		ProbeFailuresTotal.Inc()
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		ProbeFailuresTotal.Inc()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		ProbeFailuresTotal.Inc()
		return nil, fmt.Errorf("get block number: %w", err)
	}

	BlockNumber.Set(float64(blockNumber))

	result := &ProbeResult{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Latency:     time.Since(start),
	}

	c.logger.Info("chain-probe-ok",
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block_number", blockNumber),
		zap.Duration("latency", result.Latency))

	return result, nil
}

// Balances fetches native and USDC balances for an address.
func (c *Client) Balances(ctx context.Context, address common.Address) (*Balances, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	native, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}

	usdc, err := c.erc20BalanceOf(ctx, client, address, polygonUSDC)
	if err != nil {
		return nil, fmt.Errorf("get USDC balance: %w", err)
	}

	return &Balances{Native: native, USDC: usdc}, nil
}

// erc20BalanceOf reads an ERC-20 balance with a packed balanceOf call.
func (c *Client) erc20BalanceOf(
	ctx context.Context,
	client *ethclient.Client,
	owner common.Address,
	tokenAddr string,
) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	tokenAddress := common.HexToAddress(tokenAddr)
	msg := ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}

	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}
