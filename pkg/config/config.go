package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Polymarket data APIs
	GammaAPIURL string
	CLOBAPIURL  string
	WSURL       string

	// Market discovery
	MarketLimit        int
	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
	HydrateConcurrency int

	// Parity detection
	MinSpreadThreshold float64
	MinProfitThreshold float64
	TradeSize          float64
	PollInterval       time.Duration

	// Execution simulation
	LatencyMean         time.Duration
	AdverseSelectionStd float64
	FillRatioMean       float64
	FillRatioStd        float64
	TakerFeeBps         int

	// Position management
	PositionTimeout    time.Duration
	ProfitTargetSpread float64
	StopLossSpread     float64

	// Spending allowance
	DailyLimitUSDC         float64
	PermissionDurationDays int
	PermissionAutoGrant    bool

	// Strategy modes
	ConservativeThreshold float64
	AggressiveThreshold   float64
	ConservativeMinEdge   float64
	NormalMinEdge         float64
	AggressiveMinEdge     float64

	// Safety engine
	MaxDataDelay           time.Duration
	MaxConsecutiveFailures int
	SafeModeCooldown       time.Duration

	// Storage
	DatabaseURL string

	// Chain
	PolygonRPCURL       string
	WalletAddress       string
	BalancePollInterval time.Duration

	// Price feed
	FeedEnabled bool
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Polymarket API defaults
		GammaAPIURL: getEnvOrDefault("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		CLOBAPIURL:  getEnvOrDefault("CLOB_API_URL", "https://clob.polymarket.com"),
		WSURL:       getEnvOrDefault("WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		// Market discovery defaults
		MarketLimit:        getIntOrDefault("MARKET_LIMIT", 20),
		HTTPRateLimitRPS:   getFloat64OrDefault("HTTP_RATE_LIMIT_RPS", 10.0),
		HTTPRateLimitBurst: getIntOrDefault("HTTP_RATE_LIMIT_BURST", 20),
		HydrateConcurrency: getIntOrDefault("HYDRATE_CONCURRENCY", 50),

		// Detection defaults
		MinSpreadThreshold: getFloat64OrDefault("MIN_SPREAD_THRESHOLD", 0.02),
		MinProfitThreshold: getFloat64OrDefault("MIN_PROFIT_THRESHOLD", 0.10),
		TradeSize:          getFloat64OrDefault("TRADE_SIZE", 5.0),
		PollInterval:       getDurationOrDefault("POLL_INTERVAL", 5*time.Second),

		// Execution simulation defaults
		LatencyMean:         getDurationOrDefault("LATENCY_MEAN", 50*time.Millisecond),
		AdverseSelectionStd: getFloat64OrDefault("ADVERSE_SELECTION_STD", 0.001),
		FillRatioMean:       getFloat64OrDefault("FILL_RATIO_MEAN", 1.0),
		FillRatioStd:        getFloat64OrDefault("FILL_RATIO_STD", 0.0),
		TakerFeeBps:         getIntOrDefault("TAKER_FEE_BPS", 200),

		// Position defaults
		PositionTimeout:    getDurationOrDefault("POSITION_TIMEOUT", 1*time.Hour),
		ProfitTargetSpread: getFloat64OrDefault("PROFIT_TARGET_SPREAD", 0.005),
		StopLossSpread:     getFloat64OrDefault("STOP_LOSS_SPREAD", 0.02),

		// Allowance defaults
		DailyLimitUSDC:         getFloat64OrDefault("DAILY_LIMIT_USDC", 10.0),
		PermissionDurationDays: getIntOrDefault("PERMISSION_DURATION_DAYS", 30),
		PermissionAutoGrant:    getBoolOrDefault("PERMISSION_AUTO_GRANT", false),

		// Strategy defaults
		ConservativeThreshold: getFloat64OrDefault("CONSERVATIVE_THRESHOLD", 0.30),
		AggressiveThreshold:   getFloat64OrDefault("AGGRESSIVE_THRESHOLD", 0.70),
		ConservativeMinEdge:   getFloat64OrDefault("CONSERVATIVE_MIN_EDGE", 0.05),
		NormalMinEdge:         getFloat64OrDefault("NORMAL_MIN_EDGE", 0.02),
		AggressiveMinEdge:     getFloat64OrDefault("AGGRESSIVE_MIN_EDGE", 0.01),

		// Safety defaults
		MaxDataDelay:           time.Duration(getIntOrDefault("MAX_DATA_DELAY_MS", 15000)) * time.Millisecond,
		MaxConsecutiveFailures: getIntOrDefault("MAX_CONSECUTIVE_FAILURES", 3),
		SafeModeCooldown:       getDurationOrDefault("SAFE_MODE_COOLDOWN", 5*time.Minute),

		// Storage defaults
		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Chain defaults
		PolygonRPCURL:       getEnvOrDefault("POLYGON_RPC_URL", "https://polygon-rpc.com"),
		WalletAddress:       os.Getenv("WALLET_ADDRESS"),
		BalancePollInterval: getDurationOrDefault("BALANCE_POLL_INTERVAL", 5*time.Minute),

		// Feed defaults
		FeedEnabled: getBoolOrDefault("FEED_ENABLED", true),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.GammaAPIURL == "" {
		return fmt.Errorf("GAMMA_API_URL cannot be empty")
	}

	if c.CLOBAPIURL == "" {
		return fmt.Errorf("CLOB_API_URL cannot be empty")
	}

	if c.FeedEnabled && c.WSURL == "" {
		return fmt.Errorf("WS_URL cannot be empty when FEED_ENABLED is true")
	}

	if c.MarketLimit < 0 {
		return fmt.Errorf("MARKET_LIMIT must be non-negative (0 = unlimited), got %d", c.MarketLimit)
	}

	if c.HTTPRateLimitRPS <= 0 {
		return fmt.Errorf("HTTP_RATE_LIMIT_RPS must be positive, got %f", c.HTTPRateLimitRPS)
	}

	if c.HTTPRateLimitBurst < 1 {
		return fmt.Errorf("HTTP_RATE_LIMIT_BURST must be at least 1, got %d", c.HTTPRateLimitBurst)
	}

	if c.HydrateConcurrency < 1 {
		return fmt.Errorf("HYDRATE_CONCURRENCY must be at least 1, got %d", c.HydrateConcurrency)
	}

	if c.MinSpreadThreshold <= 0 || c.MinSpreadThreshold >= 1.0 {
		return fmt.Errorf("MIN_SPREAD_THRESHOLD must be between 0 and 1.0, got %f", c.MinSpreadThreshold)
	}

	if c.MinProfitThreshold < 0 {
		return fmt.Errorf("MIN_PROFIT_THRESHOLD must be non-negative, got %f", c.MinProfitThreshold)
	}

	if c.TradeSize <= 0 {
		return fmt.Errorf("TRADE_SIZE must be positive, got %f", c.TradeSize)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval)
	}

	if c.LatencyMean < 0 {
		return fmt.Errorf("LATENCY_MEAN must be non-negative, got %v", c.LatencyMean)
	}

	if c.AdverseSelectionStd < 0 {
		return fmt.Errorf("ADVERSE_SELECTION_STD must be non-negative, got %f", c.AdverseSelectionStd)
	}

	if c.FillRatioMean < 0 {
		return fmt.Errorf("FILL_RATIO_MEAN must be non-negative, got %f", c.FillRatioMean)
	}

	if c.FillRatioStd < 0 {
		return fmt.Errorf("FILL_RATIO_STD must be non-negative, got %f", c.FillRatioStd)
	}

	if c.TakerFeeBps < 0 || c.TakerFeeBps > 10000 {
		return fmt.Errorf("TAKER_FEE_BPS must be between 0 and 10000, got %d", c.TakerFeeBps)
	}

	if c.PositionTimeout <= 0 {
		return fmt.Errorf("POSITION_TIMEOUT must be positive, got %v", c.PositionTimeout)
	}

	if c.ProfitTargetSpread <= 0 {
		return fmt.Errorf("PROFIT_TARGET_SPREAD must be positive, got %f", c.ProfitTargetSpread)
	}

	if c.StopLossSpread <= 0 {
		return fmt.Errorf("STOP_LOSS_SPREAD must be positive, got %f", c.StopLossSpread)
	}

	if c.DailyLimitUSDC < 0 {
		return fmt.Errorf("DAILY_LIMIT_USDC must be non-negative, got %f", c.DailyLimitUSDC)
	}

	if c.PermissionDurationDays < 1 {
		return fmt.Errorf("PERMISSION_DURATION_DAYS must be at least 1, got %d", c.PermissionDurationDays)
	}

	if c.ConservativeThreshold <= 0 || c.ConservativeThreshold >= 1.0 {
		return fmt.Errorf("CONSERVATIVE_THRESHOLD must be between 0 and 1.0, got %f", c.ConservativeThreshold)
	}

	if c.AggressiveThreshold <= 0 || c.AggressiveThreshold >= 1.0 {
		return fmt.Errorf("AGGRESSIVE_THRESHOLD must be between 0 and 1.0, got %f", c.AggressiveThreshold)
	}

	if c.AggressiveThreshold <= c.ConservativeThreshold {
		return fmt.Errorf("AGGRESSIVE_THRESHOLD (%f) must be > CONSERVATIVE_THRESHOLD (%f)", c.AggressiveThreshold, c.ConservativeThreshold)
	}

	if c.AggressiveMinEdge <= 0 {
		return fmt.Errorf("AGGRESSIVE_MIN_EDGE must be positive, got %f", c.AggressiveMinEdge)
	}

	if c.NormalMinEdge < c.AggressiveMinEdge {
		return fmt.Errorf("NORMAL_MIN_EDGE (%f) must be >= AGGRESSIVE_MIN_EDGE (%f)", c.NormalMinEdge, c.AggressiveMinEdge)
	}

	if c.ConservativeMinEdge < c.NormalMinEdge {
		return fmt.Errorf("CONSERVATIVE_MIN_EDGE (%f) must be >= NORMAL_MIN_EDGE (%f)", c.ConservativeMinEdge, c.NormalMinEdge)
	}

	if c.MaxDataDelay <= 0 {
		return fmt.Errorf("MAX_DATA_DELAY_MS must be positive, got %d", c.MaxDataDelay.Milliseconds())
	}

	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_FAILURES must be at least 1, got %d", c.MaxConsecutiveFailures)
	}

	if c.SafeModeCooldown <= 0 {
		return fmt.Errorf("SAFE_MODE_COOLDOWN must be positive, got %v", c.SafeModeCooldown)
	}

	if c.BalancePollInterval <= 0 {
		return fmt.Errorf("BALANCE_POLL_INTERVAL must be positive, got %v", c.BalancePollInterval)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}
