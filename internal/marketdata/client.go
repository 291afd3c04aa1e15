package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oddslab/parity-arb/pkg/types"
)

const (
	userAgent = "parity-arb/1.0"

	// maxPageSize is the largest page the events API serves per request.
	maxPageSize = 100

	// pendingPrice seeds outcome prices until book hydration replaces them.
	pendingPrice = 0.5

	defaultRateLimitRPS   = 10.0
	defaultRateLimitBurst = 20
	defaultTimeout        = 30 * time.Second
	defaultConcurrency    = 50
)

// Client fetches market snapshots from the Gamma events API and order books
// from the CLOB API. All outbound requests share one rate limiter.
type Client struct {
	gammaURL    string
	clobURL     string
	marketLimit int
	concurrency int
	httpClient  *http.Client
	limiter     *rate.Limiter
	metadata    *MetadataCache
	logger      *zap.Logger
}

// Config holds market-data client configuration.
type Config struct {
	GammaURL           string
	CLOBURL            string
	MarketLimit        int // markets per cycle, 0 fetches all available
	RateLimitRPS       float64
	RateLimitBurst     int
	HydrateConcurrency int
	Timeout            time.Duration
	Metadata           *MetadataCache // optional
	Logger             *zap.Logger
}

// New creates a market-data client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.GammaURL == "" {
		return nil, fmt.Errorf("gamma URL cannot be empty")
	}
	if cfg.CLOBURL == "" {
		return nil, fmt.Errorf("clob URL cannot be empty")
	}
	if cfg.MarketLimit < 0 {
		return nil, fmt.Errorf("market limit cannot be negative, got %d", cfg.MarketLimit)
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = defaultRateLimitRPS
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}
	concurrency := cfg.HydrateConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		gammaURL:    cfg.GammaURL,
		clobURL:     cfg.CLOBURL,
		marketLimit: cfg.MarketLimit,
		concurrency: concurrency,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		metadata:    cfg.Metadata,
		logger:      cfg.Logger,
	}, nil
}

// FetchMarkets returns one cycle's market snapshots, paginating the events
// API until the configured limit or the end of the listing. Events flatten
// to their member markets; markets without at least two outcome tokens are
// dropped, and missing prices are seeded at 0.5 pending hydration.
func (c *Client) FetchMarkets(ctx context.Context) ([]types.Market, error) {
	start := time.Now()
	defer func() {
		FetchDurationSeconds.WithLabelValues("events").Observe(time.Since(start).Seconds())
	}()

	fetchAll := c.marketLimit == 0

	var markets []types.Market
	offset := 0

	for {
		pageSize := maxPageSize
		if !fetchAll {
			remaining := c.marketLimit - len(markets)
			if remaining <= 0 {
				break
			}
			if remaining < maxPageSize {
				pageSize = remaining
			}
		}

		batch, eventCount, err := c.fetchEventsPage(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch events at offset %d: %w", offset, err)
		}

		markets = append(markets, batch...)
		offset += eventCount

		// A short page means the listing is exhausted.
		if eventCount < pageSize {
			break
		}
	}

	if !fetchAll && len(markets) > c.marketLimit {
		markets = markets[:c.marketLimit]
	}

	MarketsFetchedTotal.Add(float64(len(markets)))

	c.logger.Debug("markets-fetched",
		zap.Int("count", len(markets)),
		zap.Int("events_scanned", offset),
		zap.Duration("duration", time.Since(start)))

	return markets, nil
}

// fetchEventsPage fetches one events page and flattens it to markets. The
// second return is the raw event count, which drives pagination offsets.
func (c *Client) fetchEventsPage(ctx context.Context, limit, offset int) ([]types.Market, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	params := url.Values{}
	params.Add("active", "true")
	params.Add("closed", "false")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	params.Add("order", "volume24hr")
	params.Add("ascending", "false")

	requestURL := fmt.Sprintf("%s/events?%s", c.gammaURL, params.Encode())

	body, err := c.get(ctx, "events", requestURL)
	if err != nil {
		return nil, 0, err
	}

	var events []types.GammaEvent
	if err := gojson.Unmarshal(body, &events); err != nil {
		FetchErrorsTotal.WithLabelValues("events").Inc()
		return nil, 0, &types.FetchError{Endpoint: "events", Err: fmt.Errorf("decode: %w", err)}
	}

	var markets []types.Market
	for _, ev := range events {
		for _, m := range ev.Markets {
			if len(m.TokenIDs) < 2 {
				MarketsSkippedTotal.Inc()
				c.logger.Debug("market-skipped",
					zap.String("market_id", m.ID),
					zap.Int("token_count", len(m.TokenIDs)))
				continue
			}

			seedPendingPrices(&m)
			c.metadata.Fill(&m)
			markets = append(markets, m)
		}
	}

	return markets, len(events), nil
}

// FetchOrderBook returns the current book for one outcome token with its
// ladders normalized (bids descending, asks ascending, empty levels dropped).
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (*types.OrderBook, error) {
	start := time.Now()
	defer func() {
		FetchDurationSeconds.WithLabelValues("book").Observe(time.Since(start).Seconds())
	}()

	if tokenID == "" {
		return nil, fmt.Errorf("token ID cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestURL := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	body, err := c.get(ctx, "book", requestURL)
	if err != nil {
		return nil, err
	}

	var payload struct {
		AssetID string             `json:"asset_id"`
		Bids    []types.PriceLevel `json:"bids"`
		Asks    []types.PriceLevel `json:"asks"`
	}
	if err := gojson.Unmarshal(body, &payload); err != nil {
		FetchErrorsTotal.WithLabelValues("book").Inc()
		return nil, &types.FetchError{Endpoint: "book", Err: fmt.Errorf("decode: %w", err)}
	}

	book := &types.OrderBook{
		TokenID:   tokenID,
		Bids:      payload.Bids,
		Asks:      payload.Asks,
		FetchedAt: time.Now(),
	}
	book.Normalize()

	BooksFetchedTotal.Inc()

	return book, nil
}

// get performs one rate-limited GET and returns the response body. Failures
// come back as typed fetch errors carrying the endpoint name.
func (c *Client) get(ctx context.Context, endpoint, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &types.FetchError{Endpoint: endpoint, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		FetchErrorsTotal.WithLabelValues(endpoint).Inc()
		return nil, &types.FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		FetchErrorsTotal.WithLabelValues(endpoint).Inc()
		return nil, &types.FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		FetchErrorsTotal.WithLabelValues(endpoint).Inc()
		return nil, &types.FetchError{Endpoint: endpoint, Err: err}
	}

	return body, nil
}

// seedPendingPrices aligns the price vector with the token vector, filling
// the placeholder price where the listing carried none.
func seedPendingPrices(m *types.Market) {
	if len(m.OutcomePrices) == len(m.TokenIDs) {
		return
	}

	prices := make([]float64, len(m.TokenIDs))
	for i := range prices {
		if i < len(m.OutcomePrices) {
			prices[i] = m.OutcomePrices[i]
		} else {
			prices[i] = pendingPrice
		}
	}
	m.OutcomePrices = prices
}
