// Package testutil provides mock upstream APIs and market fixtures for
// tests that exercise the full data pipeline. The mock servers speak the
// production wire formats, stringified array fields included, so the real
// clients run against them unchanged.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/oddslab/parity-arb/pkg/types"
)

// defaultPageSize mirrors the events API page cap.
const defaultPageSize = 100

// gammaEventDoc is one /events entry in wire form.
type gammaEventDoc struct {
	ID      string           `json:"id"`
	Slug    string           `json:"slug"`
	Title   string           `json:"title"`
	Markets []gammaMarketDoc `json:"markets"`
}

// gammaMarketDoc is the Gamma market wire object. The API encodes the
// outcome, price and token arrays as JSON strings inside the JSON object.
type gammaMarketDoc struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	Slug            string  `json:"slug"`
	Outcomes        string  `json:"outcomes"`
	OutcomePrices   string  `json:"outcomePrices"`
	ClobTokenIDs    string  `json:"clobTokenIds"`
	Liquidity       float64 `json:"liquidityNum"`
	Volume24h       float64 `json:"volume24hr"`
	Active          bool    `json:"active"`
	AcceptingOrders bool    `json:"acceptingOrders"`
}

// MockGammaAPI serves an events listing over HTTP for the market-data
// client. Each market is published as its own single-market event, which
// keeps pagination offsets aligned with event counts.
type MockGammaAPI struct {
	*httptest.Server

	mu       sync.RWMutex
	events   []gammaEventDoc
	requests atomic.Int64
}

// NewMockGammaAPI starts a mock events API seeded with the given markets.
func NewMockGammaAPI(markets ...types.Market) *MockGammaAPI {
	mock := &MockGammaAPI{}
	for _, m := range markets {
		mock.events = append(mock.events, eventFor(m))
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))

	return mock
}

func (m *MockGammaAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/events" {
		http.NotFound(w, r)
		return
	}

	m.requests.Add(1)

	limit := queryInt(r, "limit", defaultPageSize)
	offset := queryInt(r, "offset", 0)

	m.mu.RLock()
	page := make([]gammaEventDoc, 0)
	if offset < len(m.events) {
		end := offset + limit
		if end > len(m.events) {
			end = len(m.events)
		}
		page = append(page, m.events[offset:end]...)
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// AddMarket publishes a market as a new event, visible to the next fetch.
func (m *MockGammaAPI) AddMarket(market types.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, eventFor(market))
}

// Requests returns the number of listing fetches served so far.
func (m *MockGammaAPI) Requests() int64 {
	return m.requests.Load()
}

func eventFor(m types.Market) gammaEventDoc {
	return gammaEventDoc{
		ID:      "evt-" + m.ID,
		Slug:    m.Slug,
		Title:   m.Question,
		Markets: []gammaMarketDoc{wireMarket(m)},
	}
}

func wireMarket(m types.Market) gammaMarketDoc {
	outcomes, _ := json.Marshal(m.Outcomes)
	tokens, _ := json.Marshal(m.TokenIDs)

	prices := make([]string, len(m.OutcomePrices))
	for i, p := range m.OutcomePrices {
		prices[i] = strconv.FormatFloat(p, 'f', -1, 64)
	}
	priceJSON, _ := json.Marshal(prices)

	return gammaMarketDoc{
		ID:              m.ID,
		Question:        m.Question,
		Slug:            m.Slug,
		Outcomes:        string(outcomes),
		OutcomePrices:   string(priceJSON),
		ClobTokenIDs:    string(tokens),
		Liquidity:       m.Liquidity,
		Volume24h:       m.Volume24h,
		Active:          m.Active,
		AcceptingOrders: m.AcceptingOrders,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

// clobBookDoc is the /book response in wire form, with string prices
// and sizes.
type clobBookDoc struct {
	AssetID string         `json:"asset_id"`
	Bids    []clobLevelDoc `json:"bids"`
	Asks    []clobLevelDoc `json:"asks"`
}

type clobLevelDoc struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MockCLOBAPI serves per-token order books at the /book endpoint. Tokens
// without an installed book return 404, which clients surface as a fetch
// error.
type MockCLOBAPI struct {
	*httptest.Server

	mu       sync.RWMutex
	books    map[string]clobBookDoc
	requests atomic.Int64
}

// NewMockCLOBAPI starts a mock book API with no books installed.
func NewMockCLOBAPI() *MockCLOBAPI {
	mock := &MockCLOBAPI{books: make(map[string]clobBookDoc)}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))

	return mock
}

func (m *MockCLOBAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/book" {
		http.NotFound(w, r)
		return
	}

	m.requests.Add(1)

	tokenID := r.URL.Query().Get("token_id")

	m.mu.RLock()
	book, ok := m.books[tokenID]
	m.mu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(book)
}

// SetBook installs the full ladder for one token.
func (m *MockCLOBAPI) SetBook(tokenID string, bids, asks []types.PriceLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.books[tokenID] = clobBookDoc{
		AssetID: tokenID,
		Bids:    wireLevels(bids),
		Asks:    wireLevels(asks),
	}
}

// Quote installs a one-level book with the same size resting on both sides.
func (m *MockCLOBAPI) Quote(tokenID string, bid, ask, size float64) {
	m.SetBook(tokenID,
		[]types.PriceLevel{{Price: bid, Size: size}},
		[]types.PriceLevel{{Price: ask, Size: size}})
}

// QuoteMarket installs one-level books for every token of a market, one
// cent around its listed outcome price, so hydrated midpoints land exactly
// on the listing.
func (m *MockCLOBAPI) QuoteMarket(market types.Market, size float64) {
	for i, tokenID := range market.TokenIDs {
		if i >= len(market.OutcomePrices) {
			break
		}

		p := market.OutcomePrices[i]
		m.Quote(tokenID, p-0.01, p+0.01, size)
	}
}

// Requests returns the number of book fetches served so far.
func (m *MockCLOBAPI) Requests() int64 {
	return m.requests.Load()
}

func wireLevels(levels []types.PriceLevel) []clobLevelDoc {
	out := make([]clobLevelDoc, len(levels))
	for i, l := range levels {
		out[i] = clobLevelDoc{
			Price: strconv.FormatFloat(l.Price, 'f', -1, 64),
			Size:  strconv.FormatFloat(l.Size, 'f', -1, 64),
		}
	}

	return out
}

// MockExitStore is an in-memory exit sink that records every saved record
// for assertions. It satisfies the storage.Storage interface.
type MockExitStore struct {
	mu      sync.Mutex
	records []types.ExitRecord
}

// NewMockExitStore creates an empty exit store.
func NewMockExitStore() *MockExitStore {
	return &MockExitStore{}
}

// SaveExit appends the record.
func (s *MockExitStore) SaveExit(_ context.Context, rec types.ExitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	return nil
}

// Close is a no-op.
func (s *MockExitStore) Close() error {
	return nil
}

// Records returns a copy of everything saved so far.
func (s *MockExitStore) Records() []types.ExitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ExitRecord, len(s.records))
	copy(out, s.records)

	return out
}
