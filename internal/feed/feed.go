// Package feed streams real-time market events from the CLOB websocket
// channel into an in-memory price cache. The feed is observational:
// trading cycles run off REST fetches, so a stale or disconnected feed
// never blocks the engine.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types carried on the market channel.
const (
	EventPriceUpdate = "price_update"
	EventTrade       = "trade"
	EventBookUpdate  = "book_update"
)

// Message is a single event decoded from the market channel.
type Message struct {
	Type      string  `json:"type"`
	MarketID  string  `json:"market_id"`
	TokenID   string  `json:"token_id,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Size      float64 `json:"size,omitempty"`
	Side      string  `json:"side,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// PricePoint is the cached last price for a token.
type PricePoint struct {
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a copy of the feed state for the control plane.
type Snapshot struct {
	Connected  bool                  `json:"connected"`
	Subscribed int                   `json:"subscribed"`
	Prices     map[string]PricePoint `json:"prices"`
	LastEvent  time.Time             `json:"last_event"`
}

// subscribeRequest is the market-channel subscription frame.
type subscribeRequest struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Markets []string `json:"markets"`
}

// Config holds feed client configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	EventBufferSize       int
	Logger                *zap.Logger
}

// Client maintains a single websocket connection to the market channel.
type Client struct {
	url     string
	logger  *zap.Logger
	backoff *backoff

	dialTimeout  time.Duration
	pongTimeout  time.Duration
	pingInterval time.Duration

	events chan Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	conn       *websocket.Conn
	subscribed map[string]bool
	prices     map[string]PricePoint
	lastEvent  time.Time

	writeMu sync.Mutex

	connected atomic.Bool
	lastPong  atomic.Int64 // UnixNano
	connStart atomic.Int64 // UnixNano
}

// New creates a feed client. Zero durations and buffer sizes fall back
// to defaults suitable for the public CLOB endpoint.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("websocket URL cannot be empty")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	pongTimeout := cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 30 * time.Second
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 10 * time.Second
	}
	initialDelay := cfg.ReconnectInitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	maxDelay := cfg.ReconnectMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	mult := cfg.ReconnectBackoffMult
	if mult < 1 {
		mult = 2.0
	}
	bufferSize := cfg.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		url:          cfg.URL,
		logger:       cfg.Logger,
		backoff:      newBackoff(initialDelay, maxDelay, mult, nil),
		dialTimeout:  dialTimeout,
		pongTimeout:  pongTimeout,
		pingInterval: pingInterval,
		events:       make(chan Message, bufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]bool),
		prices:       make(map[string]PricePoint),
	}, nil
}

// Start dials the endpoint and launches the read, ping, and reconnect
// loops. A failed initial dial is retried by the reconnect loop, so
// the feed comes up without caller intervention once the endpoint is
// reachable.
func (c *Client) Start() {
	c.logger.Info("feed-starting", zap.String("url", c.url))

	if err := c.connect(c.ctx); err != nil {
		c.logger.Warn("feed-initial-connect-failed", zap.Error(err))
	} else {
		if err := c.resubscribeAll(); err != nil {
			c.logger.Warn("feed-resubscribe-failed", zap.Error(err))
		}
		c.wg.Add(1)
		go c.readLoop()
	}

	c.wg.Add(2)
	go c.pingLoop()
	go c.reconnectLoop()
}

// connect establishes the websocket connection.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.dialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		conn.Close()
		return cerr
	}

	conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	now := time.Now()
	c.connected.Store(true)
	c.lastPong.Store(now.UnixNano())
	c.connStart.Store(now.UnixNano())
	ActiveConnections.Set(1)

	c.logger.Info("feed-connected", zap.String("url", c.url))

	return nil
}

// Subscribe registers token ids on the market channel. Ids already
// subscribed are skipped. While disconnected the ids are only recorded;
// the next successful connect resubscribes everything tracked.
func (c *Client) Subscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	newTokens := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if !c.subscribed[id] {
			c.subscribed[id] = true
			newTokens = append(newTokens, id)
		}
	}
	total := len(c.subscribed)
	conn := c.conn
	c.mu.Unlock()

	if len(newTokens) == 0 {
		c.logger.Debug("feed-tokens-already-subscribed")
		return nil
	}

	SubscriptionCount.Set(float64(total))

	if conn == nil || !c.connected.Load() {
		c.logger.Debug("feed-subscribe-deferred", zap.Int("count", len(newTokens)))
		return nil
	}

	if err := c.writeSubscribe(conn, newTokens); err != nil {
		// Tokens stay tracked: the resubscribe after the next
		// reconnect covers them.
		return fmt.Errorf("write subscribe frame: %w", err)
	}

	c.logger.Info("feed-subscribed",
		zap.Int("new_count", len(newTokens)),
		zap.Int("total_count", total))

	return nil
}

func (c *Client) writeSubscribe(conn *websocket.Conn, tokenIDs []string) error {
	frame := subscribeRequest{
		Type:    "subscribe",
		Channel: "market",
		Markets: tokenIDs,
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop drains one connection. A fresh loop is launched for every
// established connection, so the loop exits on the first read error.
func (c *Client) readLoop() {
	defer c.wg.Done()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("feed-read-error", zap.Error(err))
			}
			if start := c.connStart.Load(); start > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(0, start)).Seconds())
			}
			c.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	if len(raw) <= 2 {
		c.logger.Debug("feed-heartbeat", zap.Int("bytes", len(raw)))
		return
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		preview := string(raw)
		if len(preview) > 100 {
			preview = preview[:100]
		}
		c.logger.Debug("feed-unparseable-message",
			zap.Int("bytes", len(raw)),
			zap.String("preview", preview))
		return
	}

	now := time.Now()

	switch msg.Type {
	case EventPriceUpdate:
		EventsReceivedTotal.WithLabelValues(EventPriceUpdate).Inc()
		c.mu.Lock()
		if msg.TokenID != "" {
			c.prices[msg.TokenID] = PricePoint{Price: msg.Price, UpdatedAt: now}
		}
		c.lastEvent = now
		cached := len(c.prices)
		c.mu.Unlock()
		CachedPrices.Set(float64(cached))
	case EventTrade, EventBookUpdate:
		EventsReceivedTotal.WithLabelValues(msg.Type).Inc()
		c.mu.Lock()
		c.lastEvent = now
		c.mu.Unlock()
	default:
		EventsReceivedTotal.WithLabelValues("unknown").Inc()
		c.logger.Debug("feed-unknown-event", zap.String("type", msg.Type))
		return
	}

	select {
	case c.events <- msg:
	default:
		c.logger.Warn("feed-event-channel-full", zap.String("type", msg.Type))
		EventsDroppedTotal.WithLabelValues("channel_full").Inc()
	}
}

// pingLoop keeps the connection alive and closes it when the peer
// stops answering pings, which hands recovery to the reconnect loop.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				continue
			}

			if last := c.lastPong.Load(); last > 0 && time.Since(time.Unix(0, last)) > c.pongTimeout {
				c.logger.Warn("feed-pong-timeout",
					zap.Duration("since_last_pong", time.Since(time.Unix(0, last))))
				conn.Close()
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				c.logger.Warn("feed-ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop redials with backoff whenever the connection drops.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.logger.Warn("feed-disconnected")

		if err := c.backoff.retry(c.ctx, c.logger, c.connect); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("feed-reconnect-aborted", zap.Error(err))
			continue
		}

		if err := c.resubscribeAll(); err != nil {
			c.logger.Error("feed-resubscribe-failed", zap.Error(err))
			c.closeConn()
			c.connected.Store(false)
			continue
		}

		c.wg.Add(1)
		go c.readLoop()
	}
}

// resubscribeAll replays every tracked subscription on the current
// connection.
func (c *Client) resubscribeAll() error {
	c.mu.RLock()
	tokenIDs := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		tokenIDs = append(tokenIDs, id)
	}
	conn := c.conn
	c.mu.RUnlock()

	if len(tokenIDs) == 0 || conn == nil {
		return nil
	}

	if err := c.writeSubscribe(conn, tokenIDs); err != nil {
		return fmt.Errorf("write resubscribe frame: %w", err)
	}

	c.logger.Info("feed-resubscribed", zap.Int("count", len(tokenIDs)))

	return nil
}

func (c *Client) closeConn() {
	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()
}

// Price returns the cached last price for a token id.
func (c *Client) Price(tokenID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.prices[tokenID]
	return p.Price, ok
}

// Snapshot returns a copy of the feed state.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prices := make(map[string]PricePoint, len(c.prices))
	for id, p := range c.prices {
		prices[id] = p
	}

	return Snapshot{
		Connected:  c.connected.Load(),
		Subscribed: len(c.subscribed),
		Prices:     prices,
		LastEvent:  c.lastEvent,
	}
}

// Events returns the broadcast channel of decoded feed events. Events
// are dropped rather than block the read loop when the buffer fills.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Connected reports whether the websocket is currently established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close tears down the connection and stops all loops.
func (c *Client) Close() error {
	c.logger.Info("closing-feed-client")

	c.cancel()
	c.closeConn()
	c.wg.Wait()

	close(c.events)
	ActiveConnections.Set(0)

	c.logger.Info("feed-client-closed")

	return nil
}
