// Package quotes provides a WebSocket client for a live grain quote feed.
// It maintains a thread-safe latest-quote cache with a staleness threshold;
// the cache is the only thing the rest of the system reads.
package quotes

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	dialTimeout = 30 * time.Second

	// Reconnection constants
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10

	// A cached quote older than this is not usable as a current price
	staleThreshold = 5 * time.Minute
)

// quoteMessage is the wire format of one feed update
type quoteMessage struct {
	CashPrice    float64 `json:"cash_price"`
	FuturesPrice float64 `json:"futures_price"`
	Timestamp    int64   `json:"timestamp"`
}

// Client consumes the quote feed and caches the latest observation
type Client struct {
	url string
	log zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	stopped    bool

	cacheMu    sync.RWMutex
	lastQuote  quoteMessage
	lastUpdate time.Time

	stopChan chan struct{}
}

// NewClient creates a new quote feed client
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url:      url,
		log:      log.With().Str("component", "quote_feed").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start connects and begins the read loop. A failed initial connection is not
// fatal; the client keeps retrying in the background.
func (c *Client) Start() error {
	c.log.Info().Str("url", c.url).Msg("Starting quote feed client")

	if err := c.connect(); err != nil {
		c.log.Warn().Err(err).Msg("Initial quote feed connection failed, will retry in background")
		go c.reconnectLoop()
		return err
	}

	c.mu.RLock()
	ctx := c.connCtx
	c.mu.RUnlock()
	go c.readMessages(ctx)

	return nil
}

// Stop gracefully shuts down the client
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	conn := c.conn
	cancel := c.cancelFunc
	c.mu.Unlock()

	close(c.stopChan)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}

	c.log.Info().Msg("Quote feed client stopped")
}

// LatestCashPrice returns the cached cash price and whether it is fresh
// enough to use as a current market price.
func (c *Client) LatestCashPrice() (float64, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	if c.lastUpdate.IsZero() || time.Since(c.lastUpdate) > staleThreshold {
		return 0, false
	}
	return c.lastQuote.CashPrice, true
}

// Connected reports whether the client currently holds an open connection
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}

	connCtx, connCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.connCtx = connCtx
	c.cancelFunc = connCancel
	c.mu.Unlock()

	c.log.Info().Msg("Quote feed connected")
	return nil
}

func (c *Client) readMessages(ctx context.Context) {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.RLock()
			stopped := c.stopped
			c.mu.RUnlock()
			if stopped {
				return
			}

			c.log.Warn().Err(err).Msg("Quote feed read failed, reconnecting")
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			go c.reconnectLoop()
			return
		}

		var quote quoteMessage
		if err := json.Unmarshal(data, &quote); err != nil {
			c.log.Warn().Err(err).Msg("Discarding malformed quote message")
			continue
		}

		c.cacheMu.Lock()
		c.lastQuote = quote
		c.lastUpdate = time.Now()
		c.cacheMu.Unlock()
	}
}

// reconnectLoop retries with exponential backoff until connected or stopped
func (c *Client) reconnectLoop() {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		delay := time.Duration(float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}

		select {
		case <-c.stopChan:
			return
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Quote feed reconnect failed")
			continue
		}

		c.mu.RLock()
		ctx := c.connCtx
		c.mu.RUnlock()
		go c.readMessages(ctx)
		return
	}

	c.log.Error().Msg("Quote feed reconnect attempts exhausted")
}
