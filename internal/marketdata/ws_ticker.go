package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSTickerConfig configures WSTicker behavior.
type WSTickerConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
}

// DefaultWSTickerConfig returns default ticker configuration.
func DefaultWSTickerConfig() WSTickerConfig {
	return WSTickerConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSTicker keeps a live last-trade price from an exchange trade stream
// over WebSocket. It implements PriceSource so monitors can poll it
// without an HTTP round trip per tick.
type WSTicker struct {
	endpoint string
	config   WSTickerConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	priceMu   sync.RWMutex
	lastPrice float64
	lastSeen  time.Time

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// tradeMessage is the exchange trade-stream payload. The price arrives as
// a decimal string.
type tradeMessage struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
}

// NewWSTicker connects to the trade stream endpoint and starts consuming
// ticks. The endpoint carries the symbol, e.g.
// wss://stream.binance.com:9443/ws/btcusdt@trade.
func NewWSTicker(ctx context.Context, endpoint string, config *WSTickerConfig) (*WSTicker, error) {
	cfg := DefaultWSTickerConfig()
	if config != nil {
		cfg = *config
	}

	t := &WSTicker{
		endpoint: endpoint,
		config:   cfg,
		done:     make(chan struct{}),
	}

	if err := t.connect(ctx); err != nil {
		return nil, err
	}

	t.wg.Add(1)
	go t.readLoop()

	t.wg.Add(1)
	go t.pingLoop()

	return t, nil
}

func (t *WSTicker) connect(ctx context.Context) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	t.conn = conn
	return nil
}

// LatestPrice returns the most recent trade price. The assetID argument is
// ignored: a ticker is bound to one stream at construction. ErrNoData
// until the first tick arrives.
func (t *WSTicker) LatestPrice(_ context.Context, _ string) (float64, error) {
	t.priceMu.RLock()
	defer t.priceMu.RUnlock()
	if t.lastSeen.IsZero() {
		return 0, fmt.Errorf("%w: no tick received yet", ErrNoData)
	}
	return t.lastPrice, nil
}

// LastSeen reports when the most recent tick arrived; zero before the
// first tick. Lets callers detect a stale stream.
func (t *WSTicker) LastSeen() time.Time {
	t.priceMu.RLock()
	defer t.priceMu.RUnlock()
	return t.lastSeen
}

// Close shuts the ticker down.
func (t *WSTicker) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	close(t.done)

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.conn.Close()
	}
	t.connMu.Unlock()

	t.wg.Wait()
	return nil
}

// readLoop consumes trade messages and caches the price, reconnecting
// with exponential backoff on connection errors.
func (t *WSTicker) readLoop() {
	defer t.wg.Done()

	reconnectDelay := t.config.ReconnectDelay

	for !t.closed.Load() {
		t.connMu.Lock()
		conn := t.conn
		t.connMu.Unlock()

		if conn == nil {
			select {
			case <-t.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if t.closed.Load() {
				return
			}

			if !t.reconnecting.Swap(true) {
				go t.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > t.config.MaxReconnectDelay {
				reconnectDelay = t.config.MaxReconnectDelay
			}

			select {
			case <-t.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = t.config.ReconnectDelay

		t.handleMessage(message)
	}
}

func (t *WSTicker) handleMessage(message []byte) {
	var trade tradeMessage
	if err := json.Unmarshal(message, &trade); err != nil {
		return
	}
	if trade.EventType != "trade" || trade.Price == "" {
		return
	}
	price, err := strconv.ParseFloat(trade.Price, 64)
	if err != nil {
		return
	}

	t.priceMu.Lock()
	t.lastPrice = price
	t.lastSeen = time.Now()
	t.priceMu.Unlock()
}

// reconnect keeps dialing with exponential backoff until a connection is
// established or the ticker is closed. The cached price survives the gap,
// so monitor reads during a reconnect see the last known tick.
func (t *WSTicker) reconnect(delay time.Duration) {
	defer t.reconnecting.Store(false)

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	for !t.closed.Load() {
		select {
		case <-t.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := t.connect(ctx)
		cancel()
		if err == nil {
			return
		}

		delay *= 2
		if delay > t.config.MaxReconnectDelay {
			delay = t.config.MaxReconnectDelay
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (t *WSTicker) pingLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.connMu.Lock()
			if t.conn != nil {
				t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
				if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect.
				}
			}
			t.connMu.Unlock()
		}
	}
}

var _ PriceSource = (*WSTicker)(nil)
