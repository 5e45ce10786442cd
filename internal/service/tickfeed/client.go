package tickfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinSeries/internal/domain/models"
	drepo "FinSeries/internal/domain/repository"
	applogger "FinSeries/pkg/logger"

	"github.com/gorilla/websocket"
)

var errNotConnected = errors.New("tickfeed: not connected")

// Client is a TickStream backed by a websocket feed. Frames look like
// {"type":"tick","data":[{"s":"AAPL","p":101.2,"v":3,"t":1769508000000}]}.
type Client struct {
	url            string
	series         []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	ready     chan struct{}
}

type Option func(*Client)

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// WithTiming sets the reconnect delay and the keepalive ping interval.
func WithTiming(reconnectDelay, pingInterval time.Duration) Option {
	return func(c *Client) {
		if reconnectDelay >= 0 {
			c.reconnectDelay = reconnectDelay
		}
		if pingInterval > 0 {
			c.pingInterval = pingInterval
		}
	}
}

// New creates a feed client that subscribes to series after connecting.
func New(url string, series []string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		series:         series,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		ready:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("tickfeed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	if c.l != nil {
		c.l.Info("tickfeed: connected", applogger.String("url", c.url))
	}
	return nil
}

// Subscribe subscribes to the configured series.
func (c *Client) Subscribe(ctx context.Context) error {
	for _, s := range c.series {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(msg) }); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		if c.l != nil {
			c.l.Debug("tickfeed: subscribed", applogger.String("series", s))
		}
	}
	return nil
}

func (c *Client) write(fn func(*websocket.Conn) error) error {
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !ok {
		return errNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return fn(conn)
}

type frame struct {
	Type string               `json:"type"`
	Data []models.TickMessage `json:"data"`
}

// Read streams ticks until ctx is done. A read error is reported on the
// error channel and reading resumes once Connect succeeds again.
func (c *Client) Read(ctx context.Context) (<-chan *models.TickMessage, <-chan error) {
	ticks := make(chan *models.TickMessage, 1024)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)

	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				if !c.waitReady(ctx) {
					return
				}
				continue
			}

			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case errs <- fmt.Errorf("tickfeed read: %w", err):
				default:
				}
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
					c.connected = false
				}
				c.mu.Unlock()
				continue
			}

			var f frame
			if err := json.Unmarshal(b, &f); err != nil || (f.Type != "tick" && f.Type != "trade") {
				continue
			}
			for i := range f.Data {
				tick := f.Data[i]
				select {
				case ticks <- &tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ticks, errs
}

func (c *Client) waitReady(ctx context.Context) bool {
	select {
	case <-c.ready:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.write(func(conn *websocket.Conn) error {
				return conn.WriteMessage(websocket.PingMessage, nil)
			})
		}
	}
}

// Reconnect closes, waits and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.TickStream = (*Client)(nil)
