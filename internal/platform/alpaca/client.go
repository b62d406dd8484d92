package alpaca

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is the brokerage façade: market-data subscriptions over WebSocket
// plus the order and asset REST calls.
type Client struct {
	settings   Settings
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
	newOrderID func() string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the REST HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a client from immutable settings.
func NewClient(settings Settings, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		settings: settings,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		logger:     logger.With(slog.String("component", "alpaca")),
		newOrderID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the client's configuration.
func (c *Client) Settings() Settings { return c.settings }

// Subscribe opens a stream for kind, authenticates, sends req and returns the
// live session. Connection failures are retried with exponential backoff up
// to the configured number of attempts; authentication failures are not.
// The caller owns the returned session and must Close it.
func (c *Client) Subscribe(ctx context.Context, kind domain.FeedKind, req SubscriptionRequest) (*Session, error) {
	url := c.settings.StreamURL(kind)
	log := c.logger.With(
		slog.String("feed", kind.String()),
		slog.String("mode", c.settings.Mode().String()),
	)

	if req.Empty() {
		log.Warn("subscription names no symbols; the stream will carry no market data")
	}

	conn, err := c.connect(ctx, url, log)
	if err != nil {
		return nil, err
	}

	sess := newSession(conn, req, log)
	if err := sess.start(); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// connect runs handshakes until one reaches StateReady, a non-connection
// failure occurs, or the attempts are used up.
func (c *Client) connect(ctx context.Context, url string, log *slog.Logger) (*websocket.Conn, error) {
	attempts := c.settings.ConnectAttempts()
	delay, maxDelay := c.settings.Backoff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		hs := NewHandshake(c.settings.AuthTimeout(), log)
		conn, err := hs.Run(ctx, c.dialer, url, c.settings.Credentials())
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrConnection) || ctx.Err() != nil || attempt == attempts {
			break
		}

		log.Warn("stream connect failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if waitBackoff(ctx, delay) {
			return nil, errors.Join(lastErr, ctx.Err())
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return nil, lastErr
}

// waitBackoff sleeps for delay and reports whether ctx ended first.
func waitBackoff(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
