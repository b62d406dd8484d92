package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/alanyoungcy/brokerfeed/internal/platform/alpaca"
)

const (
	defaultReconnectDelay = 2 * time.Second
	maxReconnectDelay     = 60 * time.Second
)

// EventHandler is called for each decoded market event.
type EventHandler func(ctx context.Context, ev domain.MarketEvent)

// DecodeErrorHandler is called for each record the stream could not decode.
type DecodeErrorHandler func(ctx context.Context, err error)

// Stats is a snapshot of a feed's counters.
type Stats struct {
	Sessions     int64
	Events       int64
	DecodeErrors int64
}

// StreamFeed keeps one market-data subscription alive. Each connection is a
// fresh alpaca.Session; when a session ends for any reason other than an
// authentication failure, a new one is opened after a backoff delay.
type StreamFeed struct {
	client        *alpaca.Client
	kind          domain.FeedKind
	req           alpaca.SubscriptionRequest
	onEvent       EventHandler
	onDecodeError DecodeErrorHandler
	logger        *slog.Logger

	initialDelay time.Duration
	maxDelay     time.Duration

	sessions     atomic.Int64
	events       atomic.Int64
	decodeErrors atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// FeedOption customises a StreamFeed.
type FeedOption func(*StreamFeed)

// WithReconnectBackoff sets the first and the largest delay between sessions.
func WithReconnectBackoff(initial, max time.Duration) FeedOption {
	return func(f *StreamFeed) {
		if initial > 0 {
			f.initialDelay = initial
		}
		if max >= f.initialDelay {
			f.maxDelay = max
		}
	}
}

// WithDecodeErrorHandler replaces the default handler, which logs at debug.
func WithDecodeErrorHandler(h DecodeErrorHandler) FeedOption {
	return func(f *StreamFeed) { f.onDecodeError = h }
}

// NewStreamFeed creates a feed that subscribes to req on the kind endpoint
// and hands every event to onEvent.
func NewStreamFeed(client *alpaca.Client, kind domain.FeedKind, req alpaca.SubscriptionRequest, onEvent EventHandler, logger *slog.Logger, opts ...FeedOption) *StreamFeed {
	f := &StreamFeed{
		client:       client,
		kind:         kind,
		req:          req,
		onEvent:      onEvent,
		logger:       logger.With(slog.String("component", "stream_feed"), slog.String("feed", kind.String())),
		initialDelay: defaultReconnectDelay,
		maxDelay:     maxReconnectDelay,
		done:         make(chan struct{}),
	}
	f.onDecodeError = func(ctx context.Context, err error) {
		f.logger.DebugContext(ctx, "stream record skipped", slog.String("error", err.Error()))
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run keeps the subscription open until ctx is cancelled, Close is called,
// or authentication fails. It returns ctx.Err() on cancellation, nil after
// Close and the handshake error when credentials are refused.
func (f *StreamFeed) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	delay := f.initialDelay
	for {
		ready, err := f.runSession(ctx)
		if f.closed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if domain.IsFatalAuth(err) {
			f.logger.Error("stream authentication failed, not reconnecting", slog.String("error", err.Error()))
			return err
		}
		if ready {
			delay = f.initialDelay
		}

		attrs := []any{slog.Duration("delay", delay)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		f.logger.Warn("stream session ended, reconnecting", attrs...)

		select {
		case <-ctx.Done():
			if f.closed() {
				return nil
			}
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.maxDelay {
			delay = f.maxDelay
		}
	}
}

// runSession opens one session and drains it. ready reports whether the
// session got past the handshake.
func (f *StreamFeed) runSession(ctx context.Context) (ready bool, err error) {
	sess, err := f.client.Subscribe(ctx, f.kind, f.req)
	if err != nil {
		return false, err
	}
	defer sess.Close()
	f.sessions.Add(1)

	for ev, err := range sess.Events(ctx) {
		if err != nil {
			var de *alpaca.DecodeError
			if errors.As(err, &de) {
				f.decodeErrors.Add(1)
				f.onDecodeError(ctx, err)
				continue
			}
			return true, err
		}
		f.events.Add(1)
		if f.onEvent != nil {
			f.onEvent(ctx, ev)
		}
	}
	return true, nil
}

// Stats returns the feed's counters.
func (f *StreamFeed) Stats() Stats {
	return Stats{
		Sessions:     f.sessions.Load(),
		Events:       f.events.Load(),
		DecodeErrors: f.decodeErrors.Load(),
	}
}

// Close stops the feed.
func (f *StreamFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *StreamFeed) closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
