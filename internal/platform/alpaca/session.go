package alpaca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/gorilla/websocket"
)

// Session is an authenticated stream connection. It sends its subscription
// once and then yields the decoded contents of every data frame, in order,
// until the transport closes. A Session has a single reader and is never
// reopened; build a new one through Client.Subscribe instead.
type Session struct {
	conn   *websocket.Conn
	sub    SubscriptionRequest
	logger *slog.Logger

	started   bool
	closing   atomic.Bool
	closeOnce sync.Once

	mu    sync.Mutex
	state ConnectionState
}

func newSession(conn *websocket.Conn, sub SubscriptionRequest, logger *slog.Logger) *Session {
	return &Session{
		conn:   conn,
		sub:    sub,
		logger: logger,
		state:  StateReady,
	}
}

// start writes the subscription message. It must run before the first read.
func (s *Session) start() error {
	if s.started {
		return fmt.Errorf("alpaca/stream: %w", domain.ErrAlreadyStarted)
	}
	s.started = true

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(s.sub); err != nil {
		return fmt.Errorf("alpaca/stream: send subscription: %w", err)
	}
	s.conn.SetWriteDeadline(time.Time{})

	s.logger.Info("stream subscribed",
		slog.Int("trades", len(s.sub.Trades)),
		slog.Int("quotes", len(s.sub.Quotes)),
		slog.Int("bars", len(s.sub.Bars)),
		slog.Int("updated_bars", len(s.sub.UpdatedBars)),
		slog.Int("daily_bars", len(s.sub.DailyBars)),
		slog.Int("orderbooks", len(s.sub.OrderBooks)),
	)
	return nil
}

// Subscription returns the request this session subscribed with.
func (s *Session) Subscription() SubscriptionRequest { return s.sub }

// State returns StateReady while the session is open and StateClosed after.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recv blocks until the next data frame and returns its decode outcomes.
// Text and binary frames are both decoded: the upstream uses binary framing
// in one trading mode and text in the other. Ping, pong and close frames are
// handled by the transport and never reach the caller.
//
// Recv returns io.EOF after a normal closure or a local Close, and an error
// matching domain.ErrSessionClosed when the transport fails.
func (s *Session) Recv() ([]Decoded, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.setState(StateClosed)
		if s.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("alpaca/stream: %w: %w", domain.ErrSessionClosed, err)
	}
	return Decode(data), nil
}

// Frames yields one batch of decode outcomes per inbound frame. Cancelling
// ctx closes the session; the sequence then ends with ctx.Err(). A clean
// upstream closure ends the sequence without an error.
func (s *Session) Frames(ctx context.Context) iter.Seq2[[]Decoded, error] {
	return func(yield func([]Decoded, error) bool) {
		stop := context.AfterFunc(ctx, func() { s.Close() })
		defer stop()

		for {
			batch, err := s.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					if ctxErr := ctx.Err(); ctxErr != nil {
						yield(nil, ctxErr)
					}
					return
				}
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// Events flattens Frames into individual events. Per-record failures are
// yielded as *DecodeError values and the sequence continues; any other error
// is terminal.
func (s *Session) Events(ctx context.Context) iter.Seq2[domain.MarketEvent, error] {
	return func(yield func(domain.MarketEvent, error) bool) {
		for batch, err := range s.Frames(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, d := range batch {
				if !yield(d.Event, d.Err) {
					return
				}
			}
		}
	}
}

// Close sends a normal close frame and closes the transport. It is safe to
// call more than once and from another goroutine than the reader.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
		s.setState(StateClosed)
	})
	return err
}

func (s *Session) setState(st ConnectionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
