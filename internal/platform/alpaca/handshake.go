package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/gorilla/websocket"
)

// ConnectionState is the lifecycle state of a stream connection.
type ConnectionState uint8

const (
	StateOpening ConnectionState = iota
	StateAuthenticating
	StateReady
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// FailureReason explains why a handshake ended in StateFailed.
type FailureReason string

const (
	ReasonConnection    FailureReason = "connection"
	ReasonAuthRejected  FailureReason = "auth-rejected"
	ReasonAuthAmbiguous FailureReason = "auth-ambiguous"
)

// sentinel maps a reason onto the domain error callers match with errors.Is.
func (r FailureReason) sentinel() error {
	switch r {
	case ReasonConnection:
		return domain.ErrConnection
	case ReasonAuthRejected:
		return domain.ErrAuthRejected
	default:
		return domain.ErrAuthAmbiguous
	}
}

// HandshakeError is returned when a connection could not be brought to
// StateReady. It matches domain.ErrConnection, domain.ErrAuthRejected or
// domain.ErrAuthAmbiguous, as well as the underlying cause.
type HandshakeError struct {
	// State is where the handshake was when it failed.
	State  ConnectionState
	Reason FailureReason
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("alpaca/stream: handshake failed while %s (%s): %v", e.State, e.Reason, e.Err)
}

func (e *HandshakeError) Unwrap() []error {
	return []error{e.Reason.sentinel(), e.Err}
}

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// defaultAuthTimeout bounds the wait for the authentication verdict.
	defaultAuthTimeout = 10 * time.Second
)

// Handshake drives one connection from dial to an authenticated, ready
// transport. A Handshake is single use.
type Handshake struct {
	authTimeout time.Duration
	logger      *slog.Logger

	state  ConnectionState
	reason FailureReason
}

// NewHandshake creates a handshake that waits at most authTimeout for the
// authentication verdict. A non-positive timeout uses the default.
func NewHandshake(authTimeout time.Duration, logger *slog.Logger) *Handshake {
	if authTimeout <= 0 {
		authTimeout = defaultAuthTimeout
	}
	return &Handshake{
		authTimeout: authTimeout,
		logger:      logger,
		state:       StateOpening,
	}
}

// State returns the current state.
func (h *Handshake) State() ConnectionState { return h.state }

// Reason returns the failure reason once State is StateFailed.
func (h *Handshake) Reason() FailureReason { return h.reason }

// Run dials url, authenticates with creds and returns the ready connection.
// Credentials are used for the auth message only and are not retained.
func (h *Handshake) Run(ctx context.Context, dialer *websocket.Dialer, url string, creds domain.Credentials) (*websocket.Conn, error) {
	h.state = StateOpening

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: HTTP %d: %w", url, resp.StatusCode, err)
		} else {
			err = fmt.Errorf("dial %s: %w", url, err)
		}
		return nil, h.fail(ReasonConnection, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, h.fail(ReasonConnection, fmt.Errorf("dial %s: unexpected status %d", url, resp.StatusCode))
	}

	h.state = StateAuthenticating
	h.logger.Debug("stream connected, authenticating", slog.String("url", url))

	// Cancelling ctx while waiting for the verdict closes the transport,
	// which unblocks the read below.
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	if err := h.authenticate(conn, creds); err != nil {
		stop()
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return nil, err
	}

	if !stop() {
		return nil, h.fail(ReasonAuthAmbiguous, fmt.Errorf("authenticated but %w", ctx.Err()))
	}

	h.state = StateReady
	h.logger.Info("stream authenticated", slog.String("url", url))
	return conn, nil
}

// authenticate sends the credentials and consumes messages until one carries
// a verdict. At most one pre-auth greeting is skipped.
func (h *Handshake) authenticate(conn *websocket.Conn, creds domain.Credentials) error {
	msg := authMessage{Action: "auth", Key: creds.KeyID, Secret: creds.SecretKey}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return h.fail(ReasonAuthAmbiguous, fmt.Errorf("send auth: %w", err))
	}

	conn.SetReadDeadline(time.Now().Add(h.authTimeout))
	greeted := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return h.fail(ReasonAuthAmbiguous, fmt.Errorf("await auth response: %w", err))
		}

		switch v := classifyAuthResponse(data); v {
		case verdictGreeting:
			if greeted {
				return h.fail(ReasonAuthAmbiguous, fmt.Errorf("repeated greeting: %s", truncate(data)))
			}
			greeted = true
			continue
		case verdictAuthenticated:
			conn.SetReadDeadline(time.Time{})
			return nil
		case verdictRejected:
			return h.fail(ReasonAuthRejected, fmt.Errorf("server said: %s", truncate(data)))
		default:
			return h.fail(ReasonAuthAmbiguous, fmt.Errorf("unclassified response: %s", truncate(data)))
		}
	}
}

func (h *Handshake) fail(reason FailureReason, err error) error {
	prev := h.state
	h.state = StateFailed
	h.reason = reason
	return &HandshakeError{State: prev, Reason: reason, Err: err}
}

// --------------------------------------------------------------------------
// Response classification
// --------------------------------------------------------------------------

type authVerdict uint8

const (
	verdictAmbiguous authVerdict = iota
	verdictGreeting
	verdictAuthenticated
	verdictRejected
)

var (
	rejectionMarkers = []string{"unauthorized", "not authenticated", "error", "failed", "forbidden"}
	successMarkers   = []string{"authenticated", "authorized", "success"}
)

// classifyAuthResponse reads the structured control records when the frame
// has them and falls back to substring matching on the raw text otherwise.
func classifyAuthResponse(data []byte) authVerdict {
	var records []controlRecord
	if err := json.Unmarshal(data, &records); err == nil {
		if v, ok := classifyControlRecords(records); ok {
			return v
		}
	}

	text := strings.ToLower(string(data))
	for _, m := range rejectionMarkers {
		if strings.Contains(text, m) {
			return verdictRejected
		}
	}
	for _, m := range successMarkers {
		if strings.Contains(text, m) {
			return verdictAuthenticated
		}
	}
	return verdictAmbiguous
}

// classifyControlRecords returns ok=false when the records are not all
// recognisable control records.
func classifyControlRecords(records []controlRecord) (authVerdict, bool) {
	if len(records) == 0 {
		return verdictAmbiguous, false
	}

	var authenticated, greeting bool
	for _, r := range records {
		switch {
		case r.T == "error":
			return verdictRejected, true
		case r.T == "success" && r.Msg == "authenticated":
			authenticated = true
		case r.T == "success" && r.Msg == "connected":
			greeting = true
		default:
			return verdictAmbiguous, false
		}
	}
	if authenticated {
		return verdictAuthenticated, true
	}
	if greeting {
		return verdictGreeting, true
	}
	return verdictAmbiguous, false
}

func truncate(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
