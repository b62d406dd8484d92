package alpaca

import (
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

const (
	defaultConnectAttempts = 3
	defaultInitialBackoff  = 500 * time.Millisecond
	defaultMaxBackoff      = 10 * time.Second
)

// Settings is the immutable client configuration. Build one with
// NewSettingsBuilder.
type Settings struct {
	creds           domain.Credentials
	mode            domain.TradingMode
	baseURL         string
	streamURL       string
	authTimeout     time.Duration
	connectAttempts int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
}

func (s Settings) Credentials() domain.Credentials { return s.creds }
func (s Settings) Mode() domain.TradingMode        { return s.mode }
func (s Settings) AuthTimeout() time.Duration      { return s.authTimeout }
func (s Settings) ConnectAttempts() int            { return s.connectAttempts }

// BaseURL returns the REST API root: the override when one was set, otherwise
// the root for the trading mode.
func (s Settings) BaseURL() string {
	if s.baseURL != "" {
		return s.baseURL
	}
	return ResolveBaseURL(s.mode)
}

// StreamURL returns the stream endpoint for kind, honouring an override.
func (s Settings) StreamURL(kind domain.FeedKind) string {
	if s.streamURL != "" {
		return s.streamURL
	}
	return ResolveStreamURL(kind, s.mode)
}

// Backoff returns the initial and maximum delay between connect attempts.
func (s Settings) Backoff() (initial, max time.Duration) {
	return s.initialBackoff, s.maxBackoff
}

// SettingsBuilder assembles a Settings value. The zero value is usable.
type SettingsBuilder struct {
	s Settings
}

// NewSettingsBuilder returns a builder for paper trading with default
// timeouts.
func NewSettingsBuilder() *SettingsBuilder {
	return &SettingsBuilder{s: Settings{
		mode:            domain.Paper,
		authTimeout:     defaultAuthTimeout,
		connectAttempts: defaultConnectAttempts,
		initialBackoff:  defaultInitialBackoff,
		maxBackoff:      defaultMaxBackoff,
	}}
}

func (b *SettingsBuilder) KeyID(key string) *SettingsBuilder {
	b.s.creds.KeyID = key
	return b
}

func (b *SettingsBuilder) SecretKey(secret string) *SettingsBuilder {
	b.s.creds.SecretKey = secret
	return b
}

// Mode selects paper or live trading.
func (b *SettingsBuilder) Mode(mode domain.TradingMode) *SettingsBuilder {
	b.s.mode = mode
	return b
}

// BaseURL overrides the REST root derived from the trading mode.
func (b *SettingsBuilder) BaseURL(url string) *SettingsBuilder {
	b.s.baseURL = url
	return b
}

// StreamURL overrides endpoint resolution for every feed kind.
func (b *SettingsBuilder) StreamURL(url string) *SettingsBuilder {
	b.s.streamURL = url
	return b
}

func (b *SettingsBuilder) AuthTimeout(d time.Duration) *SettingsBuilder {
	b.s.authTimeout = d
	return b
}

// ConnectAttempts sets how many times Subscribe dials before giving up on a
// connection failure.
func (b *SettingsBuilder) ConnectAttempts(n int) *SettingsBuilder {
	b.s.connectAttempts = n
	return b
}

func (b *SettingsBuilder) Backoff(initial, max time.Duration) *SettingsBuilder {
	b.s.initialBackoff = initial
	b.s.maxBackoff = max
	return b
}

// Build returns the settings, substituting defaults for unset or
// non-positive durations and counts.
func (b *SettingsBuilder) Build() Settings {
	s := b.s
	if s.authTimeout <= 0 {
		s.authTimeout = defaultAuthTimeout
	}
	if s.connectAttempts < 1 {
		s.connectAttempts = defaultConnectAttempts
	}
	if s.initialBackoff <= 0 {
		s.initialBackoff = defaultInitialBackoff
	}
	if s.maxBackoff < s.initialBackoff {
		s.maxBackoff = s.initialBackoff
	}
	return s
}
