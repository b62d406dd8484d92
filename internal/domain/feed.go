package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// TradingMode selects between the paper (sandbox) and live brokerage
// environments.
type TradingMode uint8

const (
	Paper TradingMode = iota
	Live
)

// IsLive reports whether real-money trading is enabled.
func (m TradingMode) IsLive() bool { return m == Live }

func (m TradingMode) String() string {
	if m == Live {
		return "live"
	}
	return "paper"
}

// ModeFromLive maps the usual live_trading flag onto a TradingMode.
func ModeFromLive(live bool) TradingMode {
	if live {
		return Live
	}
	return Paper
}

// FeedKind identifies a market-data channel family. Each kind has its own
// stream endpoint.
type FeedKind uint8

const (
	FeedStocks FeedKind = iota
	FeedCrypto
	FeedNews
	FeedOptions
	FeedTest
)

// FeedKinds lists every supported feed kind.
var FeedKinds = []FeedKind{FeedStocks, FeedCrypto, FeedNews, FeedOptions, FeedTest}

func (k FeedKind) String() string {
	switch k {
	case FeedStocks:
		return "stocks"
	case FeedCrypto:
		return "crypto"
	case FeedNews:
		return "news"
	case FeedOptions:
		return "options"
	case FeedTest:
		return "test"
	default:
		return fmt.Sprintf("feed(%d)", uint8(k))
	}
}

// ParseFeedKind parses a feed name such as "stocks" or "Crypto".
func ParseFeedKind(s string) (FeedKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stocks", "stock", "equities":
		return FeedStocks, nil
	case "crypto":
		return FeedCrypto, nil
	case "news":
		return FeedNews, nil
	case "options", "option":
		return FeedOptions, nil
	case "test":
		return FeedTest, nil
	default:
		return 0, fmt.Errorf("unknown feed kind %q (valid: stocks, crypto, news, options, test)", s)
	}
}

// Credentials is an API key pair. Both halves are redacted when formatted or
// logged.
type Credentials struct {
	KeyID     string
	SecretKey string
}

const redacted = "***"

func (c Credentials) String() string {
	return "Credentials{KeyID:" + mask(c.KeyID) + ", SecretKey:" + mask(c.SecretKey) + "}"
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key_id", mask(c.KeyID)),
		slog.String("secret_key", mask(c.SecretKey)),
	)
}

// Empty reports whether either half of the pair is missing.
func (c Credentials) Empty() bool {
	return c.KeyID == "" || c.SecretKey == ""
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
