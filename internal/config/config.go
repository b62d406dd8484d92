// Package config defines the brokerfeed configuration and its validation.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BROKERFEED_* environment variables.
type Config struct {
	Alpaca   AlpacaConfig `toml:"alpaca"`
	Stream   StreamConfig `toml:"stream"`
	Order    OrderConfig  `toml:"order"`
	Asset    AssetConfig  `toml:"asset"`
	Redis    RedisConfig  `toml:"redis"`
	Notify   NotifyConfig `toml:"notify"`
	Log      LogConfig    `toml:"log"`
	Mode     string       `toml:"mode"`
	LogLevel string       `toml:"log_level"`
}

// AlpacaConfig holds brokerage credentials and connection tuning.
type AlpacaConfig struct {
	KeyID       string `toml:"key_id"`
	SecretKey   string `toml:"secret_key"`
	LiveTrading bool   `toml:"live_trading"`
	// BaseURL and StreamURL override the endpoints derived from the trading
	// mode and feed kind. Leave empty in production.
	BaseURL           string   `toml:"base_url"`
	StreamURL         string   `toml:"stream_url"`
	AuthTimeout       duration `toml:"auth_timeout"`
	HTTPTimeout       duration `toml:"http_timeout"`
	ConnectAttempts   int      `toml:"connect_attempts"`
	ConnectBackoff    duration `toml:"connect_backoff"`
	ConnectBackoffMax duration `toml:"connect_backoff_max"`
}

// StreamConfig selects the feed and the symbols subscribed per channel.
type StreamConfig struct {
	Feed              string   `toml:"feed"`
	Trades            []string `toml:"trades"`
	Quotes            []string `toml:"quotes"`
	Bars              []string `toml:"bars"`
	UpdatedBars       []string `toml:"updated_bars"`
	DailyBars         []string `toml:"daily_bars"`
	OrderBooks        []string `toml:"orderbooks"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
	ReconnectMaxDelay duration `toml:"reconnect_max_delay"`
}

// OrderConfig is the order submitted in order mode.
type OrderConfig struct {
	Symbol        string  `toml:"symbol"`
	Quantity      int64   `toml:"quantity"`
	Side          string  `toml:"side"`
	Type          string  `toml:"type"`
	TimeInForce   string  `toml:"time_in_force"`
	LimitPrice    float64 `toml:"limit_price"`
	ClientOrderID string  `toml:"client_order_id"`
}

// AssetConfig is the lookup performed in asset mode.
type AssetConfig struct {
	Symbol string `toml:"symbol"`
}

// RedisConfig controls the optional event broadcast.
type RedisConfig struct {
	Enabled       bool   `toml:"enabled"`
	Addr          string `toml:"addr"`
	Password      string `toml:"password"`
	DB            int    `toml:"db"`
	PoolSize      int    `toml:"pool_size"`
	MaxRetries    int    `toml:"max_retries"`
	TLSEnabled    bool   `toml:"tls_enabled"`
	ChannelPrefix string `toml:"channel_prefix"`
	BufferSize    int    `toml:"buffer_size"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LogConfig controls log output. When File is set, logs are written to
// stdout and to a size-rotated file.
type LogConfig struct {
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values used when the TOML file
// omits a setting.
func Defaults() Config {
	return Config{
		Alpaca: AlpacaConfig{
			AuthTimeout:       duration{10 * time.Second},
			HTTPTimeout:       duration{30 * time.Second},
			ConnectAttempts:   3,
			ConnectBackoff:    duration{500 * time.Millisecond},
			ConnectBackoffMax: duration{10 * time.Second},
		},
		Stream: StreamConfig{
			Feed:              "stocks",
			ReconnectDelay:    duration{2 * time.Second},
			ReconnectMaxDelay: duration{60 * time.Second},
		},
		Order: OrderConfig{
			Side:        "buy",
			Type:        "market",
			TimeInForce: "day",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			ChannelPrefix: "md",
			BufferSize:    1024,
		},
		Notify: NotifyConfig{
			Events: []string{"session_failed", "order_submitted"},
		},
		Log: LogConfig{
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Mode:     "stream",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"stream": true,
	"asset":  true,
	"order":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validOrderTypes = map[string]bool{
	"market": true,
	"limit":  true,
}

var validTimeInForce = map[string]bool{
	"day": true, "gtc": true, "ioc": true, "fok": true, "opg": true, "cls": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// single error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: stream, asset, order)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Alpaca
	if c.Alpaca.KeyID == "" || c.Alpaca.SecretKey == "" {
		errs = append(errs, "alpaca.key_id and alpaca.secret_key are required")
	}
	if c.Alpaca.AuthTimeout.Duration <= 0 {
		errs = append(errs, "alpaca.auth_timeout must be > 0")
	}
	if c.Alpaca.HTTPTimeout.Duration <= 0 {
		errs = append(errs, "alpaca.http_timeout must be > 0")
	}
	if c.Alpaca.ConnectAttempts < 1 {
		errs = append(errs, "alpaca.connect_attempts must be >= 1")
	}
	if c.Alpaca.ConnectBackoff.Duration <= 0 || c.Alpaca.ConnectBackoffMax.Duration < c.Alpaca.ConnectBackoff.Duration {
		errs = append(errs, "alpaca.connect_backoff must be > 0 and <= alpaca.connect_backoff_max")
	}

	// Stream
	if _, err := domain.ParseFeedKind(c.Stream.Feed); err != nil {
		errs = append(errs, "stream.feed: "+err.Error())
	}
	if c.Stream.ReconnectDelay.Duration <= 0 || c.Stream.ReconnectMaxDelay.Duration < c.Stream.ReconnectDelay.Duration {
		errs = append(errs, "stream.reconnect_delay must be > 0 and <= stream.reconnect_max_delay")
	}

	// Mode-specific inputs
	switch mode {
	case "order":
		errs = append(errs, c.Order.validate()...)
	case "asset":
		if strings.TrimSpace(c.Asset.Symbol) == "" {
			errs = append(errs, "asset.symbol is required in asset mode")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when redis.enabled = true")
		}
		if c.Redis.BufferSize < 1 {
			errs = append(errs, "redis.buffer_size must be >= 1")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify.telegram_token and notify.telegram_chat_id must be set together")
	}

	// Log
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("unknown log.format %q (valid: json, text)", c.Log.Format))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, "log.max_size_mb must be > 0 when log.file is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (o OrderConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(o.Symbol) == "" {
		errs = append(errs, "order.symbol is required in order mode")
	}
	if o.Quantity < 1 || o.Quantity > math.MaxUint32 {
		errs = append(errs, fmt.Sprintf("order.quantity must be between 1 and %d", uint32(math.MaxUint32)))
	}
	if s := strings.ToLower(o.Side); s != "buy" && s != "sell" {
		errs = append(errs, fmt.Sprintf("unknown order.side %q (valid: buy, sell)", o.Side))
	}
	switch t := strings.ToLower(o.Type); {
	case !validOrderTypes[t]:
		errs = append(errs, fmt.Sprintf("unknown order.type %q (valid: market, limit)", o.Type))
	case t == "limit" && !(o.LimitPrice > 0):
		errs = append(errs, "order.limit_price must be > 0 for a limit order")
	case t == "market" && o.LimitPrice != 0:
		errs = append(errs, "order.limit_price is only valid for a limit order")
	}
	if o.TimeInForce != "" && !validTimeInForce[strings.ToLower(o.TimeInForce)] {
		errs = append(errs, fmt.Sprintf("unknown order.time_in_force %q (valid: day, gtc, ioc, fok, opg, cls)", o.TimeInForce))
	}
	return errs
}

// Credentials returns the brokerage key pair.
func (c *Config) Credentials() domain.Credentials {
	return domain.Credentials{KeyID: c.Alpaca.KeyID, SecretKey: c.Alpaca.SecretKey}
}

// TradingMode maps alpaca.live_trading onto a domain.TradingMode.
func (c *Config) TradingMode() domain.TradingMode {
	return domain.ModeFromLive(c.Alpaca.LiveTrading)
}

// FeedKind returns the parsed stream.feed. Call after Validate.
func (c *Config) FeedKind() domain.FeedKind {
	kind, _ := domain.ParseFeedKind(c.Stream.Feed)
	return kind
}

// DomainOrder converts the [order] section. Call after Validate.
func (c *Config) DomainOrder() domain.Order {
	return domain.Order{
		Symbol:        strings.TrimSpace(c.Order.Symbol),
		Quantity:      uint32(c.Order.Quantity),
		Side:          domain.OrderSide(strings.ToLower(c.Order.Side)),
		Type:          domain.OrderType(strings.ToLower(c.Order.Type)),
		TimeInForce:   domain.TimeInForce(strings.ToLower(c.Order.TimeInForce)),
		LimitPrice:    c.Order.LimitPrice,
		ClientOrderID: c.Order.ClientOrderID,
	}
}
