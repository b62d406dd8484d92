package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "BROKERFEED_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BROKERFEED_* environment variable overrides, and
// returns the final Config. An empty path skips the file so a deployment can
// be configured from the environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BROKERFEED_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Alpaca ──
	setStr(&cfg.Alpaca.KeyID, "ALPACA_KEY_ID")
	setStr(&cfg.Alpaca.SecretKey, "ALPACA_SECRET_KEY")
	setBool(&cfg.Alpaca.LiveTrading, "ALPACA_LIVE_TRADING")
	setStr(&cfg.Alpaca.BaseURL, "ALPACA_BASE_URL")
	setStr(&cfg.Alpaca.StreamURL, "ALPACA_STREAM_URL")
	setDuration(&cfg.Alpaca.AuthTimeout, "ALPACA_AUTH_TIMEOUT")
	setDuration(&cfg.Alpaca.HTTPTimeout, "ALPACA_HTTP_TIMEOUT")
	setInt(&cfg.Alpaca.ConnectAttempts, "ALPACA_CONNECT_ATTEMPTS")
	setDuration(&cfg.Alpaca.ConnectBackoff, "ALPACA_CONNECT_BACKOFF")
	setDuration(&cfg.Alpaca.ConnectBackoffMax, "ALPACA_CONNECT_BACKOFF_MAX")

	// ── Stream ──
	setStr(&cfg.Stream.Feed, "STREAM_FEED")
	setStringSlice(&cfg.Stream.Trades, "STREAM_TRADES")
	setStringSlice(&cfg.Stream.Quotes, "STREAM_QUOTES")
	setStringSlice(&cfg.Stream.Bars, "STREAM_BARS")
	setStringSlice(&cfg.Stream.UpdatedBars, "STREAM_UPDATED_BARS")
	setStringSlice(&cfg.Stream.DailyBars, "STREAM_DAILY_BARS")
	setStringSlice(&cfg.Stream.OrderBooks, "STREAM_ORDERBOOKS")
	setDuration(&cfg.Stream.ReconnectDelay, "STREAM_RECONNECT_DELAY")
	setDuration(&cfg.Stream.ReconnectMaxDelay, "STREAM_RECONNECT_MAX_DELAY")

	// ── Order ──
	setStr(&cfg.Order.Symbol, "ORDER_SYMBOL")
	setInt64(&cfg.Order.Quantity, "ORDER_QUANTITY")
	setStr(&cfg.Order.Side, "ORDER_SIDE")
	setStr(&cfg.Order.Type, "ORDER_TYPE")
	setStr(&cfg.Order.TimeInForce, "ORDER_TIME_IN_FORCE")
	setFloat(&cfg.Order.LimitPrice, "ORDER_LIMIT_PRICE")
	setStr(&cfg.Order.ClientOrderID, "ORDER_CLIENT_ORDER_ID")

	// ── Asset ──
	setStr(&cfg.Asset.Symbol, "ASSET_SYMBOL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.ChannelPrefix, "REDIS_CHANNEL_PREFIX")
	setInt(&cfg.Redis.BufferSize, "REDIS_BUFFER_SIZE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")

	// ── Log ──
	setStr(&cfg.Log.Format, "LOG_FORMAT")
	setStr(&cfg.Log.File, "LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "LOG_COMPRESS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Keys are given without the BROKERFEED_ prefix. Each
// only mutates the target when the variable is present, non-empty and parses.
// ---------------------------------------------------------------------------

func lookup(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v, ok := lookup(key); ok {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
