package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/brokerfeed/internal/bus/redis"
	"github.com/alanyoungcy/brokerfeed/internal/config"
	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/alanyoungcy/brokerfeed/internal/notify"
	"github.com/alanyoungcy/brokerfeed/internal/platform/alpaca"
)

// Dependencies bundles what the modes need. It is constructed by Wire and torn
// down by the returned cleanup function.
type Dependencies struct {
	Client *alpaca.Client

	// Sink receives every streamed event. Nil when broadcasting is off.
	Sink domain.EventSink

	Notifier *notify.Notifier
}

// Wire constructs the dependencies for cfg and returns them together with a
// cleanup function that releases them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Client: alpaca.NewClient(
			settingsFromConfig(cfg),
			logger,
			alpaca.WithHTTPClient(&http.Client{Timeout: cfg.Alpaca.HTTPTimeout.Duration}),
		),
	}

	// --- Redis (stream mode only) ---
	if cfg.Redis.Enabled && strings.EqualFold(cfg.Mode, "stream") {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Sink = redis.NewEventPublisher(redisClient, cfg.Redis.ChannelPrefix)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func settingsFromConfig(cfg *config.Config) alpaca.Settings {
	creds := cfg.Credentials()
	return alpaca.NewSettingsBuilder().
		KeyID(creds.KeyID).
		SecretKey(creds.SecretKey).
		Mode(cfg.TradingMode()).
		BaseURL(cfg.Alpaca.BaseURL).
		StreamURL(cfg.Alpaca.StreamURL).
		AuthTimeout(cfg.Alpaca.AuthTimeout.Duration).
		ConnectAttempts(cfg.Alpaca.ConnectAttempts).
		Backoff(cfg.Alpaca.ConnectBackoff.Duration, cfg.Alpaca.ConnectBackoffMax.Duration).
		Build()
}

func subscriptionFromConfig(sc config.StreamConfig) alpaca.SubscriptionRequest {
	return alpaca.NewSubscriptionBuilder().
		Trades(sc.Trades...).
		Quotes(sc.Quotes...).
		Bars(sc.Bars...).
		UpdatedBars(sc.UpdatedBars...).
		DailyBars(sc.DailyBars...).
		OrderBooks(sc.OrderBooks...).
		Build()
}
