package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/alanyoungcy/brokerfeed/internal/feed"
)

// statsInterval is how often stream mode logs its counters.
const statsInterval = 30 * time.Second

// StreamMode keeps the configured subscription open. Every event is logged
// and, when a sink is wired, handed to a broadcaster goroutine. A full
// broadcast buffer drops events rather than stalling the stream reader.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	kind := a.cfg.FeedKind()
	a.logger.InfoContext(ctx, "starting stream mode",
		slog.String("feed", kind.String()),
		slog.String("endpoint", deps.Client.Settings().StreamURL(kind)),
	)

	g, ctx := errgroup.WithContext(ctx)

	var out chan domain.MarketEvent
	var dropped atomic.Int64
	if deps.Sink != nil {
		out = make(chan domain.MarketEvent, a.cfg.Redis.BufferSize)
		g.Go(func() error {
			return a.broadcast(ctx, deps.Sink, out)
		})
	}

	onEvent := func(ctx context.Context, ev domain.MarketEvent) {
		a.logger.DebugContext(ctx, "market event",
			slog.String("type", string(ev.Type())),
			slog.String("symbol", ev.EventSymbol()),
			slog.Any("event", ev),
		)
		if out == nil {
			return
		}
		select {
		case out <- ev:
		default:
			dropped.Add(1)
		}
	}

	stream := feed.NewStreamFeed(
		deps.Client,
		kind,
		subscriptionFromConfig(a.cfg.Stream),
		onEvent,
		a.logger,
		feed.WithReconnectBackoff(a.cfg.Stream.ReconnectDelay.Duration, a.cfg.Stream.ReconnectMaxDelay.Duration),
	)

	g.Go(func() error {
		defer stream.Close()
		err := stream.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// The group context is already done; deliver with a fresh one.
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			_ = deps.Notifier.SessionFailed(nctx, kind, err)
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				a.logStats(stream.Stats(), dropped.Load())
				return nil
			case <-ticker.C:
				a.logStats(stream.Stats(), dropped.Load())
			}
		}
	})

	return g.Wait()
}

// broadcast publishes events until ctx is done. Publish failures are logged
// and the event is dropped.
func (a *App) broadcast(ctx context.Context, sink domain.EventSink, in <-chan domain.MarketEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-in:
			if err := sink.Publish(ctx, ev); err != nil && ctx.Err() == nil {
				a.logger.WarnContext(ctx, "broadcast failed",
					slog.String("type", string(ev.Type())),
					slog.String("symbol", ev.EventSymbol()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (a *App) logStats(s feed.Stats, dropped int64) {
	a.logger.Info("stream stats",
		slog.Int64("sessions", s.Sessions),
		slog.Int64("events", s.Events),
		slog.Int64("decode_errors", s.DecodeErrors),
		slog.Int64("broadcast_dropped", dropped),
	)
}

// AssetMode looks up the configured symbol and logs the result.
func (a *App) AssetMode(ctx context.Context, deps *Dependencies) error {
	symbol := a.cfg.Asset.Symbol
	a.logger.InfoContext(ctx, "starting asset mode", slog.String("symbol", symbol))

	asset, err := deps.Client.GetAsset(ctx, symbol)
	if err != nil {
		return fmt.Errorf("asset mode: %w", err)
	}

	a.logger.InfoContext(ctx, "asset",
		slog.String("symbol", asset.Symbol),
		slog.String("exchange", asset.Exchange),
		slog.String("class", asset.Class),
		slog.String("name", asset.Name),
		slog.String("status", asset.Status),
		slog.Bool("tradable", asset.Tradable),
	)
	return nil
}

// OrderMode submits the configured order once.
func (a *App) OrderMode(ctx context.Context, deps *Dependencies) error {
	order := a.cfg.DomainOrder()
	mode := deps.Client.Settings().Mode()

	a.logger.InfoContext(ctx, "starting order mode",
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Uint64("qty", uint64(order.Quantity)),
		slog.String("trading", mode.String()),
	)

	if err := deps.Client.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("order mode: %w", err)
	}

	if err := deps.Notifier.OrderSubmitted(ctx, mode, order); err != nil {
		a.logger.WarnContext(ctx, "order notification failed", slog.String("error", err.Error()))
	}
	return nil
}
