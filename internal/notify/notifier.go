// Package notify sends operator alerts about stream and order activity to
// chat webhooks. Alerts are filtered by event name so operators receive only
// what they subscribed to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

// Event names accepted in the [notify] events list.
const (
	EventSessionFailed  = "session_failed"
	EventOrderSubmitted = "order_submitted"
)

// KnownEvents lists every event the application emits.
var KnownEvents = []string{EventSessionFailed, EventOrderSubmitted}

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender in logs, e.g. "telegram".
	Name() string
}

// Notifier fans alerts out to every Sender. An empty event filter lets every
// event through.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event would be delivered anywhere.
func (n *Notifier) Enabled(event string) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify delivers title and message when event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// SessionFailed reports a stream that stopped for good.
func (n *Notifier) SessionFailed(ctx context.Context, kind domain.FeedKind, err error) error {
	reason := "stream ended"
	switch {
	case errors.Is(err, domain.ErrAuthRejected):
		reason = "credentials rejected"
	case errors.Is(err, domain.ErrAuthAmbiguous):
		reason = "authentication response not understood"
	case errors.Is(err, domain.ErrConnection):
		reason = "endpoint unreachable"
	}
	return n.Notify(ctx, EventSessionFailed,
		fmt.Sprintf("%s stream stopped: %s", kind, reason),
		err.Error(),
	)
}

// OrderSubmitted reports an order accepted by the brokerage.
func (n *Notifier) OrderSubmitted(ctx context.Context, mode domain.TradingMode, order domain.Order) error {
	return n.Notify(ctx, EventOrderSubmitted,
		fmt.Sprintf("Order submitted (%s)", mode),
		fmt.Sprintf("%s %d %s, %s/%s", order.Side, order.Quantity, order.Symbol, order.Type, order.TimeInForce),
	)
}
