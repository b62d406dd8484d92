package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "md"

// commander is the subset of *redis.Client the publisher needs.
type commander interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// envelope is the JSON payload written for every event.
type envelope struct {
	Type        domain.EventType   `json:"type"`
	Symbol      string             `json:"symbol"`
	Event       domain.MarketEvent `json:"event"`
	PublishedAt time.Time          `json:"published_at"`
}

// EventPublisher implements domain.EventSink by publishing each event to
// "{prefix}:{type}:{symbol}", e.g. "md:quote:AAPL". Pub/sub is fire and
// forget: subscribers that are not connected miss the event.
type EventPublisher struct {
	rdb    commander
	prefix string
	now    func() time.Time
}

// NewEventPublisher creates a publisher on c. An empty prefix uses "md".
func NewEventPublisher(c *Client, prefix string) *EventPublisher {
	return newEventPublisher(c.rdb, prefix)
}

func newEventPublisher(rdb commander, prefix string) *EventPublisher {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &EventPublisher{
		rdb:    rdb,
		prefix: strings.TrimSuffix(prefix, ":"),
		now:    time.Now,
	}
}

// Channel returns the pub/sub channel for an event.
func (p *EventPublisher) Channel(ev domain.MarketEvent) string {
	return p.prefix + ":" + string(ev.Type()) + ":" + ev.EventSymbol()
}

// Publish serialises ev and sends it to its channel.
func (p *EventPublisher) Publish(ctx context.Context, ev domain.MarketEvent) error {
	payload, err := json.Marshal(envelope{
		Type:        ev.Type(),
		Symbol:      ev.EventSymbol(),
		Event:       ev,
		PublishedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal %s event: %w", ev.Type(), err)
	}

	channel := p.Channel(ev)
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventSink = (*EventPublisher)(nil)
