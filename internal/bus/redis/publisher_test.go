package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

type published struct {
	channel string
	payload []byte
}

type fakeCommander struct {
	published  []published
	publishErr error
}

func (f *fakeCommander) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.publishErr != nil {
		return redis.NewIntResult(0, f.publishErr)
	}
	f.published = append(f.published, published{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func TestEventPublisher_Channel(t *testing.T) {
	p := newEventPublisher(&fakeCommander{}, "")
	bar := domain.Bar{Symbol: "SPY"}

	tests := []struct {
		ev   domain.MarketEvent
		want string
	}{
		{domain.Quote{Symbol: "AAPL"}, "md:quote:AAPL"},
		{domain.Trade{Symbol: "TSLA"}, "md:trade:TSLA"},
		{bar, "md:bar:SPY"},
		{domain.UpdatedBar{Bar: bar}, "md:updated_bar:SPY"},
		{domain.DailyBar{Bar: bar}, "md:daily_bar:SPY"},
		{domain.OrderBook{Symbol: "BTC/USD"}, "md:orderbook:BTC/USD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Channel(tt.ev))
	}

	assert.Equal(t, "feed:quote:X", newEventPublisher(&fakeCommander{}, "feed:").Channel(domain.Quote{Symbol: "X"}))
}

func TestEventPublisher_Publish(t *testing.T) {
	fake := &fakeCommander{}
	p := newEventPublisher(fake, "md")
	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	err := p.Publish(context.Background(), domain.Quote{Symbol: "AAPL", BidPrice: 100, AskPrice: 100.5, Timestamp: "t"})
	require.NoError(t, err)

	require.Len(t, fake.published, 1)
	assert.Equal(t, "md:quote:AAPL", fake.published[0].channel)
	assert.JSONEq(t, `{
		"type":"quote","symbol":"AAPL","published_at":"2024-01-01T00:00:00Z",
		"event":{"symbol":"AAPL","bid_price":100,"bid_size":0,"ask_price":100.5,"ask_size":0,"timestamp":"t"}
	}`, string(fake.published[0].payload))
}

func TestEventPublisher_PublishError(t *testing.T) {
	boom := errors.New("connection refused")
	p := newEventPublisher(&fakeCommander{publishErr: boom}, "md")

	err := p.Publish(context.Background(), domain.Quote{Symbol: "AAPL"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "md:quote:AAPL")
}
