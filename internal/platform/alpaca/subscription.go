package alpaca

import "slices"

const actionSubscribe = "subscribe"

// SubscriptionRequest is the outbound message declaring channel interest.
// Every list marshals as a JSON array, empty or not.
type SubscriptionRequest struct {
	Action      string   `json:"action"`
	Trades      []string `json:"trades"`
	Quotes      []string `json:"quotes"`
	Bars        []string `json:"bars"`
	UpdatedBars []string `json:"updated_bars"`
	DailyBars   []string `json:"daily_bars"`
	OrderBooks  []string `json:"orderbooks"`
}

// Empty reports whether the request names no symbols at all. The upstream
// accepts such a request, it just subscribes to nothing.
func (r SubscriptionRequest) Empty() bool {
	return len(r.Trades)+len(r.Quotes)+len(r.Bars)+
		len(r.UpdatedBars)+len(r.DailyBars)+len(r.OrderBooks) == 0
}

// SubscriptionBuilder accumulates per-channel symbol lists. Each setter
// replaces whatever that channel held before. Symbols are passed through
// verbatim; the upstream decides what is valid.
type SubscriptionBuilder struct {
	trades      []string
	quotes      []string
	bars        []string
	updatedBars []string
	dailyBars   []string
	orderBooks  []string
}

// NewSubscriptionBuilder returns a builder with every channel empty.
func NewSubscriptionBuilder() *SubscriptionBuilder {
	return &SubscriptionBuilder{}
}

func (b *SubscriptionBuilder) Trades(symbols ...string) *SubscriptionBuilder {
	b.trades = clone(symbols)
	return b
}

func (b *SubscriptionBuilder) Quotes(symbols ...string) *SubscriptionBuilder {
	b.quotes = clone(symbols)
	return b
}

func (b *SubscriptionBuilder) Bars(symbols ...string) *SubscriptionBuilder {
	b.bars = clone(symbols)
	return b
}

func (b *SubscriptionBuilder) UpdatedBars(symbols ...string) *SubscriptionBuilder {
	b.updatedBars = clone(symbols)
	return b
}

func (b *SubscriptionBuilder) DailyBars(symbols ...string) *SubscriptionBuilder {
	b.dailyBars = clone(symbols)
	return b
}

func (b *SubscriptionBuilder) OrderBooks(symbols ...string) *SubscriptionBuilder {
	b.orderBooks = clone(symbols)
	return b
}

// Build returns the subscription message. The result shares no memory with the
// builder, so later setter calls do not affect it.
func (b *SubscriptionBuilder) Build() SubscriptionRequest {
	return SubscriptionRequest{
		Action:      actionSubscribe,
		Trades:      clone(b.trades),
		Quotes:      clone(b.quotes),
		Bars:        clone(b.bars),
		UpdatedBars: clone(b.updatedBars),
		DailyBars:   clone(b.dailyBars),
		OrderBooks:  clone(b.orderBooks),
	}
}

// clone copies s and never returns nil.
func clone(s []string) []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Clone(s)
}
