package domain

import "context"

// EventType names a MarketEvent variant.
type EventType string

const (
	EventTrade      EventType = "trade"
	EventQuote      EventType = "quote"
	EventBar        EventType = "bar"
	EventUpdatedBar EventType = "updated_bar"
	EventDailyBar   EventType = "daily_bar"
	EventOrderBook  EventType = "orderbook"
)

// MarketEvent is one decoded market-data record. The set of implementations is
// closed: Trade, Quote, Bar, UpdatedBar, DailyBar and OrderBook.
//
// Timestamps are kept in the upstream's RFC-3339 string form; parsing them is
// left to the consumer.
type MarketEvent interface {
	Type() EventType
	EventSymbol() string
	marketEvent()
}

// Trade is a single execution.
type Trade struct {
	Symbol     string   `json:"symbol"`
	ID         int64    `json:"id,omitempty"`
	Exchange   string   `json:"exchange,omitempty"`
	Price      float64  `json:"price"`
	Size       uint64   `json:"size"`
	Conditions []string `json:"conditions,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

// Quote is a top-of-book bid/ask update.
type Quote struct {
	Symbol      string  `json:"symbol"`
	BidExchange string  `json:"bid_exchange,omitempty"`
	BidPrice    float64 `json:"bid_price"`
	BidSize     uint64  `json:"bid_size"`
	AskExchange string  `json:"ask_exchange,omitempty"`
	AskPrice    float64 `json:"ask_price"`
	AskSize     uint64  `json:"ask_size"`
	Timestamp   string  `json:"timestamp"`
}

// Bar is a minute aggregate of trades.
type Bar struct {
	Symbol     string  `json:"symbol"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     uint64  `json:"volume"`
	TradeCount uint64  `json:"trade_count,omitempty"`
	VWAP       float64 `json:"vwap,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// UpdatedBar is a correction to a previously published minute bar, sent when
// late trades arrive.
type UpdatedBar struct {
	Bar
}

// DailyBar is the running aggregate for the current trading day.
type DailyBar struct {
	Bar
}

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  uint64  `json:"size"`
}

// OrderBook is an orderbook snapshot or update. Levels keep the order in which
// they were received.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Reset     bool         `json:"reset,omitempty"`
	Timestamp string       `json:"timestamp"`
}

func (Trade) Type() EventType      { return EventTrade }
func (Quote) Type() EventType      { return EventQuote }
func (Bar) Type() EventType        { return EventBar }
func (UpdatedBar) Type() EventType { return EventUpdatedBar }
func (DailyBar) Type() EventType   { return EventDailyBar }
func (OrderBook) Type() EventType  { return EventOrderBook }

func (e Trade) EventSymbol() string     { return e.Symbol }
func (e Quote) EventSymbol() string     { return e.Symbol }
func (e Bar) EventSymbol() string       { return e.Symbol }
func (e OrderBook) EventSymbol() string { return e.Symbol }

func (Trade) marketEvent()     {}
func (Quote) marketEvent()     {}
func (Bar) marketEvent()       {}
func (OrderBook) marketEvent() {}

// EventSink receives decoded events for delivery outside the process.
type EventSink interface {
	Publish(ctx context.Context, event MarketEvent) error
}
