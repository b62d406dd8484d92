package domain

import (
	"fmt"
	"math"
	"strings"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForce controls how long an order stays working.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "ioc" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "fok" // Fill-Or-Kill
	TimeInForceOPG TimeInForce = "opg" // market on open
	TimeInForceCLS TimeInForce = "cls" // market on close
)

var validTimeInForce = map[TimeInForce]bool{
	TimeInForceDay: true,
	TimeInForceGTC: true,
	TimeInForceIOC: true,
	TimeInForceFOK: true,
	TimeInForceOPG: true,
	TimeInForceCLS: true,
}

// Order is a request to buy or sell a whole number of shares. LimitPrice is
// required for limit orders and must be zero otherwise.
type Order struct {
	Symbol        string
	Quantity      uint32
	Side          OrderSide
	Type          OrderType
	TimeInForce   TimeInForce
	LimitPrice    float64
	ClientOrderID string
}

// Validate reports the first obviously invalid field.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Quantity == 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidOrder)
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidOrder, o.Side)
	}
	switch o.Type {
	case "", OrderTypeMarket:
		if o.LimitPrice != 0 {
			return fmt.Errorf("%w: limit_price set on a market order", ErrInvalidOrder)
		}
	case OrderTypeLimit:
		if !(o.LimitPrice > 0) || math.IsInf(o.LimitPrice, 1) {
			return fmt.Errorf("%w: limit order needs a positive limit_price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOrder, o.Type)
	}
	if o.TimeInForce != "" && !validTimeInForce[o.TimeInForce] {
		return fmt.Errorf("%w: unknown time_in_force %q", ErrInvalidOrder, o.TimeInForce)
	}
	return nil
}

// Asset is the tradable instrument metadata returned by the brokerage.
type Asset struct {
	ID       string
	Symbol   string
	Exchange string
	Class    string
	Name     string
	Status   string
	Tradable bool
}
