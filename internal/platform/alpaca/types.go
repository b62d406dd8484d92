package alpaca

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

// --------------------------------------------------------------------------
// Stream control messages
// --------------------------------------------------------------------------

// authMessage is the first message sent after the upgrade.
type authMessage struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// controlRecord is a connection-level record such as
// {"T":"success","msg":"authenticated"} or {"T":"error","code":402,"msg":"auth failed"}.
type controlRecord struct {
	T    string `json:"T"`
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// --------------------------------------------------------------------------
// Market data records
// --------------------------------------------------------------------------

// encoding/json matches keys case-insensitively when no field has the exact
// name, so every data record shape declares both "T" (the discriminator) and
// "t" (the timestamp). Otherwise whichever key comes last would land in the
// one field that does exist.

type wireTrade struct {
	T          string         `json:"T"`
	Symbol     string         `json:"S"`
	ID         int64          `json:"i"`
	Exchange   string         `json:"x"`
	Price      float64        `json:"p"`
	Size       float64        `json:"s"`
	Conditions wireConditions `json:"c"`
	Timestamp  string         `json:"t"`
}

func (w wireTrade) toDomain() domain.Trade {
	return domain.Trade{
		Symbol:     w.Symbol,
		ID:         w.ID,
		Exchange:   w.Exchange,
		Price:      w.Price,
		Size:       toUint(w.Size),
		Conditions: []string(w.Conditions),
		Timestamp:  w.Timestamp,
	}
}

type wireQuote struct {
	T           string  `json:"T"`
	Symbol      string  `json:"S"`
	BidExchange string  `json:"bx"`
	BidPrice    float64 `json:"bp"`
	BidSize     float64 `json:"bs"`
	AskExchange string  `json:"ax"`
	AskPrice    float64 `json:"ap"`
	AskSize     float64 `json:"as"`
	Timestamp   string  `json:"t"`
}

func (w wireQuote) toDomain() domain.Quote {
	return domain.Quote{
		Symbol:      w.Symbol,
		BidExchange: w.BidExchange,
		BidPrice:    w.BidPrice,
		BidSize:     toUint(w.BidSize),
		AskExchange: w.AskExchange,
		AskPrice:    w.AskPrice,
		AskSize:     toUint(w.AskSize),
		Timestamp:   w.Timestamp,
	}
}

// wireBar is shared by minute, updated and daily bars.
type wireBar struct {
	T          string  `json:"T"`
	Symbol     string  `json:"S"`
	Open       float64 `json:"o"`
	High       float64 `json:"h"`
	Low        float64 `json:"l"`
	Close      float64 `json:"c"`
	Volume     float64 `json:"v"`
	TradeCount float64 `json:"n"`
	VWAP       float64 `json:"vw"`
	Timestamp  string  `json:"t"`
}

func (w wireBar) toDomain() domain.Bar {
	return domain.Bar{
		Symbol:     w.Symbol,
		Open:       w.Open,
		High:       w.High,
		Low:        w.Low,
		Close:      w.Close,
		Volume:     toUint(w.Volume),
		TradeCount: toUint(w.TradeCount),
		VWAP:       w.VWAP,
		Timestamp:  w.Timestamp,
	}
}

type wireOrderBook struct {
	T         string      `json:"T"`
	Symbol    string      `json:"S"`
	Bids      []wireLevel `json:"b"`
	Asks      []wireLevel `json:"a"`
	Reset     bool        `json:"r"`
	Timestamp string      `json:"t"`
}

func (w wireOrderBook) toDomain() domain.OrderBook {
	return domain.OrderBook{
		Symbol:    w.Symbol,
		Bids:      levels(w.Bids),
		Asks:      levels(w.Asks),
		Reset:     w.Reset,
		Timestamp: w.Timestamp,
	}
}

// wireConditions accepts the stock feed's ["@","I"] as well as the single
// condition string sent on the options feed.
type wireConditions []string

func (c *wireConditions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one == "" {
			*c = nil
		} else {
			*c = wireConditions{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*c = many
	return nil
}

// wireLevel accepts both {"p":1.5,"s":10} and [1.5,10].
type wireLevel struct {
	Price float64
	Size  float64
}

func (l *wireLevel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("price level: want [price, size], got %d values", len(pair))
		}
		l.Price, l.Size = pair[0], pair[1]
		return nil
	}

	var obj struct {
		P float64 `json:"p"`
		S float64 `json:"s"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	l.Price, l.Size = obj.P, obj.S
	return nil
}

func levels(in []wireLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.PriceLevel{Price: l.Price, Size: toUint(l.Size)})
	}
	return out
}

// toUint truncates a wire size to an unsigned count. Crypto feeds send
// fractional sizes; negative or non-finite values become zero.
func toUint(f float64) uint64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(f)
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// apiOrderRequest is the POST /v2/orders body.
type apiOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// apiOrder is the subset of the order reply this client reads.
type apiOrder struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Status        string `json:"status"`
	Symbol        string `json:"symbol"`
}

// apiAsset is the GET /v2/assets/{symbol} reply.
type apiAsset struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}

func (a apiAsset) toDomain() domain.Asset {
	return domain.Asset{
		ID:       a.ID,
		Symbol:   a.Symbol,
		Exchange: a.Exchange,
		Class:    a.Class,
		Name:     a.Name,
		Status:   a.Status,
		Tradable: a.Tradable,
	}
}

// apiError is the error body returned with non-2xx responses.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
