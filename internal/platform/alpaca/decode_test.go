package alpaca

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

func TestDecode_EmptyList(t *testing.T) {
	out := Decode([]byte(`[]`))

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Event)
	assert.ErrorIs(t, out[0].Err, domain.ErrEmptyEventList)
}

func TestDecode_MalformedFrame(t *testing.T) {
	for _, frame := range []string{`{"T":"q"}`, `not json`, ``, `null`} {
		out := Decode([]byte(frame))
		require.Len(t, out, 1, frame)
		assert.ErrorIs(t, out[0].Err, domain.ErrMalformedFrame, frame)

		var de *DecodeError
		require.True(t, errors.As(out[0].Err, &de))
		assert.Equal(t, -1, de.Index)
	}
}

func TestDecode_QuoteDefaultsSizes(t *testing.T) {
	out := Decode([]byte(`[{"T":"q","S":"AAPL","bp":100.0,"ap":100.5,"t":"2024-01-01T00:00:00Z"}]`))

	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)
	assert.Equal(t, domain.Quote{
		Symbol:    "AAPL",
		BidPrice:  100.0,
		AskPrice:  100.5,
		BidSize:   0,
		AskSize:   0,
		Timestamp: "2024-01-01T00:00:00Z",
	}, out[0].Event)
}

func TestDecode_UnknownDiscriminator(t *testing.T) {
	out := Decode([]byte(`[{"T":"x","S":"AAPL","t":"2024-01-01T00:00:00Z"}]`))

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Event)
	assert.ErrorIs(t, out[0].Err, domain.ErrUnknownEventType)

	var de *DecodeError
	require.True(t, errors.As(out[0].Err, &de))
	assert.Equal(t, 0, de.Index)
	assert.Equal(t, "x", de.Discriminator)
	assert.JSONEq(t, `{"T":"x","S":"AAPL","t":"2024-01-01T00:00:00Z"}`, string(de.Raw))
}

func TestDecode_ControlRecordsAreUnknown(t *testing.T) {
	out := Decode([]byte(`[{"T":"error","code":405,"msg":"symbol limit exceeded"},{"T":"subscription","trades":["AAPL"]}]`))

	require.Len(t, out, 2)
	for _, d := range out {
		assert.ErrorIs(t, d.Err, domain.ErrUnknownEventType)
	}
	var de *DecodeError
	require.True(t, errors.As(out[0].Err, &de))
	assert.Equal(t, "error", de.Discriminator)
}

func TestDecode_AllVariants(t *testing.T) {
	frame := `[
		{"T":"t","S":"AAPL","i":52983525029461,"x":"V","p":187.33,"s":100,"c":["@"],"t":"2024-01-01T14:30:00.1Z"},
		{"T":"q","S":"AAPL","bx":"V","bp":187.3,"bs":2,"ax":"V","ap":187.4,"as":3,"t":"2024-01-01T14:30:00.2Z"},
		{"T":"b","S":"AAPL","o":187,"h":188,"l":186.5,"c":187.5,"v":12000,"n":310,"vw":187.2,"t":"2024-01-01T14:30:00Z"},
		{"T":"u","S":"AAPL","o":187,"h":188.1,"l":186.5,"c":187.6,"v":12100,"t":"2024-01-01T14:30:00Z"},
		{"T":"d","S":"AAPL","o":185,"h":189,"l":184,"c":187.6,"v":5000000,"t":"2024-01-01T05:00:00Z"},
		{"T":"o","S":"BTC/USD","b":[{"p":42000.5,"s":1.9},{"p":41999,"s":3}],"a":[{"p":42001,"s":0.4}],"r":true,"t":"2024-01-01T14:30:01Z"}
	]`

	out := Decode([]byte(frame))
	require.Len(t, out, 6)
	for i, d := range out {
		require.NoError(t, d.Err, "record %d", i)
	}

	assert.Equal(t, domain.Trade{
		Symbol: "AAPL", ID: 52983525029461, Exchange: "V", Price: 187.33, Size: 100,
		Conditions: []string{"@"}, Timestamp: "2024-01-01T14:30:00.1Z",
	}, out[0].Event)

	assert.Equal(t, domain.Quote{
		Symbol: "AAPL", BidExchange: "V", BidPrice: 187.3, BidSize: 2,
		AskExchange: "V", AskPrice: 187.4, AskSize: 3, Timestamp: "2024-01-01T14:30:00.2Z",
	}, out[1].Event)

	assert.Equal(t, domain.Bar{
		Symbol: "AAPL", Open: 187, High: 188, Low: 186.5, Close: 187.5, Volume: 12000,
		TradeCount: 310, VWAP: 187.2, Timestamp: "2024-01-01T14:30:00Z",
	}, out[2].Event)

	updated, ok := out[3].Event.(domain.UpdatedBar)
	require.True(t, ok, "got %T", out[3].Event)
	assert.Equal(t, domain.EventUpdatedBar, updated.Type())
	assert.Equal(t, 188.1, updated.High)

	daily, ok := out[4].Event.(domain.DailyBar)
	require.True(t, ok, "got %T", out[4].Event)
	assert.Equal(t, domain.EventDailyBar, daily.Type())
	assert.Equal(t, uint64(5000000), daily.Volume)
	assert.Equal(t, "AAPL", daily.EventSymbol())

	assert.Equal(t, domain.OrderBook{
		Symbol: "BTC/USD",
		Bids:   []domain.PriceLevel{{Price: 42000.5, Size: 1}, {Price: 41999, Size: 3}},
		Asks:   []domain.PriceLevel{{Price: 42001, Size: 0}},
		Reset:  true, Timestamp: "2024-01-01T14:30:01Z",
	}, out[5].Event)
}

func TestDecode_BarZeroDefaults(t *testing.T) {
	out := Decode([]byte(`[{"T":"b","S":"SPY","t":"2024-01-01T14:30:00Z"}]`))

	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)
	assert.Equal(t, domain.Bar{Symbol: "SPY", Timestamp: "2024-01-01T14:30:00Z"}, out[0].Event)
}

func TestDecode_OrderBookPairLevelsKeepOrder(t *testing.T) {
	out := Decode([]byte(`[{"T":"o","S":"ETH/USD","b":[[10,1],[12,2],[11,3]],"a":[],"t":"x"}]`))

	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)
	book := out[0].Event.(domain.OrderBook)
	assert.Equal(t, []domain.PriceLevel{{10, 1}, {12, 2}, {11, 3}}, book.Bids)
	assert.Empty(t, book.Asks)
}

func TestDecode_PerRecordFailureKeepsNeighbours(t *testing.T) {
	frame := `[
		{"T":"q","S":"AAPL","bp":1,"t":"a"},
		{"T":"q","S":"MSFT","bp":"not a number","t":"b"},
		{"S":"NOTYPE"},
		{"T":"z"},
		{"T":"t","S":"TSLA","p":250,"s":5,"t":"c"}
	]`

	out := Decode([]byte(frame))
	require.Len(t, out, 5)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, "AAPL", out[0].Event.EventSymbol())

	var de *DecodeError
	require.True(t, errors.As(out[1].Err, &de))
	assert.Equal(t, 1, de.Index)
	assert.Equal(t, "q", de.Discriminator)

	assert.ErrorIs(t, out[2].Err, domain.ErrMissingDiscriminator)
	assert.ErrorIs(t, out[3].Err, domain.ErrUnknownEventType)

	assert.NoError(t, out[4].Err)
	assert.Equal(t, domain.Trade{Symbol: "TSLA", Price: 250, Size: 5, Timestamp: "c"}, out[4].Event)
}

func TestDecode_FractionalAndNegativeSizes(t *testing.T) {
	out := Decode([]byte(`[{"T":"q","S":"BTC/USD","bs":0.75,"as":-3,"t":"x"}]`))

	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)
	q := out[0].Event.(domain.Quote)
	assert.Equal(t, uint64(0), q.BidSize)
	assert.Equal(t, uint64(0), q.AskSize)
}

func TestDecode_TimestampAfterDiscriminator(t *testing.T) {
	out := Decode([]byte(`[{"T":"q","S":"AAPL","bx":"V","bp":187.3,"bs":2,"ax":"V","ap":187.4,"as":3,"t":"2024-03-11T13:35:35Z"}]`))

	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)
	assert.Equal(t, domain.Quote{
		Symbol: "AAPL", BidExchange: "V", BidPrice: 187.3, BidSize: 2,
		AskExchange: "V", AskPrice: 187.4, AskSize: 3, Timestamp: "2024-03-11T13:35:35Z",
	}, out[0].Event)
}

func TestDecode_KeyOrderDoesNotMatter(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  domain.MarketEvent
	}{
		{
			"trade",
			`[{"t":"ts","S":"AAPL","p":1.5,"s":2,"T":"t"}]`,
			domain.Trade{Symbol: "AAPL", Price: 1.5, Size: 2, Timestamp: "ts"},
		},
		{
			"quote",
			`[{"t":"2024-01-01T00:00:00Z","T":"q","S":"AAPL","bp":1,"ap":2}]`,
			domain.Quote{Symbol: "AAPL", BidPrice: 1, AskPrice: 2, Timestamp: "2024-01-01T00:00:00Z"},
		},
		{
			"bar",
			`[{"t":"ts","S":"SPY","c":3,"T":"b"}]`,
			domain.Bar{Symbol: "SPY", Close: 3, Timestamp: "ts"},
		},
		{
			"daily bar",
			`[{"t":"ts","S":"SPY","T":"d"}]`,
			domain.DailyBar{Bar: domain.Bar{Symbol: "SPY", Timestamp: "ts"}},
		},
		{
			"orderbook",
			`[{"t":"ts","S":"BTC/USD","b":[[1,2]],"a":[],"T":"o"}]`,
			domain.OrderBook{Symbol: "BTC/USD", Bids: []domain.PriceLevel{{Price: 1, Size: 2}}, Asks: []domain.PriceLevel{}, Timestamp: "ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Decode([]byte(tt.frame))
			require.Len(t, out, 1)
			require.NoError(t, out[0].Err)
			assert.Equal(t, tt.want, out[0].Event)
		})
	}
}

func TestDecode_NonStringDiscriminator(t *testing.T) {
	out := Decode([]byte(`[{"T":7,"t":"x"}]`))

	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, domain.ErrMissingDiscriminator)
}

func TestDecode_TradeConditions(t *testing.T) {
	tests := []struct {
		name string
		c    string
		want []string
	}{
		{"array", `["@","I"]`, []string{"@", "I"}},
		{"single string", `"S"`, []string{"S"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Decode([]byte(`[{"T":"t","S":"AAPL240315C00172500","p":1.2,"s":3,"c":` + tt.c + `,"t":"x"}]`))
			require.Len(t, out, 1)
			require.NoError(t, out[0].Err)
			assert.Equal(t, tt.want, out[0].Event.(domain.Trade).Conditions)
		})
	}

	out := Decode([]byte(`[{"T":"t","S":"AAPL","c":5,"t":"x"}]`))
	require.Len(t, out, 1)
	assert.Error(t, out[0].Err)
}
