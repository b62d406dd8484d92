package alpaca

import "github.com/alanyoungcy/brokerfeed/internal/domain"

const (
	liveBaseURL  = "https://api.alpaca.markets"
	paperBaseURL = "https://paper-api.alpaca.markets"

	dataStreamHost    = "wss://stream.data.alpaca.markets"
	sandboxStreamHost = "wss://stream.data.sandbox.alpaca.markets"
)

// streamPaths maps each feed kind to its path on the data stream host.
var streamPaths = map[domain.FeedKind]string{
	domain.FeedStocks:  "/v2/iex",
	domain.FeedCrypto:  "/v1beta3/crypto/us",
	domain.FeedNews:    "/v1beta1/news",
	domain.FeedOptions: "/v1beta1/indicative",
	domain.FeedTest:    "/v2/test",
}

// ResolveStreamURL returns the WebSocket endpoint for a feed kind in the given
// trading mode.
//
// Crypto, news and options use the sandbox host in paper mode. Stocks and the
// synthetic test feed are served from the production host in both modes.
func ResolveStreamURL(kind domain.FeedKind, mode domain.TradingMode) string {
	path, ok := streamPaths[kind]
	if !ok {
		path = streamPaths[domain.FeedStocks]
	}

	switch kind {
	case domain.FeedStocks, domain.FeedTest:
		return dataStreamHost + path
	}
	if mode.IsLive() {
		return dataStreamHost + path
	}
	return sandboxStreamHost + path
}

// ResolveBaseURL returns the REST API root for the trading mode.
func ResolveBaseURL(mode domain.TradingMode) string {
	if mode.IsLive() {
		return liveBaseURL
	}
	return paperBaseURL
}
