package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

func newTestClient(streamURL string, attempts int) *Client {
	settings := NewSettingsBuilder().
		KeyID(testCreds.KeyID).
		SecretKey(testCreds.SecretKey).
		StreamURL(streamURL).
		AuthTimeout(time.Second).
		ConnectAttempts(attempts).
		Backoff(time.Millisecond, 5*time.Millisecond).
		Build()
	return NewClient(settings, testLogger())
}

// serveSubscription authenticates the client, records the subscription it
// sends and then writes frames, closing normally afterwards.
func serveSubscription(m **mockStream, subs chan<- SubscriptionRequest, frames ...[]byte) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		(*m).readAuth(conn)
		conn.WriteMessage(websocket.TextMessage, []byte(authOK))

		var sub SubscriptionRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub

		for i, f := range frames {
			mt := websocket.TextMessage
			if i%2 == 1 {
				mt = websocket.BinaryMessage
			}
			conn.WriteMessage(mt, f)
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

func TestSubscribe_SendsSubscriptionOnceThenYieldsEvents(t *testing.T) {
	subs := make(chan SubscriptionRequest, 2)
	var m *mockStream
	m = newMockStream(t, serveSubscription(&m, subs,
		[]byte(`[{"T":"q","S":"AAPL","bp":100.0,"ap":100.5,"t":"t1"}]`),
		[]byte(`[{"T":"t","S":"AAPL","p":100.25,"s":10,"t":"t2"},{"T":"x"}]`),
		[]byte(`[]`),
	))

	client := newTestClient(m.url, 1)
	req := NewSubscriptionBuilder().Trades("AAPL").Quotes("AAPL").Build()

	sess, err := client.Subscribe(context.Background(), domain.FeedStocks, req)
	require.NoError(t, err)
	defer sess.Close()
	assert.Equal(t, StateReady, sess.State())
	assert.Equal(t, req, sess.Subscription())

	var events []domain.MarketEvent
	var decodeErrs []error
	for ev, err := range sess.Events(context.Background()) {
		if err != nil {
			var de *DecodeError
			require.ErrorAs(t, err, &de, "terminal error %v", err)
			decodeErrs = append(decodeErrs, err)
			continue
		}
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, domain.Quote{Symbol: "AAPL", BidPrice: 100.0, AskPrice: 100.5, Timestamp: "t1"}, events[0])
	assert.Equal(t, domain.Trade{Symbol: "AAPL", Price: 100.25, Size: 10, Timestamp: "t2"}, events[1])

	require.Len(t, decodeErrs, 2)
	assert.ErrorIs(t, decodeErrs[0], domain.ErrUnknownEventType)
	assert.ErrorIs(t, decodeErrs[1], domain.ErrEmptyEventList)

	assert.Equal(t, StateClosed, sess.State())

	got := <-subs
	assert.Equal(t, "subscribe", got.Action)
	assert.Equal(t, []string{"AAPL"}, got.Trades)
	assert.Equal(t, []string{"AAPL"}, got.Quotes)
	assert.Empty(t, got.OrderBooks)

	sess.Close()
	assert.Empty(t, m.drain(t), "subscription must be sent exactly once")
	assert.Empty(t, subs)
}

func TestSubscribe_FramesGroupsByFrame(t *testing.T) {
	subs := make(chan SubscriptionRequest, 1)
	var m *mockStream
	m = newMockStream(t, serveSubscription(&m, subs,
		[]byte(`[{"T":"b","S":"SPY","c":1,"t":"a"},{"T":"d","S":"SPY","c":2,"t":"b"}]`),
		[]byte(`[{"T":"o","S":"BTC/USD","b":[[1,2]],"a":[],"t":"c"}]`),
	))

	sess, err := newTestClient(m.url, 1).Subscribe(context.Background(), domain.FeedCrypto,
		NewSubscriptionBuilder().Bars("SPY").DailyBars("SPY").OrderBooks("BTC/USD").Build())
	require.NoError(t, err)
	defer sess.Close()

	var sizes []int
	for batch, err := range sess.Frames(context.Background()) {
		require.NoError(t, err)
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{2, 1}, sizes)
}

func TestSubscribe_AuthRejectedNeverSubscribes(t *testing.T) {
	var m *mockStream
	m = newMockStream(t, func(conn *websocket.Conn) { replyWith(m, "unauthorized")(conn) })

	sess, err := newTestClient(m.url, 3).Subscribe(context.Background(), domain.FeedStocks,
		NewSubscriptionBuilder().Trades("AAPL").Build())

	assert.Nil(t, sess)
	assert.ErrorIs(t, err, domain.ErrAuthRejected)
	assert.Empty(t, m.drain(t))
	assert.Equal(t, int32(1), m.hits.Load(), "auth failures are not retried")
}

func TestSubscribe_RetriesConnectionFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(authOK))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sess, err := newTestClient("ws"+strings.TrimPrefix(srv.URL, "http"), 3).
		Subscribe(context.Background(), domain.FeedStocks, NewSubscriptionBuilder().Build())
	require.NoError(t, err)
	sess.Close()
	assert.Equal(t, int32(3), hits.Load())
}

func TestSubscribe_GivesUpAfterAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient("ws"+strings.TrimPrefix(srv.URL, "http"), 2).
		Subscribe(context.Background(), domain.FeedStocks, NewSubscriptionBuilder().Build())
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(2), hits.Load())
}

func TestSession_ContextCancelEndsFrames(t *testing.T) {
	var m *mockStream
	m = newMockStream(t, func(conn *websocket.Conn) {
		m.readAuth(conn)
		conn.WriteMessage(websocket.TextMessage, []byte(authOK))
	})

	sess, err := newTestClient(m.url, 1).Subscribe(context.Background(), domain.FeedStocks,
		NewSubscriptionBuilder().Trades("AAPL").Build())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var last error
	for _, err := range sess.Frames(ctx) {
		last = err
	}
	assert.ErrorIs(t, last, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, sess.State())

	// The subscription arrives after the script; nothing else follows it.
	sent := m.drain(t)
	require.Len(t, sent, 1)
	var sub SubscriptionRequest
	require.NoError(t, json.Unmarshal([]byte(sent[0]), &sub))
	assert.Equal(t, []string{"AAPL"}, sub.Trades)
}

func TestSession_AbnormalClosure(t *testing.T) {
	var m *mockStream
	m = newMockStream(t, func(conn *websocket.Conn) {
		m.readAuth(conn)
		conn.WriteMessage(websocket.TextMessage, []byte(authOK))
		conn.ReadMessage()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom"))
	})

	sess, err := newTestClient(m.url, 1).Subscribe(context.Background(), domain.FeedStocks,
		NewSubscriptionBuilder().Build())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Recv()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.False(t, errors.Is(err, io.EOF))
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	var m *mockStream
	m = newMockStream(t, func(conn *websocket.Conn) {
		m.readAuth(conn)
		conn.WriteMessage(websocket.TextMessage, []byte(authOK))
	})

	sess, err := newTestClient(m.url, 1).Subscribe(context.Background(), domain.FeedStocks,
		NewSubscriptionBuilder().Build())
	require.NoError(t, err)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())

	_, err = sess.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, sess.start(), domain.ErrAlreadyStarted)
}
