package feed

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpbitDispatchTicker(t *testing.T) {
	var got domain.PriceQuote
	f := NewUpbit("wss://example", "KRW-XRP",
		func(q domain.PriceQuote) { got = q }, nil, discardLogger())

	f.dispatch([]byte(`{"type":"ticker","code":"KRW-XRP","trade_price":3100.5,"acc_trade_volume_24h":12345.6,"timestamp":1724650000000}`))

	assert.Equal(t, domain.VenueUpbit, got.Venue)
	assert.Equal(t, "KRW-XRP", got.Symbol)
	assert.Equal(t, 3100.5, got.Price)
	assert.Equal(t, 12345.6, got.Volume24h)
	assert.Equal(t, int64(1724650000000), got.Timestamp.UnixMilli())
}

func TestUpbitDispatchOrderbook(t *testing.T) {
	var got domain.OrderBookSnapshot
	f := NewUpbit("wss://example", "KRW-XRP",
		nil, func(s domain.OrderBookSnapshot) { got = s }, discardLogger())

	f.dispatch([]byte(`{"type":"orderbook","code":"KRW-XRP","timestamp":1724650000000,"orderbook_units":[
		{"ask_price":3101,"bid_price":3100,"ask_size":10,"bid_size":20},
		{"ask_price":3102,"bid_price":3099,"ask_size":5,"bid_size":7}]}`))

	require.Len(t, got.Bids, 2)
	require.Len(t, got.Asks, 2)
	assert.Equal(t, 3100.0, got.BestBid())
	assert.Equal(t, 3101.0, got.BestAsk())
	assert.Equal(t, 20.0, got.Bids[0].Quantity)
}

func TestBithumbFeedUsesBithumbVenue(t *testing.T) {
	var got domain.PriceQuote
	f := NewBithumb("wss://example", "KRW-XRP",
		func(q domain.PriceQuote) { got = q }, nil, discardLogger())

	f.dispatch([]byte(`{"type":"ticker","code":"KRW-XRP","trade_price":3099,"timestamp":1}`))
	assert.Equal(t, domain.VenueBithumb, got.Venue)
}

func TestUpbitDispatchDropsGarbage(t *testing.T) {
	called := false
	f := NewUpbit("wss://example", "KRW-XRP",
		func(domain.PriceQuote) { called = true },
		func(domain.OrderBookSnapshot) { called = true }, discardLogger())

	f.dispatch([]byte(`not json`))
	f.dispatch([]byte(`{"type":"ticker","trade_price":0}`))
	assert.False(t, called)
}

func TestBinanceDispatchTicker(t *testing.T) {
	var got domain.PriceQuote
	f := NewBinance("wss://example", "XRPUSDT",
		func(q domain.PriceQuote) { got = q }, nil, discardLogger())

	f.dispatch([]byte(`{"e":"24hrTicker","E":1724650000000,"s":"XRPUSDT","c":"2.1050","b":"2.1040","a":"2.1060","v":"99000"}`))

	assert.Equal(t, domain.VenueBinance, got.Venue)
	assert.Equal(t, 2.105, got.Price)
	assert.Equal(t, 2.104, got.Bid)
	assert.Equal(t, 2.106, got.Ask)
	assert.Equal(t, 99000.0, got.Volume24h)
}

func TestBinanceDispatchDepth(t *testing.T) {
	var got domain.OrderBookSnapshot
	f := NewBinance("wss://example", "XRPUSDT",
		nil, func(s domain.OrderBookSnapshot) { got = s }, discardLogger())

	f.dispatch([]byte(`{"lastUpdateId":42,"bids":[["2.1040","500"],["2.1030","800"]],"asks":[["2.1060","300"]]}`))

	require.Len(t, got.Bids, 2)
	require.Len(t, got.Asks, 1)
	assert.Equal(t, 2.104, got.BestBid())
	assert.Equal(t, 500.0, got.Bids[0].Quantity)
	assert.Equal(t, 2.106, got.BestAsk())
}

func TestMEXCDispatchDeals(t *testing.T) {
	var got domain.PriceQuote
	f := NewMEXC("wss://example", "XRPUSDT",
		func(q domain.PriceQuote) { got = q }, nil, discardLogger())

	f.dispatch([]byte(`{"c":"spot@public.deals.v3.api@XRPUSDT","s":"XRPUSDT","t":2,
		"d":{"deals":[{"p":"2.10","v":"10","t":1724650000000},{"p":"2.11","v":"5","t":1724650000100}]}}`))

	assert.Equal(t, domain.VenueMEXC, got.Venue)
	assert.Equal(t, 2.11, got.Price) // newest deal wins
}

func TestMEXCDispatchDepth(t *testing.T) {
	var got domain.OrderBookSnapshot
	f := NewMEXC("wss://example", "XRPUSDT",
		nil, func(s domain.OrderBookSnapshot) { got = s }, discardLogger())

	f.dispatch([]byte(`{"c":"spot@public.limit.depth.v3.api@XRPUSDT@20","t":1724650000000,
		"d":{"bids":[{"p":"2.10","v":"100"}],"asks":[{"p":"2.12","v":"50"},{"p":"2.13","v":"70"}]}}`))

	require.Len(t, got.Bids, 1)
	require.Len(t, got.Asks, 2)
	assert.Equal(t, 2.12, got.BestAsk())
}
