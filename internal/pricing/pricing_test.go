package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcoin-gains/internal/api"
	"bitcoin-gains/internal/model"
)

const bitcoinAverageFeed = `datetime,high,low,average,volume
2013-01-01 00:00:00,14.00,13.00,13.50,1000
2013-01-02 00:00:00,15.00,14.00,14.50,1200
`

const blockchainFeed = `
01/01/2013 00:00:00,13.30
02/01/2013 00:00:00,13.28
`

func TestParseTableLayouts(t *testing.T) {
	table, layout, err := ParseTable(strings.NewReader(bitcoinAverageFeed), "avg.csv")
	require.NoError(t, err)
	assert.Equal(t, LayoutBitcoinAverage, layout)
	assert.Equal(t, "13.5", table["2013-01-01"].String())
	assert.Equal(t, "14.5", table["2013-01-02"].String())

	table, layout, err = ParseTable(strings.NewReader(blockchainFeed), "bc.csv")
	require.NoError(t, err)
	assert.Equal(t, LayoutBlockchain, layout)
	assert.Equal(t, "13.3", table["2013-01-01"].String())
	assert.Equal(t, "13.28", table["2013-01-02"].String())
}

func TestParseTableRejectsUnknownLayout(t *testing.T) {
	_, _, err := ParseTable(strings.NewReader("date;price\n"), "x.csv")
	var ce *model.ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestParseTableDoesNotMixLayouts(t *testing.T) {
	mixed := bitcoinAverageFeed + "03/01/2013 00:00:00,13.40\n"
	_, _, err := ParseTable(strings.NewReader(mixed), "mixed.csv")
	var pe *model.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Line)
}

type stubFeed struct {
	table Table
	err   error
	calls atomic.Int32
}

func (s *stubFeed) Load(context.Context) (Table, error) {
	s.calls.Add(1)
	return s.table, s.err
}

func TestFeedOracleLoadsOnceAndFallsBack(t *testing.T) {
	feed := &stubFeed{table: Table{"2013-01-01": decimal.NewFromInt(13)}}
	o := NewFeedOracle(feed, decimal.NewFromInt(100))
	assert.Zero(t, feed.calls.Load(), "nothing is loaded before the first query")

	p, err := o.PriceOn(time.Date(2013, 1, 1, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "13", p.String())

	p, err = o.PriceOn(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "100", p.String())

	assert.Equal(t, int32(1), feed.calls.Load())
	assert.Equal(t, int64(1), o.Misses())
}

func TestFeedOracleLoadFailureIsFatal(t *testing.T) {
	o := NewFeedOracle(&stubFeed{err: errors.New("boom")}, decimal.NewFromInt(100))
	_, err := o.PriceOn(time.Now())
	assert.EqualError(t, err, "boom")
}

func TestFileFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte(blockchainFeed), 0644))

	feed := NewFeed(path)
	require.IsType(t, &FileFeed{}, feed)
	table, err := feed.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 2)

	_, err = NewFeed(filepath.Join(t.TempDir(), "missing.csv")).Load(context.Background())
	var ce *model.ConfigError
	assert.True(t, errors.As(err, &ce))
}

func fastHTTPFeed(url string) *HTTPFeed {
	f := NewHTTPFeed(url)
	f.Backoff = &backoff.Backoff{Min: time.Millisecond, Max: 2 * time.Millisecond}
	return f
}

func TestHTTPFeedRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, bitcoinAverageFeed)
	}))
	defer srv.Close()

	table, err := fastHTTPFeed(srv.URL).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 2)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPFeedGivesUpOnClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastHTTPFeed(srv.URL).Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFeedRetriesRateLimits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, bitcoinAverageFeed)
	}))
	defer srv.Close()

	table, err := fastHTTPFeed(srv.URL).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 2)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFeedStopsAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fastHTTPFeed(srv.URL).Load(context.Background())
	assert.ErrorContains(t, err, "after 5 attempts")
	assert.Equal(t, int32(5), hits.Load())
}

func TestNewFeedBinance(t *testing.T) {
	feed := NewFeed("binance:btcusdt")
	bf, ok := feed.(*BinanceFeed)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", bf.Symbol)
	assert.Equal(t, api.ListingDate, bf.From)
}

func TestBinanceFeedBuildsTable(t *testing.T) {
	day := api.ListingDate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[[%d,"1","2","0.5","4285.08","10",%d,"100",5,"5","50","0"]]`, day.UnixMilli(), day.UnixMilli()+86399999)
	}))
	defer srv.Close()

	feed := &BinanceFeed{Client: api.NewBinanceClient("", "").WithBaseURL(srv.URL), Symbol: "BTCUSDT", From: day}
	table, err := feed.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4285.08", table["2017-08-17"].String())
}
