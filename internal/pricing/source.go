package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"bitcoin-gains/internal/api"
	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
)

// Feed produces the full daily price table.
type Feed interface {
	Load(ctx context.Context) (Table, error)
}

const binanceScheme = "binance:"

// NewFeed picks a feed by the shape of location: binance:SYMBOL, an
// http(s) URL, or a local file path.
func NewFeed(location string) Feed {
	switch {
	case strings.HasPrefix(location, binanceScheme):
		return &BinanceFeed{
			Client: api.NewBinanceClient("", ""),
			Symbol: strings.ToUpper(strings.TrimPrefix(location, binanceScheme)),
			From:   api.ListingDate,
		}
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPFeed(location)
	default:
		return &FileFeed{Path: location}
	}
}

type FileFeed struct {
	Path string
}

func (f *FileFeed) Load(_ context.Context) (Table, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, &model.ConfigError{Path: f.Path, Msg: fmt.Sprintf("cannot open price feed: %v", err)}
	}
	defer file.Close()

	table, layout, err := ParseTable(file, f.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded price feed", "path", f.Path, "layout", layout, "days", len(table))
	return table, nil
}

// HTTPFeed downloads a history, retrying transient failures.
type HTTPFeed struct {
	URL         string
	Client      *http.Client
	MaxAttempts int
	Backoff     *backoff.Backoff
}

func NewHTTPFeed(url string) *HTTPFeed {
	return &HTTPFeed{
		URL:         url,
		Client:      &http.Client{Timeout: 30 * time.Second},
		MaxAttempts: 5,
		Backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    10 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

// errPermanent marks a failure that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

func (f *HTTPFeed) Load(ctx context.Context) (Table, error) {
	f.Backoff.Reset()
	var lastErr error
	for attempt := 1; attempt <= f.MaxAttempts; attempt++ {
		table, err := f.fetch(ctx)
		if err == nil {
			return table, nil
		}
		if errors.Is(err, errPermanent) {
			return nil, err
		}
		lastErr = err
		if attempt == f.MaxAttempts {
			break
		}

		wait := f.Backoff.Duration()
		logger.Warn("Price feed download failed, retrying", "url", f.URL, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("price feed %s unavailable after %d attempts: %w", f.URL, f.MaxAttempts, lastErr)
}

func (f *HTTPFeed) fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s returned %s", errPermanent, f.URL, resp.Status)
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s returned %s", f.URL, resp.Status)
	}

	table, layout, err := ParseTable(resp.Body, f.URL)
	if err != nil {
		var pe *model.ParseError
		var ce *model.ConfigError
		if errors.As(err, &pe) || errors.As(err, &ce) {
			return nil, fmt.Errorf("%w: %w", errPermanent, err)
		}
		return nil, err
	}
	logger.Info("Downloaded price feed", "url", f.URL, "layout", layout, "days", len(table))
	return table, nil
}

// BinanceFeed builds the table from daily kline closes.
type BinanceFeed struct {
	Client *api.BinanceClient
	Symbol string
	From   time.Time
}

func (f *BinanceFeed) Load(ctx context.Context) (Table, error) {
	closes, err := f.Client.DailyCloses(ctx, f.Symbol, f.From)
	if err != nil {
		return nil, err
	}
	table := make(Table, len(closes))
	for _, c := range closes {
		table[c.Date] = c.Close
	}
	return table, nil
}
