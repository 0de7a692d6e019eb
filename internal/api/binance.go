package api

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
)

const (
	dailyInterval = "1d"
	klinePageSize = 1000
)

// ListingDate is the first day Binance published spot klines.
var ListingDate = time.Date(2017, 8, 17, 0, 0, 0, 0, time.UTC)

// DailyClose is the closing price of one UTC day.
type DailyClose struct {
	Date  string
	Close decimal.Decimal
}

// BinanceClient reads public market data. Keys are optional for klines.
type BinanceClient struct {
	client   *binance.Client
	PageSize int
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	return &BinanceClient{
		client:   binance.NewClient(apiKey, secretKey),
		PageSize: klinePageSize,
	}
}

// WithBaseURL points the client at another endpoint, e.g. a test server.
func (c *BinanceClient) WithBaseURL(url string) *BinanceClient {
	c.client.BaseURL = url
	return c
}

// DailyCloses pages through daily klines for symbol from the given day up
// to the latest one Binance returns.
func (c *BinanceClient) DailyCloses(ctx context.Context, symbol string, from time.Time) ([]DailyClose, error) {
	var out []DailyClose
	start := from.UTC().Truncate(24 * time.Hour)
	for page := 1; ; page++ {
		klines, err := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(dailyInterval).
			StartTime(start.UnixMilli()).
			Limit(c.PageSize).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s klines from %s: %w", symbol, start.Format(model.DateLayout), err)
		}
		logger.Debug("Fetched kline page", "symbol", symbol, "page", page, "count", len(klines))

		for _, k := range klines {
			closePrice, err := decimal.NewFromString(k.Close)
			if err != nil {
				return nil, fmt.Errorf("invalid close price %q for %s: %w", k.Close, symbol, err)
			}
			out = append(out, DailyClose{
				Date:  time.UnixMilli(k.OpenTime).UTC().Format(model.DateLayout),
				Close: closePrice,
			})
		}
		if len(klines) < c.PageSize {
			break
		}
		start = time.UnixMilli(klines[len(klines)-1].OpenTime).UTC().AddDate(0, 0, 1)
	}
	logger.Info("Loaded daily closes", "symbol", symbol, "days", len(out))
	return out, nil
}
