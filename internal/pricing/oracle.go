package pricing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
)

// Oracle returns the market value of one BTC on the day of t.
type Oracle interface {
	PriceOn(t time.Time) (decimal.Decimal, error)
}

// Loader is an Oracle whose table can be fetched up front, so the
// download observes the caller's context instead of the first lookup's.
type Loader interface {
	Load(ctx context.Context) error
}

// FeedOracle loads its table from a Feed on first use and keeps it for the
// rest of the process. Days missing from the table are valued at the
// fallback price, which is an approximation and is counted.
type FeedOracle struct {
	feed     Feed
	fallback decimal.Decimal

	once  sync.Once
	table Table
	err   error

	misses atomic.Int64
}

func NewFeedOracle(feed Feed, fallback decimal.Decimal) *FeedOracle {
	return &FeedOracle{feed: feed, fallback: fallback}
}

// Load fetches the table if it has not been fetched yet. A failed load is
// not retried.
func (o *FeedOracle) Load(ctx context.Context) error {
	o.once.Do(func() {
		start := time.Now()
		o.table, o.err = o.feed.Load(ctx)
		if o.err == nil {
			logger.Debug("Price table ready", "days", len(o.table), "duration", time.Since(start))
		}
	})
	return o.err
}

func (o *FeedOracle) PriceOn(t time.Time) (decimal.Decimal, error) {
	if err := o.Load(context.Background()); err != nil {
		return decimal.Zero, err
	}
	date := t.UTC().Format(model.DateLayout)
	if p, ok := o.table[date]; ok {
		return p, nil
	}
	o.misses.Add(1)
	logger.Debug("No price for date, using fallback", "date", date, "fallback", o.fallback)
	return o.fallback, nil
}

// Misses is the number of lookups answered with the fallback price.
func (o *FeedOracle) Misses() int64 {
	return o.misses.Load()
}
