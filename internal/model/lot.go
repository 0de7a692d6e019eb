package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a remaining, not yet disposed acquisition. Lots are values:
// a partial disposal yields a new Lot, the original is dropped.
type Lot struct {
	Timestamp time.Time
	BTC       decimal.Decimal
	USD       decimal.Decimal
	Origin    Transaction
}

func NewLot(ts time.Time, btc, usd decimal.Decimal, origin Transaction) Lot {
	return Lot{Timestamp: ts, BTC: btc, USD: usd, Origin: origin}
}

// Price is the cost basis per unit.
func (l Lot) Price() decimal.Decimal {
	if l.BTC.IsZero() {
		return decimal.Zero
	}
	return l.USD.Div(l.BTC)
}

// Sell removes btc from the lot. It returns the lot that remains and the
// cost basis attributed to the sold quantity, rounded once to fiat precision.
// btc must be strictly less than the lot quantity.
func (l Lot) Sell(btc decimal.Decimal) (Lot, decimal.Decimal, error) {
	if !btc.IsPositive() || btc.GreaterThanOrEqual(l.BTC) {
		return Lot{}, decimal.Zero, fmt.Errorf("cannot sell %s from lot of %s", btc, l.BTC)
	}
	sold := RoundUSD(l.USD.Mul(btc).Div(l.BTC))
	rest := Lot{
		Timestamp: l.Timestamp,
		BTC:       l.BTC.Sub(btc),
		USD:       l.USD.Sub(sold),
		Origin:    l.Origin,
	}
	return rest, sold, nil
}

// LongTermAt reports whether disposing of the lot at t is a long-term holding.
func (l Lot) LongTermAt(t time.Time) bool {
	return !t.Before(l.Timestamp.AddDate(1, 0, 0))
}

func (l Lot) String() string {
	return fmt.Sprintf("Lot(%s, %s, %s)", l.Timestamp.Format(DateLayout), l.BTC.StringFixed(8), RoundUSD(l.Price()).StringFixed(2))
}
