package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/pricing"
)

// Consumption is the part of one lot used to cover a disposal.
type Consumption struct {
	Acquired time.Time
	Origin   string
	BTC      decimal.Decimal
	Basis    decimal.Decimal
	Proceeds decimal.Decimal
	Gain     decimal.Decimal
	LongTerm bool
}

// Totals are the running figures after a step.
type Totals struct {
	BTC       decimal.Decimal
	Cost      decimal.Decimal
	Realized  decimal.Decimal
	ShortTerm decimal.Decimal
	LongTerm  decimal.Decimal
}

// Step is the ledger's account of one transaction.
type Step struct {
	Tx          model.Transaction
	Delta       decimal.Decimal // signed BTC
	Fiat        decimal.Decimal // signed USD
	Consumed    []Consumption
	Totals      Totals
	MarketPrice decimal.Decimal
	Unrealized  decimal.Decimal
}

// Valuation is a mark-to-market of the remaining holdings.
type Valuation struct {
	At          time.Time
	MarketPrice decimal.Decimal
	Totals      Totals
	Unrealized  decimal.Decimal
	Lots        []model.Lot
}

// Ledger folds chronologically ordered transactions into open lots and
// realized gains. It is not safe for concurrent use.
type Ledger struct {
	oracle pricing.Oracle
	lots   *lotHeap
	seq    uint64
	totals Totals
}

func NewLedger(method string, oracle pricing.Oracle) (*Ledger, error) {
	order, err := PolicyOrder(method)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		oracle: oracle,
		lots:   &lotHeap{less: order},
	}, nil
}

// Load prefetches the price table when the oracle supports it.
func (l *Ledger) Load(ctx context.Context) error {
	if loader, ok := l.oracle.(pricing.Loader); ok {
		return loader.Load(ctx)
	}
	return nil
}

func (l *Ledger) Totals() Totals { return l.totals }

// Lots returns the open lots in the order they would be disposed of.
func (l *Ledger) Lots() []model.Lot { return l.lots.sorted() }

// flows returns the asset delta and signed fiat value of tx. Anything
// other than a trade is valued at its own price, else at market.
func flows(tx model.Transaction, market decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if tx.Type == model.TypeTrade {
		return tx.BTC, tx.USD.Add(tx.FeeUSD)
	}
	price := market
	if tx.HasPrice() {
		price = tx.Price.Abs()
	}
	return tx.BTC, model.RoundUSD(price.Mul(tx.BTC).Neg())
}

// Apply processes one transaction. On error the ledger is unchanged.
func (l *Ledger) Apply(tx model.Transaction) (Step, error) {
	market, err := l.oracle.PriceOn(tx.Timestamp)
	if err != nil {
		return Step{}, &model.LedgerError{Tx: tx, Err: err}
	}
	delta, fiat := flows(tx, market)
	step := Step{Tx: tx, Delta: delta, Fiat: fiat, MarketPrice: market}

	switch {
	case delta.IsPositive():
		l.seq++
		l.lots.push(heldLot{lot: model.NewLot(tx.Timestamp, delta, fiat.Neg(), tx), seq: l.seq})
		l.totals.BTC = l.totals.BTC.Add(delta)
		l.totals.Cost = l.totals.Cost.Add(fiat.Neg())
	case delta.IsNegative():
		consumed, err := l.dispose(tx, delta.Neg(), fiat)
		if err != nil {
			return Step{}, &model.LedgerError{Tx: tx, Err: err}
		}
		step.Consumed = consumed
		l.totals.BTC = l.totals.BTC.Add(delta)
	default:
		// Pure fiat flow, e.g. a fee charged in USD.
		l.totals.Realized = l.totals.Realized.Add(fiat)
		l.totals.ShortTerm = l.totals.ShortTerm.Add(fiat)
	}

	step.Totals = l.totals
	step.Unrealized = l.unrealized(market)
	return step, nil
}

// dispose takes qty from the open lots. Lots are popped into a scratch
// list first so that an oversell can be put back untouched.
func (l *Ledger) dispose(tx model.Transaction, qty, proceeds decimal.Decimal) ([]Consumption, error) {
	var taken []heldLot
	remaining := qty
	for remaining.IsPositive() {
		if l.lots.Len() == 0 {
			for _, h := range taken {
				l.lots.push(h)
			}
			return nil, fmt.Errorf("%w: selling %s with only %s on record", model.ErrInsufficientLots, qty, qty.Sub(remaining))
		}
		h := l.lots.pop()
		taken = append(taken, h)
		remaining = remaining.Sub(decimal.Min(h.lot.BTC, remaining))
	}

	var consumed []Consumption
	remaining = qty
	allocated := decimal.Zero
	for i, h := range taken {
		c := Consumption{
			Acquired: h.lot.Timestamp,
			Origin:   h.lot.Origin.ID,
			LongTerm: h.lot.LongTermAt(tx.Timestamp),
		}
		if h.lot.BTC.LessThanOrEqual(remaining) {
			c.BTC = h.lot.BTC
			c.Basis = h.lot.USD
		} else {
			rest, sold, err := h.lot.Sell(remaining)
			if err != nil {
				return nil, err
			}
			c.BTC = remaining
			c.Basis = sold
			l.lots.push(heldLot{lot: rest, seq: h.seq})
		}
		remaining = remaining.Sub(c.BTC)

		if i == len(taken)-1 {
			c.Proceeds = proceeds.Sub(allocated)
		} else {
			c.Proceeds = model.RoundUSD(proceeds.Mul(c.BTC).Div(qty))
		}
		allocated = allocated.Add(c.Proceeds)
		c.Gain = c.Proceeds.Sub(c.Basis)

		l.totals.Cost = l.totals.Cost.Sub(c.Basis)
		l.totals.Realized = l.totals.Realized.Add(c.Gain)
		if c.LongTerm {
			l.totals.LongTerm = l.totals.LongTerm.Add(c.Gain)
		} else {
			l.totals.ShortTerm = l.totals.ShortTerm.Add(c.Gain)
		}
		consumed = append(consumed, c)
	}
	return consumed, nil
}

func (l *Ledger) unrealized(market decimal.Decimal) decimal.Decimal {
	return model.RoundUSD(market.Mul(l.totals.BTC).Sub(l.totals.Cost))
}

// Value marks the holdings to market on the day of at.
func (l *Ledger) Value(at time.Time) (Valuation, error) {
	market, err := l.oracle.PriceOn(at)
	if err != nil {
		return Valuation{}, err
	}
	return Valuation{
		At:          at,
		MarketPrice: market,
		Totals:      l.totals,
		Unrealized:  l.unrealized(market),
		Lots:        l.Lots(),
	}, nil
}
