package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the canonical kind of an economic event.
type TxType string

const (
	TypeDeposit  TxType = "deposit"
	TypeWithdraw TxType = "withdraw"
	TypeTrade    TxType = "trade"
	TypeFee      TxType = "fee"
)

// Transaction represents one economic event after normalization.
//
// BTC and USD are signed: positive means received, negative means given up.
// FeeUSD and FeeBTC are signed flows as well, so a fee paid is negative.
// Price is the unsigned fiat-per-unit value, nil when unknown.
type Transaction struct {
	Timestamp time.Time
	Type      TxType
	BTC       decimal.Decimal
	USD       decimal.Decimal
	Price     *decimal.Decimal
	FeeUSD    decimal.Decimal
	FeeBTC    decimal.Decimal
	ID        string
	Info      string
	Source    string // name of the normalizer that produced it
	Line      string // raw record, kept for diagnostics
}

// NewTransaction builds a Transaction with amounts quantized to their
// stored precision and Price derived from usd/btc when not supplied.
func NewTransaction(ts time.Time, typ TxType, btc, usd decimal.Decimal, price *decimal.Decimal) Transaction {
	tx := Transaction{
		Timestamp: ts,
		Type:      typ,
		BTC:       RoundBTC(btc),
		USD:       RoundUSD(usd),
		Price:     price,
	}
	if tx.Price == nil {
		tx.Price = DerivePrice(tx.USD, tx.BTC)
	}
	return tx
}

// DerivePrice returns |usd/btc|, or nil when either side is zero.
func DerivePrice(usd, btc decimal.Decimal) *decimal.Decimal {
	if usd.IsZero() || btc.IsZero() {
		return nil
	}
	p := usd.Div(btc).Abs()
	return &p
}

// HasPrice reports whether an explicit or derived price is known.
func (t Transaction) HasPrice() bool {
	return t.Price != nil && !t.Price.IsZero()
}

// Less orders transactions by timestamp, then by id.
func (t Transaction) Less(other Transaction) bool {
	if !t.Timestamp.Equal(other.Timestamp) {
		return t.Timestamp.Before(other.Timestamp)
	}
	return t.ID < other.ID
}

func (t Transaction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%s, usd=%s, btc=%s, %s)%s",
		t.Type, t.Timestamp.Format(DateLayout), t.USD.StringFixed(2), t.BTC.StringFixed(8), t.Source, t.ID)
	if t.Info != "" {
		fmt.Fprintf(&b, " [%s]", t.Info)
	}
	return b.String()
}
