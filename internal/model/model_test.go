package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewTransactionDerivesUnsignedPrice(t *testing.T) {
	ts := time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC)

	buy := NewTransaction(ts, TypeTrade, d("2"), d("-500"), nil)
	require.NotNil(t, buy.Price)
	assert.True(t, d("250").Equal(*buy.Price))

	dep := NewTransaction(ts, TypeDeposit, d("1"), decimal.Zero, nil)
	assert.Nil(t, dep.Price)
	assert.False(t, dep.HasPrice())
}

func TestNewTransactionQuantizes(t *testing.T) {
	tx := NewTransaction(time.Time{}, TypeTrade, d("0.123456789"), d("-10.005"), nil)
	assert.Equal(t, "0.12345679", tx.BTC.StringFixed(8))
	assert.Equal(t, "-10.01", tx.USD.StringFixed(2))
}

func TestTransactionLessBreaksTiesOnID(t *testing.T) {
	ts := time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC)
	a := Transaction{Timestamp: ts, ID: "unique:00000001"}
	b := Transaction{Timestamp: ts, ID: "unique:00000002"}
	c := Transaction{Timestamp: ts.Add(-time.Second), ID: "unique:00000009"}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, c.Less(a))
}

func TestLotSellKeepsUnitPrice(t *testing.T) {
	lot := NewLot(time.Now(), d("1"), d("200"), Transaction{})

	rest, sold, err := lot.Sell(d("0.5"))
	require.NoError(t, err)
	assert.True(t, d("100").Equal(sold))
	assert.True(t, d("0.5").Equal(rest.BTC))
	assert.True(t, d("100").Equal(rest.USD))
	assert.True(t, lot.Price().Equal(rest.Price()))

	// the original is untouched
	assert.True(t, d("1").Equal(lot.BTC))
}

func TestLotSellRoundsOnce(t *testing.T) {
	lot := NewLot(time.Now(), d("3"), d("100"), Transaction{})

	rest, sold, err := lot.Sell(d("1"))
	require.NoError(t, err)
	assert.Equal(t, "33.33", sold.StringFixed(2))
	assert.Equal(t, "66.67", rest.USD.StringFixed(2))
	assert.True(t, d("100").Equal(sold.Add(rest.USD)))
}

func TestLotSellRejectsWholeOrMore(t *testing.T) {
	lot := NewLot(time.Now(), d("1"), d("200"), Transaction{})

	_, _, err := lot.Sell(d("1"))
	assert.Error(t, err)
	_, _, err = lot.Sell(d("-0.1"))
	assert.Error(t, err)
}

func TestLotLongTermAt(t *testing.T) {
	acquired := time.Date(2013, 3, 1, 12, 0, 0, 0, time.UTC)
	lot := NewLot(acquired, d("1"), d("1"), Transaction{})

	assert.False(t, lot.LongTermAt(acquired.AddDate(0, 11, 30)))
	assert.True(t, lot.LongTermAt(acquired.AddDate(1, 0, 0)))
}

func TestIDGeneratorMonotonic(t *testing.T) {
	g := NewIDGenerator()
	first := g.Next()
	second := g.Next()
	assert.Equal(t, "unique:00000001", first)
	assert.Less(t, first, second)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" ")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = ParseAmount("-1.5")
	require.NoError(t, err)
	assert.True(t, d("-1.5").Equal(v))

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}
