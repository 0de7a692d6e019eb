package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcoin-gains/internal/config"
	"bitcoin-gains/internal/metrics"
	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/normalizer"
	"bitcoin-gains/internal/pricing"
	"bitcoin-gains/internal/repository"
)

const engineBitstamp = `Type,Datetime,BTC,USD,BTC Price,FEE
2,2013-01-01 10:00:00,1,-100,100,0
2,2013-01-02 10:00:00,1,-200,200,0
1,2013-01-03 10:00:00,0.5,0,0,0
2,2013-01-05 10:00:00,-1.5,450,300,0
`

const engineWallet = `[{"account":"","address":"1A","category":"receive","amount":0.5,"txid":"t1","time":1357214400},
 {"account":"","address":"1B","category":"send","amount":-0.25,"fee":-0.0001,"txid":"t2","time":1357387200}]`

func writeInputs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "bitstamp.csv")
	b := filepath.Join(dir, "wallet.json")
	require.NoError(t, os.WriteFile(a, []byte(engineBitstamp), 0644))
	require.NoError(t, os.WriteFile(b, []byte(engineWallet), 0644))
	return []string{a, b}
}

func newTestEngine(t *testing.T, method string, oracle stubOracle) *Engine {
	t.Helper()
	ledger, err := NewLedger(method, oracle)
	require.NoError(t, err)
	e := NewEngine(
		normalizer.Default(model.NewIDGenerator(), repository.NewStorage()),
		NewTransferMatcher(24*time.Hour, AutoConfirm{}),
		ledger,
		metrics.NewTracker(),
		method,
	)
	e.Now = func() time.Time { return time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestEngineRun(t *testing.T) {
	oracle := stubOracle{
		prices:   map[string]decimal.Decimal{"2013-01-05": dec("300"), "2014-01-01": dec("800")},
		fallback: dec("100"),
	}
	res, err := newTestEngine(t, config.MethodFIFO, oracle).Run(context.Background(), writeInputs(t))
	require.NoError(t, err)

	require.Len(t, res.Transfers.Pairs, 1)
	assert.Equal(t, "t1", res.Transfers.Pairs[0].Deposit.ID)
	require.Len(t, res.Steps, 4, "two buys, one sale, one wallet send")

	sale := res.Steps[2]
	assertDec(t, "250", sale.Totals.Realized)
	assertDec(t, "0.5", sale.Totals.BTC)

	// The unmatched send of 0.25 is a disposal at that day's market price.
	send := res.Steps[3]
	assertDec(t, "75", send.Fiat)
	assertDec(t, "275", send.Totals.Realized)

	final := res.Final
	assertDec(t, "800", final.MarketPrice)
	assertDec(t, "0.25", final.Totals.BTC)
	assertDec(t, "50", final.Totals.Cost)
	assertDec(t, "150", final.Unrealized)
	require.Len(t, final.Lots, 1)
}

func TestEngineIsDeterministic(t *testing.T) {
	oracle := stubOracle{fallback: dec("100")}
	paths := writeInputs(t)

	first, err := newTestEngine(t, config.MethodLIFO, oracle).Run(context.Background(), paths)
	require.NoError(t, err)
	second, err := newTestEngine(t, config.MethodLIFO, oracle).Run(context.Background(), paths)
	require.NoError(t, err)

	require.Equal(t, len(first.Steps), len(second.Steps))
	for i := range first.Steps {
		assert.True(t, first.Steps[i].Totals.Realized.Equal(second.Steps[i].Totals.Realized))
		assert.True(t, first.Steps[i].Unrealized.Equal(second.Steps[i].Unrealized))
	}
	assert.True(t, first.Final.Totals.Realized.Equal(second.Final.Totals.Realized))
}

func TestEngineStopsOnOversell(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bitstamp.csv")
	require.NoError(t, os.WriteFile(path, []byte("Type,Datetime,BTC,USD,BTC Price,FEE\n2,2013-01-01 10:00:00,-1,100,100,0\n"), 0644))

	res, err := newTestEngine(t, config.MethodFIFO, stubOracle{fallback: dec("100")}).Run(context.Background(), []string{path})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, model.ErrInsufficientLots))
}

func TestEngineRejectsUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mystery.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0644))

	_, err := newTestEngine(t, config.MethodFIFO, stubOracle{}).Run(context.Background(), []string{path})
	var ce *model.ConfigError
	assert.True(t, errors.As(err, &ce))
}

// waitingFeed blocks until the load is cancelled.
type waitingFeed struct{}

func (waitingFeed) Load(ctx context.Context) (pricing.Table, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return pricing.Table{}, nil
	}
}

func TestEngineCancelsPriceDownload(t *testing.T) {
	ledger, err := NewLedger(config.MethodFIFO, pricing.NewFeedOracle(waitingFeed{}, dec("100")))
	require.NoError(t, err)
	e := NewEngine(
		normalizer.Default(model.NewIDGenerator(), repository.NewStorage()),
		NewTransferMatcher(24*time.Hour, AutoConfirm{}),
		ledger,
		metrics.NewTracker(),
		config.MethodFIFO,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := e.Run(ctx, writeInputs(t))

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, ledger.Totals().BTC.IsZero(), "no transaction applied")
}

func TestEngineCoinbaseBuyHasPositiveBasis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coinbase.csv")
	content := "User,me@example.com,0123abcd\n2013-03-01 10:00:00,1.0,1.0,,\"Bought 1 BTC for $50.00.\",,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	res, err := newTestEngine(t, config.MethodFIFO, stubOracle{fallback: dec("100")}).Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, res.Final.Lots, 1)
	assertDec(t, "50", res.Final.Totals.Cost)
	assertDec(t, "50", res.Final.Lots[0].USD)
}
