package normalizer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
)

// Bitstamp reads the legacy Bitstamp transactions export.
type Bitstamp struct {
	csvLayout
	ids *model.IDGenerator
}

func NewBitstamp(ids *model.IDGenerator) *Bitstamp {
	return &Bitstamp{
		csvLayout: exactHeader("Type,Datetime,BTC,USD,BTC Price,FEE"),
		ids:       ids,
	}
}

func (p *Bitstamp) Name() string { return "bitstamp" }

func (p *Bitstamp) Parse(path string) ([]model.Transaction, error) {
	return readRows(path, p.Name(), p.parseRow)
}

func (p *Bitstamp) parseRow(row []string) (*model.Transaction, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("expected 6 columns, got %d", len(row))
	}
	ts, err := parseTimestamp(row[1])
	if err != nil {
		return nil, err
	}
	v, err := parseAmounts(row[2], row[3], row[4], row[5])
	if err != nil {
		return nil, err
	}
	btc, usd, price, fee := v[0], v[1], v[2], v[3]

	var tx model.Transaction
	switch row[0] {
	case "0":
		tx = model.NewTransaction(ts, model.TypeDeposit, btc.Abs(), decimal.Zero, nil)
	case "1":
		tx = model.NewTransaction(ts, model.TypeWithdraw, btc.Abs().Neg(), decimal.Zero, nil)
	case "2":
		var explicit *decimal.Decimal
		if !price.IsZero() {
			explicit = &price
		}
		tx = model.NewTransaction(ts, model.TypeTrade, btc, usd, explicit)
		tx.FeeUSD = model.RoundUSD(fee.Abs().Neg())
	default:
		return nil, fmt.Errorf("unknown bitstamp transaction type %q", row[0])
	}
	tx.ID = p.ids.Next()
	return &tx, nil
}

func (p *Bitstamp) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	return single(group)
}

func (p *Bitstamp) CheckComplete() error { return nil }
