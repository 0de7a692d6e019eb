package normalizer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
)

var tradeID = regexp.MustCompile(`tid:\d+`)

// MtGox reads the per-currency MtGox wallet history. A trade shows up as an
// asset leg in the BTC file and a fiat leg in the USD file, tied by trade id,
// so both files must be supplied in pairs.
type MtGox struct {
	csvLayout
	ids *model.IDGenerator

	seenBTC int
	seenUSD int
}

func NewMtGox(ids *model.IDGenerator) *MtGox {
	return &MtGox{
		csvLayout: exactHeader("Index,Date,Type,Info,Value,Balance"),
		ids:       ids,
	}
}

func (p *MtGox) Name() string { return "mtgox" }

func (p *MtGox) Parse(path string) ([]model.Transaction, error) {
	base := strings.ToUpper(filepath.Base(path))
	var isBTC bool
	switch {
	case strings.Contains(base, "BTC"):
		isBTC = true
		p.seenBTC++
	case strings.Contains(base, "USD"):
		p.seenUSD++
	default:
		return nil, &model.ConfigError{Path: path, Msg: "mtgox file name must contain BTC or USD"}
	}
	return readRows(path, p.Name(), func(row []string) (*model.Transaction, error) {
		return p.parseRow(row, isBTC)
	})
}

func (p *MtGox) parseRow(row []string, isBTC bool) (*model.Transaction, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("expected 6 columns, got %d", len(row))
	}
	ts, err := parseTimestamp(row[1])
	if err != nil {
		return nil, err
	}
	kind, info := row[2], row[3]
	value, err := model.ParseAmount(row[4])
	if err != nil {
		return nil, err
	}

	id := tradeID.FindString(info)
	if id == "" {
		id = p.ids.Next()
	}

	zero := decimal.Zero
	var tx model.Transaction
	switch {
	case kind == "out":
		tx = model.NewTransaction(ts, model.TypeTrade, value.Neg(), zero, nil)
	case kind == "in":
		tx = model.NewTransaction(ts, model.TypeTrade, value, zero, nil)
	case kind == "earned":
		tx = model.NewTransaction(ts, model.TypeTrade, zero, value, nil)
	case kind == "spent":
		tx = model.NewTransaction(ts, model.TypeTrade, zero, value.Neg(), nil)
	case kind == "fee" && isBTC:
		tx = model.NewTransaction(ts, model.TypeFee, zero, zero, nil)
		tx.FeeBTC = model.RoundBTC(value.Abs().Neg())
	case kind == "fee":
		tx = model.NewTransaction(ts, model.TypeFee, zero, zero, nil)
		tx.FeeUSD = model.RoundUSD(value.Abs().Neg())
	case kind == "withdraw" && isBTC:
		tx = model.NewTransaction(ts, model.TypeWithdraw, value.Neg(), zero, nil)
	case kind == "deposit" && isBTC:
		tx = model.NewTransaction(ts, model.TypeDeposit, value, zero, nil)
	case kind == "withdraw" || kind == "deposit":
		// Fiat moving in or out of the exchange is not an asset event.
		logger.Debug("Skipping mtgox fiat cash movement", "type", kind, "info", info)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mtgox entry type %q", kind)
	}
	tx.ID = id
	tx.Info = info
	return &tx, nil
}

func (p *MtGox) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	return mergeUnion(group)
}

func (p *MtGox) CheckComplete() error {
	if p.seenBTC != p.seenUSD {
		return &model.ConfigError{Msg: fmt.Sprintf("mismatched number of mtgox BTC and USD files (%d vs %d)", p.seenBTC, p.seenUSD)}
	}
	return nil
}
