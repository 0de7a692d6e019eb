package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
)

var dollarAmount = regexp.MustCompile(`\$\d+\.\d+`)

// Coinbase reads the Coinbase account history export, which opens with a
// user line and repeats a column header on the second line.
type Coinbase struct {
	csvLayout
	ids *model.IDGenerator
}

func NewCoinbase(ids *model.IDGenerator) *Coinbase {
	return &Coinbase{
		csvLayout: csvLayout{header: regexp.MustCompile(`^User,.*,[0-9a-f]+`)},
		ids:       ids,
	}
}

func (p *Coinbase) Name() string { return "coinbase" }

func (p *Coinbase) Parse(path string) ([]model.Transaction, error) {
	return readRows(path, p.Name(), p.parseRow)
}

func (p *Coinbase) parseRow(row []string) (*model.Transaction, error) {
	if strings.HasPrefix(strings.Join(row, ","), "Timestamp,Balance,BTC Amount") {
		return nil, nil
	}
	if len(row) < 7 {
		return nil, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}
	stamp, to, note, total, totalCurrency := row[0], row[3], row[4], row[5], row[6]
	if len(stamp) > 19 {
		stamp = stamp[:19]
	}
	ts, err := parseTimestamp(stamp)
	if err != nil {
		return nil, err
	}
	btc, err := model.ParseAmount(row[2])
	if err != nil {
		return nil, err
	}

	typ := model.TypeDeposit
	usd := decimal.Zero
	if strings.Contains(note, "$") {
		typ = model.TypeTrade
		if strings.TrimSpace(total) != "" {
			if totalCurrency != "USD" {
				return nil, fmt.Errorf("unsupported total currency %q", totalCurrency)
			}
			if usd, err = model.ParseAmount(total); err != nil {
				return nil, err
			}
		} else {
			prices := dollarAmount.FindAllString(note, -1)
			if len(prices) != 1 {
				return nil, fmt.Errorf("ambiguous or missing price: %s", note)
			}
			if usd, err = model.ParseAmount(prices[0][1:]); err != nil {
				return nil, err
			}
		}
		// Fiat always moves against the asset.
		paid := strings.Contains(note, "Paid for")
		switch {
		case btc.IsPositive():
			usd = usd.Abs().Neg()
		case paid:
			return nil, fmt.Errorf("note says paid but amount %s is not a purchase: %s", btc, note)
		default:
			usd = usd.Abs()
		}
	} else if !btc.IsPositive() {
		typ = model.TypeWithdraw
	}

	tx := model.NewTransaction(ts, typ, btc, usd, nil)
	tx.ID = p.ids.Next()
	tx.Info = strings.TrimSpace(note + " " + to)
	return &tx, nil
}

func (p *Coinbase) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	return single(group)
}

func (p *Coinbase) CheckComplete() error { return nil }
