package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/bitly/go-simplejson"
	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
)

const bitcoindPrefix = `[{"account":`

// Bitcoind reads the output of `bitcoin-cli listtransactions`.
type Bitcoind struct{}

func NewBitcoind() *Bitcoind { return &Bitcoind{} }

func (p *Bitcoind) Name() string { return "bitcoind" }

func (p *Bitcoind) Recognizes(path string) (bool, error) {
	prefix, err := readPrefix(path, 100)
	if err != nil {
		return false, err
	}
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(prefix))
	return strings.HasPrefix(stripped, bitcoindPrefix), nil
}

func (p *Bitcoind) Parse(path string) ([]model.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := simplejson.NewFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ParseError{Path: path, Err: err}
	}
	items, err := doc.Array()
	if err != nil {
		return nil, &model.ParseError{Path: path, Err: err}
	}

	var out []model.Transaction
	for i := range items {
		item := doc.GetIndex(i)
		tx, err := p.parseItem(item)
		if err != nil {
			raw, _ := item.Encode()
			return nil, &model.ParseError{Path: path, Line: i + 1, Record: string(raw), Err: err}
		}
		if tx == nil {
			continue
		}
		tx.Source = p.Name()
		tx.Line = fmt.Sprintf("%s[%d]", path, i)
		out = append(out, *tx)
	}
	return out, nil
}

func (p *Bitcoind) parseItem(item *simplejson.Json) (*model.Transaction, error) {
	category := item.Get("category").MustString()
	var typ model.TxType
	switch category {
	case "receive":
		typ = model.TypeDeposit
	case "send":
		typ = model.TypeWithdraw
	default:
		return nil, nil
	}

	unix, err := item.Get("time").Int64()
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}
	amount, err := jsonDecimal(item, "amount")
	if err != nil {
		return nil, err
	}
	tx := model.NewTransaction(time.Unix(unix, 0).UTC(), typ, amount, decimal.Zero, nil)
	if typ == model.TypeWithdraw {
		fee, err := jsonDecimal(item, "fee")
		if err != nil {
			return nil, err
		}
		tx.FeeBTC = model.RoundBTC(fee)
	}
	tx.ID = item.Get("txid").MustString()
	tx.Info = strings.Join(strings.Fields(strings.Join([]string{
		item.Get("to").MustString(),
		item.Get("comment").MustString(),
		item.Get("address").MustString(),
	}, " ")), " ")
	return &tx, nil
}

// jsonDecimal reads an optional numeric field without going through float64.
func jsonDecimal(item *simplejson.Json, key string) (decimal.Decimal, error) {
	v, ok := item.CheckGet(key)
	if !ok {
		return decimal.Zero, nil
	}
	switch n := v.Interface().(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	case string:
		return model.ParseAmount(n)
	case nil:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%s: unexpected value %v", key, n)
	}
}

// MergeGroup keeps every leg of a multi-output send but charges the
// network fee only once.
func (p *Bitcoind) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	out := make([]model.Transaction, len(group))
	copy(out, group)
	for i := 1; i < len(out); i++ {
		out[i].FeeBTC = decimal.Zero
	}
	return out, nil
}

func (p *Bitcoind) CheckComplete() error { return nil }
