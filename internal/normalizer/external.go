package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/repository"
)

// externalDoc is the hand-maintained file of events no exchange reported.
type externalDoc struct {
	Transactions []externalRecord `json:"transactions"`
}

type externalRecord struct {
	Time   string      `json:"time"`
	Type   string      `json:"type"`
	BTC    json.Number `json:"btc,omitempty"`
	USD    json.Number `json:"usd,omitempty"`
	Price  json.Number `json:"price,omitempty"`
	FeeUSD json.Number `json:"fee_usd,omitempty"`
	FeeBTC json.Number `json:"fee_btc,omitempty"`
	ID     string      `json:"id,omitempty"`
	Info   string      `json:"info,omitempty"`
}

type External struct {
	ids     *model.IDGenerator
	storage *repository.Storage
}

func NewExternal(ids *model.IDGenerator, storage *repository.Storage) *External {
	return &External{ids: ids, storage: storage}
}

func (p *External) Name() string { return "external" }

func (p *External) Recognizes(path string) (bool, error) {
	prefix, err := readPrefix(path, 100)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.Join(strings.Fields(string(prefix)), ""), `{"transactions":`), nil
}

func (p *External) Parse(path string) ([]model.Transaction, error) {
	var doc externalDoc
	found, err := p.storage.Read(path, &doc)
	if err != nil {
		return nil, &model.ParseError{Path: path, Err: err}
	}
	if !found {
		return nil, nil
	}

	out := make([]model.Transaction, 0, len(doc.Transactions))
	for i, rec := range doc.Transactions {
		tx, err := p.convert(rec)
		if err != nil {
			raw, _ := json.Marshal(rec)
			return nil, &model.ParseError{Path: path, Line: i + 1, Record: string(raw), Err: err}
		}
		tx.Source = p.Name()
		tx.Line = fmt.Sprintf("%s#%d", path, i)
		out = append(out, tx)
	}
	return out, nil
}

func (p *External) convert(rec externalRecord) (model.Transaction, error) {
	ts, err := parseExternalTime(rec.Time)
	if err != nil {
		return model.Transaction{}, err
	}
	typ := model.TxType(rec.Type)
	switch typ {
	case model.TypeDeposit, model.TypeWithdraw, model.TypeTrade, model.TypeFee:
	default:
		return model.Transaction{}, fmt.Errorf("unknown transaction type %q", rec.Type)
	}
	v, err := parseAmounts(rec.BTC.String(), rec.USD.String(), rec.Price.String(), rec.FeeUSD.String(), rec.FeeBTC.String())
	if err != nil {
		return model.Transaction{}, err
	}
	var price *decimal.Decimal
	if !v[2].IsZero() {
		abs := v[2].Abs()
		price = &abs
	}
	tx := model.NewTransaction(ts, typ, v[0], v[1], price)
	tx.FeeUSD = model.RoundUSD(v[3])
	tx.FeeBTC = model.RoundBTC(v[4])
	tx.ID = rec.ID
	if tx.ID == "" {
		tx.ID = p.ids.Next()
	}
	tx.Info = rec.Info
	return tx, nil
}

func parseExternalTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(model.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q is neither RFC3339 nor %s", s, model.DateLayout)
	}
	return t, nil
}

func (p *External) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	return mergeUnion(group)
}

func (p *External) CheckComplete() error { return nil }
