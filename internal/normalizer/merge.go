package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
)

// mergeUnion collapses the legs of one logical event. Each attribute is
// taken from whichever leg carries a non-zero value for it; two legs with
// different non-zero values for the same attribute cannot be reconciled.
func mergeUnion(group []model.Transaction) ([]model.Transaction, error) {
	if len(group) == 1 {
		return group, nil
	}
	fail := func(err error) ([]model.Transaction, error) {
		return nil, &model.MergeError{Source: group[0].Source, ID: group[0].ID, Group: group, Err: err}
	}

	types := lo.Uniq(lo.FilterMap(group, func(t model.Transaction, _ int) (model.TxType, bool) {
		return t.Type, t.Type != model.TypeFee
	}))
	merged := model.Transaction{
		Timestamp: group[0].Timestamp,
		ID:        group[0].ID,
		Source:    group[0].Source,
	}
	switch len(types) {
	case 0:
		merged.Type = model.TypeFee
	case 1:
		merged.Type = types[0]
	default:
		return fail(fmt.Errorf("legs disagree on type: %v", types))
	}

	var err error
	pick := func(name string, get func(model.Transaction) decimal.Decimal) decimal.Decimal {
		var v decimal.Decimal
		for _, t := range group {
			x := get(t)
			if x.IsZero() {
				continue
			}
			if !v.IsZero() && !v.Equal(x) {
				err = errors.Join(err, fmt.Errorf("conflicting %s: %s vs %s", name, v, x))
				continue
			}
			v = x
		}
		return v
	}
	merged.BTC = pick("btc", func(t model.Transaction) decimal.Decimal { return t.BTC })
	merged.USD = pick("usd", func(t model.Transaction) decimal.Decimal { return t.USD })
	merged.FeeUSD = pick("fee_usd", func(t model.Transaction) decimal.Decimal { return t.FeeUSD })
	merged.FeeBTC = pick("fee_btc", func(t model.Transaction) decimal.Decimal { return t.FeeBTC })
	price := pick("price", func(t model.Transaction) decimal.Decimal {
		if t.Price == nil {
			return decimal.Zero
		}
		return *t.Price
	})
	if err != nil {
		return fail(err)
	}
	if !price.IsZero() {
		merged.Price = &price
	}

	if merged.Price == nil && merged.Type == model.TypeTrade {
		if merged.BTC.IsZero() || merged.USD.IsZero() {
			return fail(fmt.Errorf("cannot derive price from usd=%s btc=%s", merged.USD, merged.BTC))
		}
		merged.Price = model.DerivePrice(merged.USD, merged.BTC)
	}

	if merged.FeeUSD.IsZero() && !merged.FeeBTC.IsZero() {
		if merged.HasPrice() {
			merged.FeeUSD = model.RoundUSD(merged.Price.Mul(merged.FeeBTC))
		} else {
			// No price to value the fee at: fold it into the quantity.
			merged.BTC = merged.BTC.Add(merged.FeeBTC)
		}
	}

	merged.Info = strings.Join(lo.Compact(lo.Map(group, func(t model.Transaction, _ int) string { return t.Info })), "; ")
	merged.Line = strings.Join(lo.Compact(lo.Map(group, func(t model.Transaction, _ int) string { return t.Line })), "\n")
	return []model.Transaction{merged}, nil
}
