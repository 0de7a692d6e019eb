package core

import (
	"fmt"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
)

// MergeSource reconciles the records of one logical event.
type MergeSource interface {
	MergeGroup(group []model.Transaction) ([]model.Transaction, error)
}

// MergeLookup finds the merge rule for a source.
type MergeLookup func(source string) (MergeSource, bool)

type groupKey struct {
	source string
	id     string
}

// Merge groups transactions by (source, id) and collapses each group with
// its source's rule. Groups come out in the order their first member was
// seen; ordering for accounting happens later.
func Merge(txs []model.Transaction, lookup MergeLookup) ([]model.Transaction, error) {
	groups := make(map[groupKey][]model.Transaction)
	var order []groupKey
	for _, tx := range txs {
		k := groupKey{source: tx.Source, id: tx.ID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], tx)
	}

	out := make([]model.Transaction, 0, len(order))
	for _, k := range order {
		group := groups[k]
		src, ok := lookup(k.source)
		if !ok {
			return nil, fmt.Errorf("no merge rule for source %q", k.source)
		}
		merged, err := src.MergeGroup(group)
		if err != nil {
			return nil, err
		}
		if len(group) > 1 {
			logger.Debug("Merged group", "source", k.source, "id", k.id, "legs", len(group), "result", len(merged))
		}
		out = append(out, merged...)
	}
	return out, nil
}
