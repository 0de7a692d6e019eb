package core

import (
	"context"
	"sort"
	"time"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/metrics"
	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/normalizer"
)

// Result is everything a run produces. It is only returned when every
// stage succeeded.
type Result struct {
	Method    string
	Steps     []Step
	Transfers TransferResult
	Final     Valuation
}

// Engine drives the pipeline: parse, merge, drop transfers, then fold the
// remaining transactions through the ledger in chronological order.
type Engine struct {
	Registry *normalizer.Registry
	Matcher  *TransferMatcher
	Ledger   *Ledger
	Metrics  *metrics.Tracker
	Method   string
	// Now is the run clock; the final valuation uses the day before it.
	Now func() time.Time
}

func NewEngine(registry *normalizer.Registry, matcher *TransferMatcher, ledger *Ledger, tracker *metrics.Tracker, method string) *Engine {
	return &Engine{
		Registry: registry,
		Matcher:  matcher,
		Ledger:   ledger,
		Metrics:  tracker,
		Method:   method,
		Now:      time.Now,
	}
}

func (e *Engine) Run(ctx context.Context, paths []string) (*Result, error) {
	logger.Info("Starting run", "files", len(paths), "method", e.Method)

	done := e.Metrics.Stage("parse")
	raw, err := e.Registry.ParseAll(paths)
	done()
	if err != nil {
		return nil, err
	}
	e.Metrics.Count("files", len(paths))
	e.Metrics.Count("raw_transactions", len(raw))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done = e.Metrics.Stage("merge")
	merged, err := Merge(raw, func(source string) (MergeSource, bool) {
		n, ok := e.Registry.Lookup(source)
		return n, ok
	})
	done()
	if err != nil {
		return nil, err
	}
	e.Metrics.Count("merged_transactions", len(merged))

	done = e.Metrics.Stage("transfers")
	transfers, err := e.Matcher.Match(merged)
	done()
	if err != nil {
		return nil, err
	}
	e.Metrics.Count("transfers_removed", 2*len(transfers.Pairs))
	e.Metrics.Count("transfer_advisories", len(transfers.Advisories))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := append([]model.Transaction(nil), transfers.Kept...)
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Less(kept[j]) })

	if err := e.Ledger.Load(ctx); err != nil {
		return nil, err
	}

	done = e.Metrics.Stage("ledger")
	steps := make([]Step, 0, len(kept))
	for _, tx := range kept {
		start := time.Now()
		step, err := e.Ledger.Apply(tx)
		if err != nil {
			done()
			return nil, err
		}
		e.Metrics.TrackStep(time.Since(start))
		steps = append(steps, step)
	}
	done()
	e.Metrics.Count("ledger_steps", len(steps))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final, err := e.Ledger.Value(e.Now().Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}
	e.Metrics.Count("open_lots", len(final.Lots))

	logger.Info("Run complete",
		"realized", final.Totals.Realized.StringFixed(2),
		"unrealized", final.Unrealized.StringFixed(2),
		"btc_held", final.Totals.BTC.StringFixed(8),
	)
	return &Result{Method: e.Method, Steps: steps, Transfers: transfers, Final: final}, nil
}
