package service

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/core"
	"bitcoin-gains/internal/model"
)

// Reporter renders a finished run for the terminal.
type Reporter struct {
	Out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{Out: out}
}

func (r *Reporter) Render(res *core.Result) error {
	if err := r.Trace(res); err != nil {
		return err
	}
	if err := r.Review(res); err != nil {
		return err
	}
	return r.Summary(res)
}

// Trace prints every retained transaction with the running totals after it.
func (r *Reporter) Trace(res *core.Result) error {
	tw := tabwriter.NewWriter(r.Out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\ttype\tsource\tid\tbtc\tusd\tbtc_held\tcost_basis\tmarket\trealized\tunrealized\t")
	for _, s := range res.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Tx.Timestamp.Format(model.DateTimeLayout),
			s.Tx.Type,
			s.Tx.Source,
			s.Tx.ID,
			s.Delta.StringFixed(model.BTCPlaces),
			s.Fiat.StringFixed(model.USDPlaces),
			s.Totals.BTC.StringFixed(model.BTCPlaces),
			s.Totals.Cost.StringFixed(model.USDPlaces),
			s.MarketPrice.StringFixed(model.USDPlaces),
			s.Totals.Realized.StringFixed(model.USDPlaces),
			s.Unrealized.StringFixed(model.USDPlaces),
		)
		for _, c := range s.Consumed {
			term := "short"
			if c.LongTerm {
				term = "long"
			}
			fmt.Fprintf(tw, "\t  lot\t%s\t%s\t%s\t%s\t\t%s\t\t%s\t%s\t\n",
				c.Acquired.Format(model.DateLayout),
				c.Origin,
				c.BTC.Neg().StringFixed(model.BTCPlaces),
				c.Proceeds.StringFixed(model.USDPlaces),
				c.Basis.StringFixed(model.USDPlaces),
				c.Gain.StringFixed(model.USDPlaces),
				term,
			)
		}
	}
	return tw.Flush()
}

// Review lists what a person should look at by hand.
func (r *Reporter) Review(res *core.Result) error {
	t := res.Transfers
	if len(t.Advisories) == 0 && len(t.Unclaimed) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nMatched %d transfers. Review the following:\n", len(t.Pairs))
	for _, a := range t.Advisories {
		fmt.Fprintf(&b, "  no match (%s): %s\n", a.Reason, a.Withdrawal)
		for _, c := range a.Candidates {
			fmt.Fprintf(&b, "      candidate: %s\n", c)
		}
	}
	if len(t.Unclaimed) > 0 {
		fmt.Fprintf(&b, "  unmatched deposits (%s BTC total):\n",
			lo.Reduce(t.Unclaimed, func(sum decimal.Decimal, tx model.Transaction, _ int) decimal.Decimal {
				return sum.Add(tx.BTC)
			}, decimal.Zero).StringFixed(model.BTCPlaces))
		for _, d := range t.Unclaimed {
			fmt.Fprintf(&b, "      %s\n", d)
		}
	}
	_, err := io.WriteString(r.Out, b.String())
	return err
}

// Summary prints the final valuation and the lots still held.
func (r *Reporter) Summary(res *core.Result) error {
	f := res.Final
	tw := tabwriter.NewWriter(r.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\nFinal (%s, method %s)\n", f.At.Format(model.DateLayout), res.Method)
	fmt.Fprintf(tw, "total_btc\t%s\n", f.Totals.BTC.StringFixed(model.BTCPlaces))
	fmt.Fprintf(tw, "total_cost\t%s\n", f.Totals.Cost.StringFixed(model.USDPlaces))
	fmt.Fprintf(tw, "market_value\t%s\n", f.MarketPrice.StringFixed(model.USDPlaces))
	fmt.Fprintf(tw, "gains\t%s\n", f.Totals.Realized.StringFixed(model.USDPlaces))
	fmt.Fprintf(tw, "  short_term\t%s\n", f.Totals.ShortTerm.StringFixed(model.USDPlaces))
	fmt.Fprintf(tw, "  long_term\t%s\n", f.Totals.LongTerm.StringFixed(model.USDPlaces))
	fmt.Fprintf(tw, "unrealized_gains\t%s\n", f.Unrealized.StringFixed(model.USDPlaces))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(f.Lots) == 0 {
		return nil
	}
	fmt.Fprintln(r.Out, "\nOpen lots:")
	for _, l := range f.Lots {
		fmt.Fprintf(r.Out, "  %s\n", l)
	}
	return nil
}
