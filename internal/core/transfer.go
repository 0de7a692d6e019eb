package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
)

// Confirmer decides whether an ambiguous withdrawal/deposit pairing is a
// transfer between the owner's own accounts.
type Confirmer interface {
	Confirm(withdrawal, deposit model.Transaction, others []model.Transaction) (bool, error)
}

// AutoConfirm accepts every proposed pairing.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(model.Transaction, model.Transaction, []model.Transaction) (bool, error) {
	return true, nil
}

// PromptConfirmer asks on the terminal.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

func (p *PromptConfirmer) Confirm(withdrawal, deposit model.Transaction, others []model.Transaction) (bool, error) {
	fmt.Fprintf(p.out, "Withdrawal %s\n  matches deposit %s\n", withdrawal, deposit)
	for _, o := range others {
		fmt.Fprintf(p.out, "  also within window: %s\n", o)
	}
	fmt.Fprint(p.out, "Treat as a transfer? [y/n] ")

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// TransferPair is a withdrawal and deposit removed as an internal transfer.
type TransferPair struct {
	Withdrawal model.Transaction
	Deposit    model.Transaction
}

// Advisory is a withdrawal that looked like a transfer but was kept.
type Advisory struct {
	Withdrawal model.Transaction
	Candidates []model.Transaction
	Reason     string
}

type TransferResult struct {
	Kept       []model.Transaction
	Pairs      []TransferPair
	Advisories []Advisory
	// Deposits that no withdrawal claimed, for manual review.
	Unclaimed []model.Transaction
}

// TransferMatcher removes withdrawal/deposit pairs of exactly opposite
// amount that happen within Window of each other.
type TransferMatcher struct {
	Window  time.Duration
	Confirm Confirmer
}

func NewTransferMatcher(window time.Duration, confirm Confirmer) *TransferMatcher {
	if confirm == nil {
		confirm = AutoConfirm{}
	}
	return &TransferMatcher{Window: window, Confirm: confirm}
}

func amountKey(btc decimal.Decimal) string {
	return btc.StringFixed(model.BTCPlaces)
}

// Match returns txs without the matched pairs. txs is not modified.
func (m *TransferMatcher) Match(txs []model.Transaction) (TransferResult, error) {
	chrono := make([]int, len(txs))
	for i := range chrono {
		chrono[i] = i
	}
	sort.SliceStable(chrono, func(a, b int) bool { return txs[chrono[a]].Less(txs[chrono[b]]) })

	deposits := make(map[string][]int)
	for _, i := range chrono {
		if txs[i].Type == model.TypeDeposit && !txs[i].BTC.IsZero() {
			k := amountKey(txs[i].BTC)
			deposits[k] = append(deposits[k], i)
		}
	}

	var res TransferResult
	removed := make(map[int]bool)
	for _, wi := range chrono {
		w := txs[wi]
		if w.Type != model.TypeWithdraw || w.BTC.IsZero() {
			continue
		}
		open := lo.Filter(deposits[amountKey(w.BTC.Neg())], func(di int, _ int) bool {
			return !removed[di]
		})
		if len(open) == 0 {
			continue
		}
		inWindow := lo.Filter(open, func(di int, _ int) bool {
			return absDuration(txs[di].Timestamp.Sub(w.Timestamp)) < m.Window
		})
		candidates := lo.Map(open, func(di int, _ int) model.Transaction { return txs[di] })

		if len(inWindow) == 0 {
			logger.Info("Transfer candidates outside window", "withdrawal", w.String(), "candidates", len(candidates))
			res.Advisories = append(res.Advisories, Advisory{Withdrawal: w, Candidates: candidates, Reason: "no deposit within window"})
			continue
		}

		di := inWindow[0]
		if len(inWindow) > 1 {
			others := lo.Map(inWindow[1:], func(i int, _ int) model.Transaction { return txs[i] })
			ok, err := m.Confirm.Confirm(w, txs[di], others)
			if err != nil {
				return TransferResult{}, err
			}
			if !ok {
				res.Advisories = append(res.Advisories, Advisory{Withdrawal: w, Candidates: candidates, Reason: "ambiguous pairing declined"})
				continue
			}
		}

		removed[wi] = true
		removed[di] = true
		res.Pairs = append(res.Pairs, TransferPair{Withdrawal: w, Deposit: txs[di]})
		logger.Debug("Matched transfer", "withdrawal", w.String(), "deposit", txs[di].String())
	}

	for i, tx := range txs {
		if !removed[i] {
			res.Kept = append(res.Kept, tx)
		}
	}
	for _, i := range chrono {
		if txs[i].Type == model.TypeDeposit && !txs[i].BTC.IsZero() && !removed[i] {
			res.Unclaimed = append(res.Unclaimed, txs[i])
		}
	}
	logger.Info("Transfer matching done", "pairs", len(res.Pairs), "advisories", len(res.Advisories), "kept", len(res.Kept))
	return res, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
