package service

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/core"
	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/metrics"
	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/repository"
)

// DataCollector writes machine readable copies of a run.
type DataCollector struct {
	Storage *repository.Storage
	RunID   string
}

func NewDataCollector(storage *repository.Storage, runID string) *DataCollector {
	return &DataCollector{Storage: storage, RunID: runID}
}

var stepHeader = []string{
	"timestamp", "type", "source", "id", "info",
	"btc", "usd", "price", "fee_usd", "fee_btc",
	"btc_held", "cost_basis", "market_price",
	"realized", "short_term", "long_term", "unrealized",
}

// SaveSteps writes one CSV row per ledger step.
func (c *DataCollector) SaveSteps(path string, res *core.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(stepHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, s := range res.Steps {
		price := ""
		if s.Tx.HasPrice() {
			price = s.Tx.Price.StringFixed(model.USDPlaces)
		}
		record := []string{
			s.Tx.Timestamp.Format(time.RFC3339),
			string(s.Tx.Type),
			s.Tx.Source,
			s.Tx.ID,
			s.Tx.Info,

			s.Delta.StringFixed(model.BTCPlaces),
			s.Fiat.StringFixed(model.USDPlaces),
			price,
			s.Tx.FeeUSD.StringFixed(model.USDPlaces),
			s.Tx.FeeBTC.StringFixed(model.BTCPlaces),

			s.Totals.BTC.StringFixed(model.BTCPlaces),
			s.Totals.Cost.StringFixed(model.USDPlaces),
			s.MarketPrice.StringFixed(model.USDPlaces),

			s.Totals.Realized.StringFixed(model.USDPlaces),
			s.Totals.ShortTerm.StringFixed(model.USDPlaces),
			s.Totals.LongTerm.StringFixed(model.USDPlaces),
			s.Unrealized.StringFixed(model.USDPlaces),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	logger.Info("Saved step export", "path", path, "rows", len(res.Steps))
	return nil
}

// Audit is the JSON document written by SaveAudit.
type Audit struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Method      string          `json:"method"`
	ValuedAt    string          `json:"valued_at"`
	MarketPrice decimal.Decimal `json:"market_price"`
	BTCHeld     decimal.Decimal `json:"btc_held"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	Realized    decimal.Decimal `json:"realized"`
	ShortTerm   decimal.Decimal `json:"short_term"`
	LongTerm    decimal.Decimal `json:"long_term"`
	Unrealized  decimal.Decimal `json:"unrealized"`
	Lots        []AuditLot      `json:"lots"`
	Transfers   []AuditTransfer `json:"transfers"`
	Review      []string        `json:"review"`
	Metrics     metrics.Summary `json:"metrics"`
}

type AuditLot struct {
	Acquired string          `json:"acquired"`
	Origin   string          `json:"origin"`
	Source   string          `json:"source"`
	BTC      decimal.Decimal `json:"btc"`
	Cost     decimal.Decimal `json:"cost"`
}

type AuditTransfer struct {
	Withdrawal string          `json:"withdrawal"`
	Deposit    string          `json:"deposit"`
	BTC        decimal.Decimal `json:"btc"`
}

func (c *DataCollector) SaveAudit(path string, res *core.Result, summary metrics.Summary) error {
	f := res.Final
	audit := Audit{
		RunID:       c.RunID,
		GeneratedAt: time.Now().UTC(),
		Method:      res.Method,
		ValuedAt:    f.At.Format(model.DateLayout),
		MarketPrice: f.MarketPrice,
		BTCHeld:     f.Totals.BTC,
		CostBasis:   f.Totals.Cost,
		Realized:    f.Totals.Realized,
		ShortTerm:   f.Totals.ShortTerm,
		LongTerm:    f.Totals.LongTerm,
		Unrealized:  f.Unrealized,
		Lots:        []AuditLot{},
		Transfers:   []AuditTransfer{},
		Review:      []string{},
		Metrics:     summary,
	}
	for _, l := range f.Lots {
		audit.Lots = append(audit.Lots, AuditLot{
			Acquired: l.Timestamp.Format(time.RFC3339),
			Origin:   l.Origin.ID,
			Source:   l.Origin.Source,
			BTC:      l.BTC,
			Cost:     l.USD,
		})
	}
	for _, p := range res.Transfers.Pairs {
		audit.Transfers = append(audit.Transfers, AuditTransfer{
			Withdrawal: p.Withdrawal.ID,
			Deposit:    p.Deposit.ID,
			BTC:        p.Deposit.BTC,
		})
	}
	for _, a := range res.Transfers.Advisories {
		audit.Review = append(audit.Review, fmt.Sprintf("%s: %s", a.Reason, a.Withdrawal))
	}

	if err := c.Storage.Write(path, audit); err != nil {
		return err
	}
	logger.Info("Saved audit export", "path", path, "run_id", c.RunID)
	return nil
}
