// Package pricing answers "what was one BTC worth on this day" from a
// daily price history loaded once per run.
package pricing

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
)

// Layout identifies the textual shape of a price history.
type Layout string

const (
	LayoutBitcoinAverage Layout = "bitcoinaverage"
	LayoutBlockchain     Layout = "blockchain"
)

const bitcoinAverageHeader = "datetime,high,low,average,volume"

var blockchainRow = regexp.MustCompile(`^\d\d/\d\d/\d\d\d\d \d\d:\d\d:\d\d,\d+\.\d*`)

// Table maps a YYYY-MM-DD date to a price.
type Table map[string]decimal.Decimal

// ParseTable reads a history in either supported layout. The layout is
// fixed by the first non-blank line.
func ParseTable(r io.Reader, name string) (Table, Layout, error) {
	table := make(Table)
	var layout Layout

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if layout == "" {
			switch {
			case line == bitcoinAverageHeader:
				layout = LayoutBitcoinAverage
				continue
			case blockchainRow.MatchString(line):
				layout = LayoutBlockchain
			default:
				return nil, "", &model.ConfigError{Path: name, Msg: fmt.Sprintf("unknown price feed format: %q", line)}
			}
		}

		var (
			date  string
			price decimal.Decimal
			err   error
		)
		switch layout {
		case LayoutBitcoinAverage:
			date, price, err = parseBitcoinAverage(line)
		case LayoutBlockchain:
			date, price, err = parseBlockchain(line)
		}
		if err != nil {
			return nil, "", &model.ParseError{Path: name, Line: lineNo, Record: line, Err: err}
		}
		table[date] = price
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to read price feed %s: %w", name, err)
	}
	if layout == "" {
		return nil, "", &model.ConfigError{Path: name, Msg: "price feed is empty"}
	}
	return table, layout, nil
}

func parseBitcoinAverage(line string) (string, decimal.Decimal, error) {
	cols := strings.Split(line, ",")
	if len(cols) < 3 {
		return "", decimal.Zero, fmt.Errorf("expected datetime,high,low columns")
	}
	date := strings.Fields(cols[0])
	if len(date) == 0 {
		return "", decimal.Zero, fmt.Errorf("missing date")
	}
	hl, err := parseFeedNumbers(cols[1], cols[2])
	if err != nil {
		return "", decimal.Zero, err
	}
	return date[0], hl[0].Add(hl[1]).Div(decimal.NewFromInt(2)), nil
}

func parseBlockchain(line string) (string, decimal.Decimal, error) {
	if !blockchainRow.MatchString(line) {
		return "", decimal.Zero, fmt.Errorf("row does not match the blockchain layout")
	}
	cols := strings.Split(line, ",")
	dmy := strings.Split(strings.Fields(cols[0])[0], "/")
	p, err := parseFeedNumbers(cols[1])
	if err != nil {
		return "", decimal.Zero, err
	}
	return dmy[2] + "-" + dmy[1] + "-" + dmy[0], p[0], nil
}

func parseFeedNumbers(fields ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", f, err)
		}
		out[i] = d
	}
	return out, nil
}
