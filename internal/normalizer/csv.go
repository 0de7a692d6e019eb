package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitcoin-gains/internal/model"
)

// csvLayout recognizes a tabular export by its header line.
type csvLayout struct {
	header *regexp.Regexp
}

func exactHeader(h string) csvLayout {
	return csvLayout{header: regexp.MustCompile("^" + regexp.QuoteMeta(h))}
}

func (c csvLayout) Recognizes(path string) (bool, error) {
	line, err := firstLine(path)
	if err != nil {
		return false, err
	}
	return c.header.MatchString(line), nil
}

// rowFunc returns nil, nil for rows that carry no transaction.
type rowFunc func(row []string) (*model.Transaction, error)

// readRows skips the header and blank rows, and wraps row errors with
// the file position and raw record.
func readRows(path, source string, parse rowFunc) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []model.Transaction
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			pe := &model.ParseError{Path: path, Err: err}
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				pe.Line = csvErr.Line
			}
			return nil, pe
		}
		line, _ := r.FieldPos(0)
		if first {
			first = false
			continue
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		tx, err := parse(row)
		if err != nil {
			return nil, &model.ParseError{Path: path, Line: line, Record: strings.Join(row, ","), Err: err}
		}
		if tx == nil {
			continue
		}
		tx.Source = source
		tx.Line = fmt.Sprintf("%s:%d: %s", path, line, strings.Join(row, ","))
		out = append(out, *tx)
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(model.DateTimeLayout, strings.TrimSpace(s), time.UTC)
}

func parseAmounts(fields ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := model.ParseAmount(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
