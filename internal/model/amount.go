package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	BTCPlaces int32 = 8
	USDPlaces int32 = 2

	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// RoundBTC quantizes an asset amount to 1e-8.
func RoundBTC(d decimal.Decimal) decimal.Decimal {
	return d.Round(BTCPlaces)
}

// RoundUSD quantizes a fiat amount to 1e-2, half away from zero.
func RoundUSD(d decimal.Decimal) decimal.Decimal {
	return d.Round(USDPlaces)
}

// ParseAmount parses a numeric field. Empty means zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
