// Package core provides the ledger record model.
//
// This file contains amount parsing for form and CLI input and the yen
// formatting used by the UI.
package core

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Spreadsheet numbers are float64; larger integers lose precision there.
var maxAmount = decimal.NewFromInt(1 << 53)

// ParseAmount converts user input into a whole-yen magnitude.
//
// Thousands separators, a leading ¥ and a trailing 円 are tolerated. Negative
// and fractional values are rejected; zero is accepted.
//
// Examples:
//
//	ParseAmount("1,500")  -> 1500, nil
//	ParseAmount("¥300")   -> 300, nil
//	ParseAmount("120円")  -> 120, nil
//	ParseAmount("12.5")   -> error
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.TrimSuffix(s, "円")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Violations: []string{"amount is required"}}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Violations: []string{fmt.Sprintf("amount %q is not a number", s)}}
	}
	if d.IsNegative() {
		return 0, &ValidationError{Violations: []string{"amount must not be negative"}}
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, &ValidationError{Violations: []string{"amount must be a whole number of yen"}}
	}
	if d.GreaterThan(maxAmount) {
		return 0, &ValidationError{Violations: []string{"amount is too large"}}
	}
	return d.IntPart(), nil
}

// FormatYen renders n as a yen amount, e.g. "¥1,500" or "-¥300".
func FormatYen(n int64) string {
	return money.New(n, money.JPY).Display()
}
