// Package core provides money parsing and handling utilities.
//
// Amounts are whole units of a single currency; there is no fractional
// part to round.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = money.KRW

// ParseAmount converts a user-entered amount to a positive integer.
//
// A thousands separator (comma, dot, space or apostrophe) may be used, one
// kind per amount, and every group after the first must have exactly three
// digits. There is no fractional part, so "10.5" and "12.50" are rejected
// rather than read as 105 and 1250. Zero, negative and overflowing values
// return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("10000")     -> 10000, nil
//	ParseAmount("10,000")    -> 10000, nil
//	ParseAmount("1 234")     -> 1234, nil
//	ParseAmount("1.234.567") -> 1234567, nil
//	ParseAmount("10.5")      -> 0, ErrInvalidAmount
//	ParseAmount("-5")        -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}

	groups := []string{s}
	if i := strings.IndexFunc(s, func(r rune) bool { return !isASCIIDigit(r) }); i >= 0 {
		sep := rune(s[i])
		if !isSeparator(sep) {
			return 0, ErrInvalidAmount
		}
		groups = strings.Split(s, string(sep))
	}
	for i, g := range groups {
		if g == "" || strings.IndexFunc(g, func(r rune) bool { return !isASCIIDigit(r) }) >= 0 {
			return 0, ErrInvalidAmount
		}
		if i == 0 && len(groups) > 1 && len(g) > 3 {
			return 0, ErrInvalidAmount
		}
		if i > 0 && len(g) != 3 {
			return 0, ErrInvalidAmount
		}
	}

	v, err := strconv.ParseInt(strings.Join(groups, ""), 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func isASCIIDigit(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsDigit(r)
}

func isSeparator(r rune) bool {
	return r == ',' || r == '.' || r == ' ' || r == '\''
}

// FormatAmount renders amount in the given ISO currency for display
// (e.g. "₩10,000"). Unknown currency codes fall back to DefaultCurrency.
func FormatAmount(amount int64, currency string) string {
	if money.GetCurrency(currency) == nil {
		currency = DefaultCurrency
	}
	return money.New(amount, currency).Display()
}
