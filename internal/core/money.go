// Package core provides the invoice domain types and the parsing rules used
// by every invoice source.
//
// This file contains amount parsing. Amounts are kept as decimals end to end
// so that weekly totals and running totals add up exactly.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a signed monetary value.
//
// Surrounding spaces, a leading "$" and thousands separators are ignored.
// Accounting negatives in parentheses are accepted.
//
// Examples:
//
//	ParseAmount("1,234.50")   -> 1234.50
//	ParseAmount("$-12")       -> -12
//	ParseAmount("(300.00)")   -> -300.00
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	parens, negative := false, false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		parens = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		negative = true
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutPrefix(s, "$"); ok {
		s = rest
		if rest, ok := strings.CutPrefix(s, "-"); ok {
			if negative {
				return decimal.Zero, ErrInvalidAmount
			}
			negative = true
			s = rest
		}
	}
	// a parenthesised amount carries its sign in the parentheses
	if parens && negative {
		return decimal.Zero, ErrInvalidAmount
	}
	s, ok := stripGrouping(s)
	if !ok || s == "" || strings.ContainsAny(s, "+- ") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if negative || parens {
		d = d.Neg()
	}
	return d, nil
}

// stripGrouping removes thousands separators. Commas are only valid in the
// integer part, between groups of three digits.
func stripGrouping(s string) (string, bool) {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if strings.Contains(frac, ",") {
		return "", false
	}
	if strings.Contains(intPart, ",") {
		groups := strings.Split(intPart, ",")
		for i, g := range groups {
			if g == "" || len(g) > 3 || (i > 0 && len(g) != 3) {
				return "", false
			}
		}
		intPart = strings.Join(groups, "")
	}
	if hasFrac {
		return intPart + "." + frac, true
	}
	return intPart, true
}

// FormatDollars renders an amount as "$1,234.50" with two decimals.
func FormatDollars(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
