package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied decimal string to a positive amount
// rounded half-up to cents.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// RoundCents rounds an accumulated float amount to two decimal places.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatAmount renders v with exactly two decimals.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
