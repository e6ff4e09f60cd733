// Package money represents monetary amounts as integer cents.
//
// Sums over projections must be exact to the cent, so amounts never pass
// through binary floating point: parsing, storage, the wire format and
// aggregation all operate on int64 cents.
package money

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"costtracker/internal/errs"
)

// Cents is a non-negative monetary amount with two-decimal precision.
type Cents int64

// ParseCents converts a decimal string to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted; a third decimal
// digit rounds half-up. Negative values and malformed input are rejected,
// zero is allowed.
//
// Examples:
//
//	ParseCents("12.99") -> 1299
//	ParseCents("12,995") -> 1300
//	ParseCents("0") -> 0
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount: %w", errs.ErrValidation)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("signed amount %q: %w", s, errs.ErrValidation)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("malformed amount %q: %w", s, errs.ErrValidation)
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, fmt.Errorf("malformed amount %q: %w", s, errs.ErrValidation)
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q: %w", s, errs.ErrValidation)
	}
	const maxWhole = (1<<63 - 1) / 100
	if iv > maxWhole {
		return 0, fmt.Errorf("amount %q out of range: %w", s, errs.ErrValidation)
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return Cents(iv*100 + frac), nil
}

// Valid reports whether the amount is representable: non-negative.
func (c Cents) Valid() bool { return c >= 0 }

// String formats the amount with exactly two decimals, e.g. "12.99".
func (c Cents) String() string {
	v := int64(c)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
