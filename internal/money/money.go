// Package money holds single-currency amounts as integer minor units.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor units (centavos).
type Cents int64

// ErrInvalidAmount is returned when a textual amount is not a valid BRL value.
var ErrInvalidAmount = errors.New("invalid amount")

// Brazilian notation: 123,45 or 1.234,56
var brlPattern = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*,\d{2}$|^\d+,\d{2}$`)

// ValidBRL reports whether s (with or without the R$ prefix) is a well-formed BRL amount.
func ValidBRL(s string) bool {
	return brlPattern.MatchString(stripPrefix(s))
}

// ParseBRL parses an amount written in Brazilian notation, e.g. "R$ 1.234,56".
func ParseBRL(s string) (Cents, error) {
	clean := stripPrefix(s)
	if !brlPattern.MatchString(clean) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	clean = strings.ReplaceAll(clean, ".", "")
	clean = strings.Replace(clean, ",", ".", 1)

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return FromDecimal(d), nil
}

// ParseDecimal parses a dot-decimal amount such as "87.3500" as returned by billing APIs.
func ParseDecimal(s string) (Cents, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return FromDecimal(d), nil
}

// FromDecimal rounds d half away from zero to whole cents.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// Decimal returns the amount as an exact decimal in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// IsRound reports whether the amount has no fractional cents part (ends in ,00).
func (c Cents) IsRound() bool {
	return c%100 == 0
}

// String renders the amount with a dot separator and two decimals ("1234.56").
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// BRL renders the amount the way the bank prints it ("R$ 1.234,56").
func (c Cents) BRL() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	units := fmt.Sprintf("%d", v/100)
	var b strings.Builder
	for i, r := range units {
		if i > 0 && (len(units)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("R$ %s%s,%02d", sign, b.String(), v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func stripPrefix(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	return strings.TrimSpace(s)
}
