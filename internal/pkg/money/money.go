package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("money: invalid amount")

// Money is a fixed-point currency amount in cents. Arithmetic on int64
// avoids the rounding drift a float representation would accumulate when
// checkout multiplies unit prices by quantities.
type Money int64

// FromCents wraps a raw cent amount.
func FromCents(cents int64) Money { return Money(cents) }

// Parse reads a decimal amount such as "12.34" or "5" into cents.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	// Only digits past this point; ParseInt alone would let a stray sign
	// inside the number through ("1.-5", "--2").
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	var cents int64
	switch len(frac) {
	case 0:
	case 1, 2:
		c, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		if len(frac) == 1 {
			c *= 10
		}
		cents = c
	default:
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, s)
	}
	total := units*100 + cents
	if neg {
		total = -total
	}
	return Money(total), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (m Money) Cents() int64 { return int64(m) }

// Mul scales the amount by an integer quantity.
func (m Money) Mul(qty int) Money { return m * Money(qty) }

func (m Money) Add(other Money) Money { return m + other }

// String renders the amount with two decimal places, e.g. "30.00".
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON emits the amount as a plain JSON number with two decimal
// places so wire payloads stay human-readable without float round-tripping.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
