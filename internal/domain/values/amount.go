package values

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative transaction amount. The zero value is a missing
// amount. Inputs that are missing, non-numeric or negative decode to zero
// and report Malformed so scoring can continue on a safe default.
type Amount struct {
	value     decimal.Decimal
	present   bool
	malformed bool
	raw       string
}

// NewAmount creates an Amount from a decimal. Negative values are malformed.
func NewAmount(d decimal.Decimal) Amount {
	if d.IsNegative() {
		return Amount{value: decimal.Zero, present: true, malformed: true, raw: d.String()}
	}
	return Amount{value: d, present: true}
}

// NewAmountFromString parses a decimal string.
func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount: %w", err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("invalid amount: %s is negative", s)
	}
	return NewAmount(d), nil
}

// MustAmount creates an Amount from a float and panics on a negative value (for constants/tests)
func MustAmount(f float64) Amount {
	a := NewAmount(decimal.NewFromFloat(f))
	if a.malformed {
		panic(fmt.Sprintf("negative amount %v", f))
	}
	return a
}

// Decimal returns the usable amount; zero for malformed input.
func (a Amount) Decimal() decimal.Decimal {
	if a.Malformed() {
		return decimal.Zero
	}
	return a.value
}

// Malformed reports whether the source value was missing, non-numeric or negative.
func (a Amount) Malformed() bool {
	return !a.present || a.malformed
}

// Raw returns the original text of a malformed value.
func (a Amount) Raw() string {
	return a.raw
}

func (a Amount) String() string {
	return a.Decimal().String()
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = Amount{present: true, malformed: true, raw: text}
			return nil
		}
		text = s
	}

	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		*a = Amount{value: decimal.Zero, present: true, malformed: true, raw: text}
		return nil
	}

	*a = Amount{value: d, present: true}
	return nil
}
