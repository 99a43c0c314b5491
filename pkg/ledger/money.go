package ledger

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every monetary value.
const Scale = 2

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ParseAmount parses a non-negative decimal string with at most two
// fractional digits. Signs, exponents and extra precision are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(s) {
		return decimal.Zero, Validation("Amount must be a valid decimal with up to 2 decimal places")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Validation("Amount must be a valid decimal with up to 2 decimal places")
	}
	return d, nil
}

// FormatAmount renders a value with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// HasValidScale reports whether d carries no more than two fractional digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}
