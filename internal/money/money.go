// Package money holds the euro amount helpers shared by capture and export.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half-up to whole cents. Amounts are never negative, so
// rounding half away from zero is the same thing.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts an OCR or parser float to a cent-rounded amount.
func FromFloat(f float64) decimal.Decimal {
	return Round2(decimal.NewFromFloat(f))
}

// maxAmountLen bounds the text ParseLenient will hand to the decimal parser.
const maxAmountLen = 32

// ParseLenient reads a user or OCR supplied amount such as "12,50",
// "€ 1.234,56" or "7.5". Anything it cannot read is zero, and so is
// exponent notation like "1e9" or text longer than maxAmountLen.
func ParseLenient(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(s), "EUR"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || len(s) > maxAmountLen || strings.Contains(s, "E") {
		return decimal.Zero
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Format renders an amount the Dutch way, e.g. "1234,50".
func Format(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatEUR renders an amount with a euro sign, e.g. "€ 12,50".
func FormatEUR(d decimal.Decimal) string {
	return "€ " + Format(d)
}

// Lenient is a decimal that decodes from a JSON number or string. Values
// that are not numeric decode to zero instead of failing the request.
type Lenient decimal.Decimal

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lenient) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" {
		*l = Lenient(decimal.Zero)
		return nil
	}
	*l = Lenient(ParseLenient(s))
	return nil
}

// Decimal returns the decoded value.
func (l Lenient) Decimal() decimal.Decimal {
	return decimal.Decimal(l)
}
