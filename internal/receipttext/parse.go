// Package receipttext extracts best-guess receipt fields from noisy OCR
// text. Every extractor is an ordered cascade of matchers: the first matcher
// that produces a value wins, and a field with no signal is left nil.
//
// Keywords match as whole words, so "SUBTOTAAL 10,00" is not taken as the
// total and "PINAUTOMAAT" is not a payment line.
package receipttext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParsedReceipt is the transient result of parsing OCR text. Each field is
// independently optional.
type ParsedReceipt struct {
	StoreName *string  `json:"store_name"`
	Amount    *float64 `json:"amount"`
	VATAmount *float64 `json:"vat_amount"`
	Date      *string  `json:"date"` // YYYY-MM-DD
}

// Parse extracts store name, total amount, VAT amount and date from raw OCR
// text. It never fails.
func Parse(text string) ParsedReceipt {
	return ParsedReceipt{
		StoreName: extractStoreName(text),
		Amount:    extractAmount(text),
		VATAmount: extractVAT(text),
		Date:      extractDate(text),
	}
}

// knownStores is scanned top to bottom; an earlier entry wins when several
// occur in the same text.
var knownStores = []string{
	"Albert Heijn",
	"Jumbo",
	"Lidl",
	"Aldi",
	"Dirk van den Broek",
	"Hoogvliet",
	"Vomar",
	"Coop",
	"Kruidvat",
	"Etos",
	"HEMA",
	"Action",
	"Gamma",
	"Praxis",
	"Karwei",
	"Hornbach",
	"IKEA",
	"MediaMarkt",
	"Coolblue",
	"Bol.com",
	"Shell",
	"Esso",
	"Texaco",
	"Tango",
	"TinQ",
	"Spar",
	"Plus",
}

var leadingDate = regexp.MustCompile(`^\d+[/\-.]`)

func extractStoreName(text string) *string {
	lower := strings.ToLower(text)
	for _, store := range knownStores {
		if strings.Contains(lower, strings.ToLower(store)) {
			name := store
			return &name
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n := utf8.RuneCountInString(line)
		if n > 2 && n < 40 && !leadingDate.MatchString(line) {
			return &line
		}
		return nil
	}
	return nil
}

type amountMatcher func(text string) (float64, bool)

var (
	totalKeyword   = regexp.MustCompile(`(?i)\b(?:TOTAAL|TE\s+BETALEN|TOTAL)\b\s*:?\s*(?:€|EUR)?\s*(\d+)[,.](\d{2})`)
	paymentKeyword = regexp.MustCompile(`(?i)\b(?:BEDRAG|PINNEN|PIN|CONTANT)\b\s*:?\s*(?:€|EUR)?\s*(\d+)[,.](\d{2})`)
	trailingEuro   = regexp.MustCompile(`(?m)€\s*(\d+)[,.](\d{2})[ \t\r]*$`)
	anyAmount      = regexp.MustCompile(`\d{1,6}[,.]\d{2}`)
)

// amountMatchers: keyword anchored, then trailing euro sign, then the
// largest printed amount.
var amountMatchers = []amountMatcher{
	euroCentsMatcher(totalKeyword),
	euroCentsMatcher(paymentKeyword),
	euroCentsMatcher(trailingEuro),
	largestAmount,
}

func extractAmount(text string) *float64 {
	for _, match := range amountMatchers {
		if v, ok := match(text); ok {
			return &v
		}
	}
	return nil
}

// euroCentsMatcher returns a matcher reading the euros and cents groups of
// the first match of re.
func euroCentsMatcher(re *regexp.Regexp) amountMatcher {
	return func(text string) (float64, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return 0, false
		}
		return euroCents(m[1], m[2])
	}
}

func euroCents(euros, cents string) (float64, bool) {
	v, err := strconv.ParseFloat(euros+"."+cents, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func largestAmount(text string) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, raw := range anyAmount.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil || v <= 0 || v >= 100000 {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// vatMatchers have no largest-amount fallback; a missing VAT amount is
// preferred over a guessed one.
var vatMatchers = []amountMatcher{
	euroCentsMatcher(regexp.MustCompile(`(?i)\bBTW\s*21\s*%\s*:?\s*(?:€|EUR)?\s*(\d+)[,.](\d{2})`)),
	euroCentsMatcher(regexp.MustCompile(`(?i)\bBTW\s*9\s*%\s*:?\s*(?:€|EUR)?\s*(\d+)[,.](\d{2})`)),
	euroCentsMatcher(regexp.MustCompile(`(?i)\bBTW\s*:?\s*(?:€|EUR)?\s*(\d+)[,.](\d{2})`)),
}

func extractVAT(text string) *float64 {
	for _, match := range vatMatchers {
		if v, ok := match(text); ok {
			return &v
		}
	}
	return nil
}

type dateMatcher func(text string) (string, bool)

var (
	numericDateLong  = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})`)
	numericDateShort = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})(?:\D|$)`)
	dutchDate        = regexp.MustCompile(`(?i)\b(\d{1,2})\s+([a-z]{3,})\.?\s+(\d{4})`)
)

// dutchMonths maps the first three letters of a Dutch month to its number.
// "mrt" and "maa" are both March.
var dutchMonths = map[string]int{
	"jan": 1,
	"feb": 2,
	"mrt": 3,
	"maa": 3,
	"apr": 4,
	"mei": 5,
	"jun": 6,
	"jul": 7,
	"aug": 8,
	"sep": 9,
	"okt": 10,
	"nov": 11,
	"dec": 12,
}

var dateMatchers = []dateMatcher{
	numericLongDate,
	numericShortDate,
	dutchWordDate,
}

func extractDate(text string) *string {
	for _, match := range dateMatchers {
		if d, ok := match(text); ok {
			return &d
		}
	}
	return nil
}

func numericLongDate(text string) (string, bool) {
	m := numericDateLong.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return isoDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
}

func numericShortDate(text string) (string, bool) {
	m := numericDateShort.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return isoDate(2000+atoi(m[3]), atoi(m[2]), atoi(m[1]))
}

// dutchWordDate returns the first "<day> <month word> <year>" whose word is a
// known month. Other "<number> <word> <number>" runs, such as an address, are
// skipped.
func dutchWordDate(text string) (string, bool) {
	for _, m := range dutchDate.FindAllStringSubmatch(text, -1) {
		month, ok := dutchMonths[strings.ToLower(m[2][:3])]
		if !ok {
			continue
		}
		if d, ok := isoDate(atoi(m[3]), month, atoi(m[1])); ok {
			return d, true
		}
	}
	return "", false
}

func isoDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
