// Package export turns a month of expense records into the computed tables
// shared by the spreadsheet and PDF writers, and bundles them for sending.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/money"
)

// KMRate is the travel allowance in euros per kilometer.
var KMRate = decimal.RequireFromString("0.23")

// Kind distinguishes receipt rows from travel rows.
type Kind string

const (
	KindReceipt Kind = "receipt"
	KindTravel  Kind = "travel"
)

// Entry is one expense record as seen by the export.
type Entry struct {
	ID          string
	Kind        Kind
	Date        time.Time
	Label       string // store name, receipts only
	Category    string
	Origin      string // travel only
	Destination string // travel only
	Description string
	Amount      decimal.Decimal // receipts only; travel amounts are computed
	VAT         decimal.Decimal
	Kilometers  decimal.Decimal
	TravelCost  decimal.Decimal
	Submitted   bool
}

// Reimbursement computes the travel allowance for one trip. The kilometer
// component is rounded before the travel cost is added, then the sum is
// rounded again.
func Reimbursement(kilometers, travelCost decimal.Decimal) decimal.Decimal {
	km := money.Round2(kilometers.Mul(KMRate))
	return money.Round2(km.Add(travelCost))
}

// SortByDate returns a copy of entries ordered by date. Entries on the same
// date keep their input order.
func SortByDate(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// Partition splits items into pending and submitted by the submitted flag.
// Every item lands in exactly one of the two slices.
func Partition[T any](items []T, submitted func(T) bool) (pending, done []T) {
	pending = make([]T, 0, len(items))
	done = make([]T, 0)
	for _, item := range items {
		if submitted(item) {
			done = append(done, item)
		} else {
			pending = append(pending, item)
		}
	}
	return pending, done
}

// Totals aggregates the numeric columns of a sheet.
type Totals struct {
	Amount     decimal.Decimal `json:"amount"`
	VAT        decimal.Decimal `json:"vat"`
	Kilometers decimal.Decimal `json:"kilometers"`
	TravelCost decimal.Decimal `json:"travel_cost"`
}

// Sum adds up entries. Travel entries contribute their reimbursement as
// amount.
func Sum(entries []Entry) Totals {
	t := Totals{
		Amount:     decimal.Zero,
		VAT:        decimal.Zero,
		Kilometers: decimal.Zero,
		TravelCost: decimal.Zero,
	}
	for _, e := range entries {
		t.Amount = t.Amount.Add(e.amount())
		t.VAT = t.VAT.Add(e.VAT)
		t.Kilometers = t.Kilometers.Add(e.Kilometers)
		t.TravelCost = t.TravelCost.Add(e.TravelCost)
	}
	return t
}

func (e Entry) amount() decimal.Decimal {
	if e.Kind == KindTravel {
		return Reimbursement(e.Kilometers, e.TravelCost)
	}
	return e.Amount
}

// Period is one (year, month) bucket.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates a year and month.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month %d", month)
	}
	if year < 2000 || year > 2100 {
		return Period{}, fmt.Errorf("invalid year %d", year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// String returns "2026-02".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

var dutchMonthNames = [...]string{
	"januari", "februari", "maart", "april", "mei", "juni",
	"juli", "augustus", "september", "oktober", "november", "december",
}

// Label returns "februari 2026".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", dutchMonthNames[p.Month-1], p.Year)
}

// Filename returns the export file name for the given extension.
func (p Period) Filename(ext string) string {
	return fmt.Sprintf("declaratie-%s.%s", p, ext)
}

// Report is the computed export for one period.
type Report struct {
	Period     Period
	Employee   string
	Receipts   Sheet
	Travel     Sheet
	GrandTotal decimal.Decimal
}

// Compute sorts and totals the entries of one period. It is the only place
// totals are calculated; both document writers render its output.
func Compute(period Period, employee string, entries []Entry) Report {
	var receipts, travel []Entry
	for _, e := range entries {
		if e.Kind == KindTravel {
			travel = append(travel, e)
		} else {
			receipts = append(receipts, e)
		}
	}

	r := Report{
		Period:   period,
		Employee: employee,
		Receipts: newSheet("Bonnen", KindReceipt, receipts),
		Travel:   newSheet("Reiskosten", KindTravel, travel),
	}
	r.GrandTotal = r.Receipts.Totals.Amount.Add(r.Travel.Totals.Amount)
	return r
}

// Sheets returns the receipt and travel sheets in document order.
func (r Report) Sheets() []Sheet {
	return []Sheet{r.Receipts, r.Travel}
}

// Count returns the number of records in the report.
func (r Report) Count() int {
	return len(r.Receipts.Entries) + len(r.Travel.Entries)
}
