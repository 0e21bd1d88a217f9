package export

import (
	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/money"
)

// Column describes one table column.
type Column struct {
	Title   string
	Width   float64 // relative width, used by the PDF writer
	Numeric bool
}

// Cell is one rendered table cell. Numeric cells carry their value so the
// spreadsheet can store a number instead of text.
type Cell struct {
	Text    string
	Value   decimal.Decimal
	Numeric bool
}

func textCell(s string) Cell {
	return Cell{Text: s}
}

func numberCell(d decimal.Decimal) Cell {
	return Cell{Text: money.Format(d), Value: d, Numeric: true}
}

var (
	receiptColumns = []Column{
		{Title: "Datum", Width: 22},
		{Title: "Winkel", Width: 50},
		{Title: "Categorie", Width: 40},
		{Title: "Omschrijving", Width: 85},
		{Title: "Bedrag", Width: 30, Numeric: true},
		{Title: "BTW", Width: 30, Numeric: true},
	}
	travelColumns = []Column{
		{Title: "Datum", Width: 22},
		{Title: "Omschrijving", Width: 70},
		{Title: "Van", Width: 40},
		{Title: "Naar", Width: 40},
		{Title: "Km", Width: 25, Numeric: true},
		{Title: "OV-kosten", Width: 30, Numeric: true},
		{Title: "Vergoeding", Width: 30, Numeric: true},
	}
)

// Sheet is one computed table: sorted entries plus their totals.
type Sheet struct {
	Title   string
	Kind    Kind
	Columns []Column
	Entries []Entry
	Totals  Totals
}

func newSheet(title string, kind Kind, entries []Entry) Sheet {
	sorted := SortByDate(entries)
	columns := receiptColumns
	if kind == KindTravel {
		columns = travelColumns
	}
	return Sheet{
		Title:   title,
		Kind:    kind,
		Columns: columns,
		Entries: sorted,
		Totals:  Sum(sorted),
	}
}

// Rows renders the data rows followed by the totals row.
func (s Sheet) Rows() [][]Cell {
	rows := make([][]Cell, 0, len(s.Entries)+1)
	for _, e := range s.Entries {
		rows = append(rows, s.row(e))
	}
	return append(rows, s.TotalRow())
}

func (s Sheet) row(e Entry) []Cell {
	date := textCell(e.Date.Format("02-01-2006"))
	if s.Kind == KindTravel {
		return []Cell{
			date,
			textCell(e.Description),
			textCell(e.Origin),
			textCell(e.Destination),
			numberCell(e.Kilometers),
			numberCell(e.TravelCost),
			numberCell(e.amount()),
		}
	}
	return []Cell{
		date,
		textCell(e.Label),
		textCell(e.Category),
		textCell(e.Description),
		numberCell(e.Amount),
		numberCell(e.VAT),
	}
}

// TotalRow is the synthetic last row: blank identifying cells, aggregate
// values in the numeric columns.
func (s Sheet) TotalRow() []Cell {
	if s.Kind == KindTravel {
		return []Cell{
			textCell("Totaal"),
			textCell(""),
			textCell(""),
			textCell(""),
			numberCell(s.Totals.Kilometers),
			numberCell(s.Totals.TravelCost),
			numberCell(s.Totals.Amount),
		}
	}
	return []Cell{
		textCell("Totaal"),
		textCell(""),
		textCell(""),
		textCell(""),
		numberCell(s.Totals.Amount),
		numberCell(s.Totals.VAT),
	}
}
