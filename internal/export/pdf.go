package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/zombor/bonnetjes/internal/money"
)

const (
	pdfMargin    = 10.0
	pdfRowHeight = 7.0
)

// WritePDF renders the report as a paginated A4 landscape table per sheet.
func WritePDF(r Report) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle("Declaratie "+r.Period.Label(), true)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Pagina %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pageWidth, pageHeight := pdf.GetPageSize()
	usable := pageWidth - 2*pdfMargin

	for _, sheet := range r.Sheets() {
		widths := columnWidths(sheet.Columns, usable)

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		title := fmt.Sprintf("%s %s", sheet.Title, r.Period.Label())
		if r.Employee != "" {
			title += " - " + r.Employee
		}
		pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
		writePDFHeader(pdf, sheet.Columns, widths, tr)

		rows := sheet.Rows()
		for n, row := range rows {
			if pdf.GetY()+pdfRowHeight > pageHeight-2*pdfMargin {
				pdf.AddPage()
				writePDFHeader(pdf, sheet.Columns, widths, tr)
			}
			style := ""
			if n == len(rows)-1 {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, 9)
			for c, cell := range row {
				align := "L"
				if cell.Numeric {
					align = "R"
				}
				pdf.CellFormat(widths[c], pdfRowHeight, tr(fitText(pdf, cell.Text, widths[c])), "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Ln(4)
	pdf.CellFormat(0, 8, tr("Totaal te declareren: "+money.FormatEUR(r.GrandTotal)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writePDFHeader(pdf *fpdf.Fpdf, columns []Column, widths []float64, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for c, col := range columns {
		align := "L"
		if col.Numeric {
			align = "R"
		}
		pdf.CellFormat(widths[c], pdfRowHeight, tr(col.Title), "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
}

// columnWidths scales the relative column widths to the usable page width.
func columnWidths(columns []Column, usable float64) []float64 {
	var total float64
	for _, c := range columns {
		total += c.Width
	}
	widths := make([]float64, len(columns))
	for i, c := range columns {
		widths[i] = c.Width / total * usable
	}
	return widths
}

// fitText truncates s so it fits a cell of width w.
func fitText(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
