package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX renders the report as a workbook with one worksheet per sheet.
func WriteXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("creating amount style: %w", err)
	}
	boldAmount, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("creating total style: %w", err)
	}

	for i, sheet := range r.Sheets() {
		name := sheet.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("renaming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("adding sheet %s: %w", name, err)
		}

		for c, col := range sheet.Columns {
			ref, err := excelize.CoordinatesToCellName(c+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStr(name, ref, col.Title); err != nil {
				return nil, fmt.Errorf("writing header: %w", err)
			}
			if err := f.SetCellStyle(name, ref, ref, bold); err != nil {
				return nil, fmt.Errorf("styling header: %w", err)
			}
			colName, _ := excelize.ColumnNumberToName(c + 1)
			if err := f.SetColWidth(name, colName, colName, col.Width/4+4); err != nil {
				return nil, fmt.Errorf("sizing column: %w", err)
			}
		}

		rows := sheet.Rows()
		for n, row := range rows {
			last := n == len(rows)-1
			for c, cell := range row {
				ref, err := excelize.CoordinatesToCellName(c+1, n+2)
				if err != nil {
					return nil, err
				}
				if err := writeCell(f, name, ref, cell); err != nil {
					return nil, fmt.Errorf("writing %s!%s: %w", name, ref, err)
				}
				style := 0
				switch {
				case last && cell.Numeric:
					style = boldAmount
				case last:
					style = bold
				case cell.Numeric:
					style = amount
				}
				if style != 0 {
					if err := f.SetCellStyle(name, ref, ref, style); err != nil {
						return nil, fmt.Errorf("styling %s!%s: %w", name, ref, err)
					}
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCell(f *excelize.File, sheet, ref string, cell Cell) error {
	if cell.Numeric {
		v, _ := cell.Value.Float64()
		return f.SetCellFloat(sheet, ref, v, 2, 64)
	}
	return f.SetCellStr(sheet, ref, cell.Text)
}
