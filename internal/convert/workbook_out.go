package convert

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"sheetmill/internal/sheet"
)

// writeWorkbook re-encodes rows into a fresh workbook holding a single sheet
// named after the source index, written through a forward-only stream.
func writeWorkbook(ctx context.Context, rows sheet.RowReader, sheetIndex int, date1904 bool, output string) (int, error) {
	out := excelize.NewFile()
	defer out.Close()

	name := fmt.Sprintf("Sheet%d", sheetIndex)
	if name != "Sheet1" {
		if err := out.SetSheetName("Sheet1", name); err != nil {
			return 0, fmt.Errorf("name output sheet: %w", err)
		}
	}
	sw, err := out.NewStreamWriter(name)
	if err != nil {
		return 0, fmt.Errorf("open stream writer: %w", err)
	}

	count := 0
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read row %d: %w", count+1, err)
		}
		values := make([]any, len(row))
		for i, cell := range row {
			values[i] = sheetValue(cell, date1904)
		}
		ref, err := excelize.CoordinatesToCellName(1, count+1)
		if err != nil {
			return count, fmt.Errorf("address row %d: %w", count+1, err)
		}
		if err := sw.SetRow(ref, values); err != nil {
			return count, fmt.Errorf("write row %d: %w", count+1, err)
		}
		count++
		if count%flushEvery == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}
	}
	if err := sw.Flush(); err != nil {
		return count, fmt.Errorf("finish output sheet: %w", err)
	}
	if err := out.SaveAs(output); err != nil {
		return count, fmt.Errorf("save output workbook: %w", err)
	}
	return count, nil
}

// sheetValue keeps native types for the spreadsheet writer: numbers stay
// numeric, booleans boolean, date-styled numbers become times and the rest
// is text.
func sheetValue(c sheet.Cell, date1904 bool) any {
	switch c.Kind {
	case sheet.KindBool:
		return c.Bool
	case sheet.KindNumber:
		if c.DateStyled {
			if t, err := excelize.ExcelDateToTime(c.Number, date1904); err == nil {
				return t
			}
		}
		return c.Number
	case sheet.KindText, sheet.KindError:
		return c.Text
	default:
		return nil
	}
}
