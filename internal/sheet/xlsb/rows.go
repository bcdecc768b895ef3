package xlsb

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"

	"sheetmill/internal/sheet"
)

// rowReader streams one worksheet part. Rows come back in source order
// starting at the first occupied row, with skipped rows in between emitted
// as blank rows and every row padded to the declared sheet width.
type rowReader struct {
	rc      io.ReadCloser
	records *recordReader
	dec     *encoding.Decoder
	sst     []string
	dateXF  []bool

	width    int
	rowIdx   int
	havePend bool
	pending  sheet.Row
	gapRows  int
	done     bool
	err      error
}

// seekData advances to the start of the cell stream, picking up the sheet
// dimension on the way. Declared widths at or beyond the column maximum are
// ignored, writers emit those for whole-column references.
func (r *rowReader) seekData() error {
	for {
		id, payload, err := r.records.next()
		if err == io.EOF {
			r.done = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("read worksheet part: %w", err)
		}
		switch id {
		case recWsDim:
			c := newCursor(payload)
			c.u32() // first row
			c.u32() // last row
			first := c.u32()
			last := c.u32()
			if c.err == nil && last >= first && last < 16383 {
				r.width = int(last) + 1
			}
		case recBeginSheetData:
			return nil
		}
	}
}

func (r *rowReader) Next() (sheet.Row, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.gapRows > 0 {
		r.gapRows--
		return r.blankRow(), nil
	}
	for {
		if r.done {
			return nil, io.EOF
		}
		id, payload, err := r.records.next()
		if err == io.EOF || (err == nil && id == recEndSheetData) {
			r.done = true
			if r.havePend {
				r.havePend = false
				return r.finish(), nil
			}
			return nil, io.EOF
		}
		if err != nil {
			r.err = fmt.Errorf("read sheet data: %w", err)
			return nil, r.err
		}
		switch id {
		case recRowHdr:
			c := newCursor(payload)
			rw := int(c.u32())
			if c.err != nil {
				r.err = fmt.Errorf("read row header: %w", c.err)
				return nil, r.err
			}
			if !r.havePend {
				r.havePend = true
				r.rowIdx = rw
				continue
			}
			row := r.finish()
			if gap := rw - r.rowIdx - 1; gap > 0 {
				r.gapRows = gap
			}
			r.rowIdx = rw
			return row, nil
		case recCellBlank, recCellRK, recCellError, recCellBool, recCellReal,
			recCellSt, recCellIsst, recFmlaString, recFmlaNum, recFmlaBool,
			recFmlaError:
			if !r.havePend {
				continue
			}
			if err := r.addCell(id, payload); err != nil {
				r.err = err
				return nil, r.err
			}
		}
	}
}

// addCell decodes one cell record and appends it at its column position,
// blank-filling any gap since the previous cell.
func (r *rowReader) addCell(id uint16, payload []byte) error {
	c := newCursor(payload)
	col := int(c.u32())
	style := int(c.u32() & 0xFFFFFF)

	var cell sheet.Cell
	switch id {
	case recCellBlank:
		// keeps only its column position
	case recCellRK:
		cell = r.numberCell(rkValue(c.u32()), style)
	case recCellReal, recFmlaNum:
		cell = r.numberCell(c.f64(), style)
	case recCellBool, recFmlaBool:
		cell = sheet.Cell{Kind: sheet.KindBool, Bool: c.u8() != 0}
	case recCellError, recFmlaError:
		cell = sheet.Cell{Kind: sheet.KindError, Text: errorLiteral(c.u8())}
	case recCellSt, recFmlaString:
		cell = sheet.Cell{Kind: sheet.KindText, Text: c.wideString(r.dec)}
	case recCellIsst:
		idx := int(c.u32())
		cell = sheet.Cell{Kind: sheet.KindText}
		if idx >= 0 && idx < len(r.sst) {
			cell.Text = r.sst[idx]
		}
	}
	if c.err != nil {
		return fmt.Errorf("cell record %#x in row %d: %w", id, r.rowIdx, c.err)
	}
	for len(r.pending) < col {
		r.pending = append(r.pending, sheet.Cell{})
	}
	r.pending = append(r.pending, cell)
	return nil
}

func (r *rowReader) numberCell(v float64, style int) sheet.Cell {
	dated := style >= 0 && style < len(r.dateXF) && r.dateXF[style]
	return sheet.Cell{Kind: sheet.KindNumber, Number: v, DateStyled: dated}
}

// finish hands off the pending row padded to the sheet width.
func (r *rowReader) finish() sheet.Row {
	row := r.pending
	r.pending = nil
	for len(row) < r.width {
		row = append(row, sheet.Cell{})
	}
	if row == nil {
		row = sheet.Row{}
	}
	return row
}

func (r *rowReader) blankRow() sheet.Row {
	return make(sheet.Row, r.width)
}

func (r *rowReader) Close() error {
	return r.rc.Close()
}
