package xlsx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetmill/internal/sheet"
)

// rowReader streams one worksheet part. Rows come back in source order
// starting at the first occupied row, with skipped rows in between emitted
// as blank rows and every row padded to the declared sheet width.
type rowReader struct {
	rc     io.ReadCloser
	dec    *xml.Decoder
	sst    []string
	dateXF []bool

	width   int
	lastRow int
	gapRows int
	staged  sheet.Row
	done    bool
	err     error
}

// seekData advances to the start of the cell stream, picking up the sheet
// dimension on the way.
func (r *rowReader) seekData() error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				return nil
			}
			return fmt.Errorf("parse worksheet part: %w", err)
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "dimension":
			for _, a := range el.Attr {
				if a.Name.Local == "ref" {
					r.width = dimensionWidth(a.Value)
				}
			}
		case "sheetData":
			return nil
		}
	}
}

// dimensionWidth extracts the declared column count from a dimension
// reference such as A1:D10. Whole-sheet declarations are ignored, writers
// emit those when they never tracked the real extent.
func dimensionWidth(ref string) int {
	parts := strings.Split(strings.TrimSpace(ref), ":")
	col, _, err := excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil || col >= 16384 {
		return 0
	}
	return col
}

func (r *rowReader) Next() (sheet.Row, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.gapRows > 0 {
		r.gapRows--
		return r.blankRow(), nil
	}
	if r.staged != nil {
		row := r.staged
		r.staged = nil
		return row, nil
	}
	if r.done {
		return nil, io.EOF
	}

	idx, row, err := r.parseRow()
	if err == io.EOF {
		r.done = true
		return nil, io.EOF
	}
	if err != nil {
		r.err = err
		return nil, err
	}
	gap := 0
	if r.lastRow > 0 {
		gap = idx - r.lastRow - 1
	}
	r.lastRow = idx
	if gap > 0 {
		r.staged = row
		r.gapRows = gap - 1
		return r.blankRow(), nil
	}
	return row, nil
}

// parseRow consumes tokens up to the next complete row element. io.EOF
// means the sheet data ended.
func (r *rowReader) parseRow() (int, sheet.Row, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil, io.EOF
			}
			return 0, nil, fmt.Errorf("parse sheet rows: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "row" {
				if err := r.dec.Skip(); err != nil {
					return 0, nil, fmt.Errorf("parse sheet rows: %w", clipEOF(err))
				}
				continue
			}
			idx := r.lastRow + 1
			for _, a := range el.Attr {
				if a.Name.Local == "r" {
					if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
						idx = n
					}
				}
			}
			row, err := r.parseCells(idx)
			if err != nil {
				return 0, nil, err
			}
			return idx, row, nil
		case xml.EndElement:
			if el.Name.Local == "sheetData" {
				return 0, nil, io.EOF
			}
		}
	}
}

func (r *rowReader) parseCells(rowIdx int) (sheet.Row, error) {
	var cells sheet.Row
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse row %d: %w", rowIdx, clipEOF(err))
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "c" {
				if err := r.dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse row %d: %w", rowIdx, clipEOF(err))
				}
				continue
			}
			col, cell, err := r.parseCell(el, len(cells))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rowIdx, err)
			}
			for len(cells) < col {
				cells = append(cells, sheet.Cell{})
			}
			cells = append(cells, cell)
		case xml.EndElement:
			if el.Name.Local == "row" {
				for len(cells) < r.width {
					cells = append(cells, sheet.Cell{})
				}
				if cells == nil {
					cells = sheet.Row{}
				}
				return cells, nil
			}
		}
	}
}

func (r *rowReader) parseCell(start xml.StartElement, nextCol int) (int, sheet.Cell, error) {
	col := nextCol
	style := 0
	typ := ""
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "r":
			if c, _, err := excelize.CellNameToCoordinates(a.Value); err == nil {
				col = c - 1
			}
		case "s":
			if n, err := strconv.Atoi(a.Value); err == nil {
				style = n
			}
		case "t":
			typ = a.Value
		}
	}

	var value, inline string
	sawValue := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return 0, sheet.Cell{}, fmt.Errorf("parse cell: %w", clipEOF(err))
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "v":
				v, err := elementText(r.dec, "v")
				if err != nil {
					return 0, sheet.Cell{}, err
				}
				value = v
				sawValue = true
			case "is":
				v, err := collectText(r.dec, "is")
				if err != nil {
					return 0, sheet.Cell{}, err
				}
				inline = v
				sawValue = true
			default:
				if err := r.dec.Skip(); err != nil {
					return 0, sheet.Cell{}, fmt.Errorf("parse cell: %w", clipEOF(err))
				}
			}
		case xml.EndElement:
			if el.Name.Local == "c" {
				cell, err := r.buildCell(typ, value, inline, sawValue, style)
				if err != nil {
					return 0, sheet.Cell{}, err
				}
				return col, cell, nil
			}
		}
	}
}

func (r *rowReader) buildCell(typ, value, inline string, sawValue bool, style int) (sheet.Cell, error) {
	switch typ {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || idx < 0 || idx >= len(r.sst) {
			return sheet.Cell{Kind: sheet.KindText}, nil
		}
		return sheet.Cell{Kind: sheet.KindText, Text: r.sst[idx]}, nil
	case "str":
		return sheet.Cell{Kind: sheet.KindText, Text: value}, nil
	case "inlineStr":
		return sheet.Cell{Kind: sheet.KindText, Text: inline}, nil
	case "b":
		v := strings.TrimSpace(value)
		return sheet.Cell{Kind: sheet.KindBool, Bool: v == "1" || strings.EqualFold(v, "true")}, nil
	case "e":
		return sheet.Cell{Kind: sheet.KindError, Text: strings.TrimSpace(value)}, nil
	case "d":
		// an ISO-8601 literal, already in its normalized shape
		return sheet.Cell{Kind: sheet.KindText, Text: strings.TrimSpace(value)}, nil
	case "", "n":
		v := strings.TrimSpace(value)
		if !sawValue || v == "" {
			return sheet.Cell{}, nil
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return sheet.Cell{}, fmt.Errorf("numeric cell holds %q", v)
		}
		dated := style >= 0 && style < len(r.dateXF) && r.dateXF[style]
		return sheet.Cell{Kind: sheet.KindNumber, Number: n, DateStyled: dated}, nil
	default:
		return sheet.Cell{Kind: sheet.KindText, Text: value}, nil
	}
}

func (r *rowReader) blankRow() sheet.Row {
	return make(sheet.Row, r.width)
}

func (r *rowReader) Close() error {
	return r.rc.Close()
}

// collectText concatenates the text content of t descendants until the named
// element closes, leaving phonetic annotations out.
func collectText(dec *xml.Decoder, until string) (string, error) {
	var sb strings.Builder
	inT := false
	skip := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("parse %s element: %w", until, clipEOF(err))
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if skip > 0 {
				skip++
				continue
			}
			switch el.Name.Local {
			case "t":
				inT = true
			case "rPh", "phoneticPr":
				skip = 1
			}
		case xml.EndElement:
			if skip > 0 {
				skip--
				continue
			}
			switch el.Name.Local {
			case "t":
				inT = false
			case until:
				return sb.String(), nil
			}
		case xml.CharData:
			if inT && skip == 0 {
				sb.Write(el)
			}
		}
	}
}

// elementText concatenates raw character data until the named element
// closes.
func elementText(dec *xml.Decoder, until string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("parse %s element: %w", until, clipEOF(err))
		}
		switch el := tok.(type) {
		case xml.CharData:
			sb.Write(el)
		case xml.EndElement:
			if el.Name.Local == until {
				return sb.String(), nil
			}
		}
	}
}

func clipEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
