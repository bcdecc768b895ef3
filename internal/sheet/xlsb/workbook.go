package xlsb

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"

	"sheetmill/internal/sheet"
)

const (
	workbookPart      = "xl/workbook.bin"
	sharedStringsPart = "xl/sharedStrings.bin"
	stylesPart        = "xl/styles.bin"
)

// Workbook is an open binary spreadsheet. The workbook, shared-string and
// style parts are read once up front, worksheet parts stream on demand.
type Workbook struct {
	c        *sheet.Container
	names    []string
	parts    []string
	sst      []string
	dateXF   []bool
	date1904 bool
}

// Open reads the metadata parts of the binary workbook at path and prepares
// its worksheets for streaming.
func Open(path string) (*Workbook, error) {
	c, err := sheet.OpenContainer(path)
	if err != nil {
		return nil, err
	}
	wb := &Workbook{c: c}
	if err := wb.load(); err != nil {
		c.Close()
		return nil, err
	}
	return wb, nil
}

type bundleSheet struct {
	name  string
	relID string
}

func (wb *Workbook) load() error {
	dec := utf16Decoder()

	sheets, err := wb.readWorkbookPart(dec)
	if err != nil {
		return err
	}
	rels, err := wb.c.Rels(workbookPart)
	if err != nil {
		return err
	}
	for i, sh := range sheets {
		target := rels[sh.relID]
		if target == "" {
			// Some writers omit explicit relationships; fall back to the
			// conventional positional part name.
			target = fmt.Sprintf("xl/worksheets/sheet%d.bin", i+1)
		}
		wb.names = append(wb.names, sh.name)
		wb.parts = append(wb.parts, target)
	}
	if err := wb.readSharedStrings(dec); err != nil {
		return err
	}
	return wb.readStyles(dec)
}

func (wb *Workbook) readWorkbookPart(dec *encoding.Decoder) ([]bundleSheet, error) {
	rc, err := wb.c.Part(workbookPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var sheets []bundleSheet
	records := newRecordReader(rc)
	for {
		id, payload, err := records.next()
		if err == io.EOF {
			return sheets, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read workbook part: %w", err)
		}
		switch id {
		case recWbProp:
			c := newCursor(payload)
			wb.date1904 = c.u32()&0x1 != 0
		case recBundleSh:
			c := newCursor(payload)
			c.u32() // visibility state
			c.u32() // tab id
			relID := c.nullableWideString(dec)
			name := c.wideString(dec)
			if c.err != nil {
				return nil, fmt.Errorf("read sheet entry: %w", c.err)
			}
			sheets = append(sheets, bundleSheet{name: name, relID: relID})
		}
	}
}

func (wb *Workbook) readSharedStrings(dec *encoding.Decoder) error {
	if !wb.c.HasPart(sharedStringsPart) {
		return nil
	}
	rc, err := wb.c.Part(sharedStringsPart)
	if err != nil {
		return err
	}
	defer rc.Close()

	records := newRecordReader(rc)
	for {
		id, payload, err := records.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read shared strings: %w", err)
		}
		switch id {
		case recBeginSst:
			c := newCursor(payload)
			c.u32() // total references
			unique := c.u32()
			if c.err == nil && unique < 1<<22 {
				wb.sst = make([]string, 0, unique)
			}
		case recSSTItem:
			c := newCursor(payload)
			c.u8() // rich and phonetic flags, extra runs trail the string
			s := c.wideString(dec)
			if c.err != nil {
				return fmt.Errorf("read shared string %d: %w", len(wb.sst), c.err)
			}
			wb.sst = append(wb.sst, s)
		}
	}
}

// readStyles collects, per cell format slot, whether its number format
// renders as a date. Custom format codes are declared before the cell
// format table inside the part.
func (wb *Workbook) readStyles(dec *encoding.Decoder) error {
	if !wb.c.HasPart(stylesPart) {
		return nil
	}
	rc, err := wb.c.Part(stylesPart)
	if err != nil {
		return err
	}
	defer rc.Close()

	customDate := map[uint16]bool{}
	inCellXFs := false
	records := newRecordReader(rc)
	for {
		id, payload, err := records.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read styles: %w", err)
		}
		switch id {
		case recFmt:
			c := newCursor(payload)
			fmtID := c.u16()
			code := c.wideString(dec)
			if c.err == nil {
				customDate[fmtID] = sheet.IsDateFormatCode(code)
			}
		case recBeginCellXFs:
			inCellXFs = true
		case recEndCellXFs:
			inCellXFs = false
		case recXF:
			if !inCellXFs {
				continue
			}
			c := newCursor(payload)
			c.u16() // parent style
			fmtID := c.u16()
			if c.err != nil {
				return fmt.Errorf("read cell format %d: %w", len(wb.dateXF), c.err)
			}
			isDate := sheet.IsDateFormatID(int(fmtID)) || customDate[fmtID]
			wb.dateXF = append(wb.dateXF, isDate)
		}
	}
}

// SheetNames returns the worksheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	return wb.names
}

// Date1904 reports whether serial dates count from the 1904 epoch.
func (wb *Workbook) Date1904() bool {
	return wb.date1904
}

// OpenSheet opens the worksheet at the given 1-based index for streaming.
func (wb *Workbook) OpenSheet(index int) (sheet.RowReader, error) {
	if err := sheet.CheckIndex(index, len(wb.names)); err != nil {
		return nil, err
	}
	rc, err := wb.c.Part(wb.parts[index-1])
	if err != nil {
		return nil, err
	}
	rr := &rowReader{
		rc:      rc,
		records: newRecordReader(rc),
		dec:     utf16Decoder(),
		sst:     wb.sst,
		dateXF:  wb.dateXF,
	}
	if err := rr.seekData(); err != nil {
		rc.Close()
		return nil, err
	}
	return rr, nil
}

// Close closes the underlying container.
func (wb *Workbook) Close() error {
	return wb.c.Close()
}
