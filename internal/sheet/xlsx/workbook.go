package xlsx

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sheetmill/internal/sheet"
)

const (
	workbookPart      = "xl/workbook.xml"
	sharedStringsPart = "xl/sharedStrings.xml"
	stylesPart        = "xl/styles.xml"
)

// Workbook is an open XML spreadsheet. Shared strings and style metadata
// load up front, worksheet parts stream on demand.
type Workbook struct {
	c        *sheet.Container
	names    []string
	parts    []string
	sst      []string
	dateXF   []bool
	date1904 bool
}

// Open reads the metadata parts of the XML workbook at path and prepares its
// worksheets for streaming.
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

type workbookXML struct {
	Pr struct {
		Date1904 string `xml:"date1904,attr"`
	} `xml:"workbookPr"`
	Sheets struct {
		Entries []struct {
			Name  string `xml:"name,attr"`
			RelID string `xml:"id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

func (wb *Workbook) load() error {
	rc, err := wb.c.Part(workbookPart)
	if err != nil {
		return err
	}
	var doc workbookXML
	err = xml.NewDecoder(rc).Decode(&doc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("parse workbook part: %w", err)
	}
	v := doc.Pr.Date1904
	wb.date1904 = v == "1" || strings.EqualFold(v, "true")

	rels, err := wb.c.Rels(workbookPart)
	if err != nil {
		return err
	}
	for i, entry := range doc.Sheets.Entries {
		target := rels[entry.RelID]
		if target == "" {
			target = fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		}
		wb.names = append(wb.names, entry.Name)
		wb.parts = append(wb.parts, target)
	}
	if err := wb.readSharedStrings(); err != nil {
		return err
	}
	return wb.readStyles()
}

func (wb *Workbook) readSharedStrings() error {
	if !wb.c.HasPart(sharedStringsPart) {
		return nil
	}
	rc, err := wb.c.Part(sharedStringsPart)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse shared strings: %w", err)
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "sst":
			for _, a := range el.Attr {
				if a.Name.Local == "uniqueCount" {
					if n, err := strconv.Atoi(a.Value); err == nil && n > 0 && n < 1<<22 {
						wb.sst = make([]string, 0, n)
					}
				}
			}
		case "si":
			s, err := collectText(dec, "si")
			if err != nil {
				return fmt.Errorf("parse shared string %d: %w", len(wb.sst), err)
			}
			wb.sst = append(wb.sst, s)
		}
	}
}

type stylesXML struct {
	NumFmts struct {
		Entries []struct {
			ID   int    `xml:"numFmtId,attr"`
			Code string `xml:"formatCode,attr"`
		} `xml:"numFmt"`
	} `xml:"numFmts"`
	CellXFs struct {
		Entries []struct {
			NumFmtID int `xml:"numFmtId,attr"`
		} `xml:"xf"`
	} `xml:"cellXfs"`
}

func (wb *Workbook) readStyles() error {
	if !wb.c.HasPart(stylesPart) {
		return nil
	}
	rc, err := wb.c.Part(stylesPart)
	if err != nil {
		return err
	}
	defer rc.Close()

	var doc stylesXML
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return fmt.Errorf("parse styles part: %w", err)
	}
	customDate := map[int]bool{}
	for _, nf := range doc.NumFmts.Entries {
		customDate[nf.ID] = sheet.IsDateFormatCode(nf.Code)
	}
	wb.dateXF = make([]bool, 0, len(doc.CellXFs.Entries))
	for _, xf := range doc.CellXFs.Entries {
		wb.dateXF = append(wb.dateXF, sheet.IsDateFormatID(xf.NumFmtID) || customDate[xf.NumFmtID])
	}
	return nil
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
	r := &rowReader{
		rc:     rc,
		dec:    xml.NewDecoder(rc),
		sst:    wb.sst,
		dateXF: wb.dateXF,
	}
	if err := r.seekData(); err != nil {
		rc.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying container.
func (wb *Workbook) Close() error {
	return wb.c.Close()
}
