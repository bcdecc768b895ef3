package xlsx

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"sheetmill/internal/sheet"
)

func writePackage(t *testing.T, parts map[string]string) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "fixture.xlsx")
	f, err := os.Create(target)
	if err != nil {
		t.Fatalf("create package: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, data := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create part %s: %v", name, err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			t.Fatalf("write part %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close package: %v", err)
	}
	return target
}

func fixtureParts() map[string]string {
	return map[string]string{
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <workbookPr date1904="1"/>
  <sheets>
    <sheet name="Data" sheetId="1" r:id="rId1"/>
    <sheet name="Extra" sheetId="2" r:id="rId2"/>
  </sheets>
</workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>
</Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="3" uniqueCount="2">
  <si><t>plain</t></si>
  <si><r><t>ri</t></r><r><t>ch</t></r><rPh sb="0" eb="2"><t>nope</t></rPh><phoneticPr fontId="1"/></si>
</sst>`,
		"xl/styles.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <numFmts count="1"><numFmt numFmtId="164" formatCode="yyyy\-mm\-dd"/></numFmts>
  <cellXfs count="3">
    <xf numFmtId="0" fontId="0"/>
    <xf numFmtId="22" fontId="0"/>
    <xf numFmtId="164" fontId="0"/>
  </cellXfs>
</styleSheet>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <dimension ref="A1:E4"/>
  <sheetData>
    <row r="1">
      <c r="A1" t="s"><v>0</v></c>
      <c r="B1" t="s"><v>1</v></c>
      <c r="C1" t="inlineStr"><is><t>inl</t></is></c>
      <c r="E1"><v>19.99</v></c>
    </row>
    <row r="4">
      <c r="A4" t="b"><v>1</v></c>
      <c r="B4" t="e"><v>#REF!</v></c>
      <c r="C4" t="str"><v>fx</v></c>
      <c r="D4" s="1"><v>45000</v></c>
      <c r="E4" s="2"><v>45000.5</v></c>
      <c r="F4"><v>1e2</v></c>
    </row>
  </sheetData>
</worksheet>`,
		"xl/worksheets/sheet2.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData/>
</worksheet>`,
	}
}

func TestOpenReadsMetadata(t *testing.T) {
	wb, err := Open(writePackage(t, fixtureParts()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wb.Close()

	if got := wb.SheetNames(); !reflect.DeepEqual(got, []string{"Data", "Extra"}) {
		t.Errorf("sheet names = %v", got)
	}
	if !wb.Date1904() {
		t.Error("1904 flag not picked up")
	}
}

func TestReadRows(t *testing.T) {
	wb, err := Open(writePackage(t, fixtureParts()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wb.Close()

	rr, err := wb.OpenSheet(1)
	if err != nil {
		t.Fatalf("open sheet: %v", err)
	}
	defer rr.Close()

	want := []sheet.Row{
		{
			{Kind: sheet.KindText, Text: "plain"},
			{Kind: sheet.KindText, Text: "rich"},
			{Kind: sheet.KindText, Text: "inl"},
			{},
			{Kind: sheet.KindNumber, Number: 19.99},
		},
		{{}, {}, {}, {}, {}},
		{{}, {}, {}, {}, {}},
		{
			{Kind: sheet.KindBool, Bool: true},
			{Kind: sheet.KindError, Text: "#REF!"},
			{Kind: sheet.KindText, Text: "fx"},
			{Kind: sheet.KindNumber, Number: 45000, DateStyled: true},
			{Kind: sheet.KindNumber, Number: 45000.5, DateStyled: true},
			{Kind: sheet.KindNumber, Number: 100},
		},
	}
	for i, wantRow := range want {
		row, err := rr.Next()
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if !reflect.DeepEqual(row, wantRow) {
			t.Errorf("row %d = %#v, want %#v", i, row, wantRow)
		}
	}
	if _, err := rr.Next(); err != io.EOF {
		t.Fatalf("expected EOF after last row, got %v", err)
	}
}

func TestEmptySheet(t *testing.T) {
	wb, err := Open(writePackage(t, fixtureParts()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wb.Close()

	rr, err := wb.OpenSheet(2)
	if err != nil {
		t.Fatalf("open sheet: %v", err)
	}
	defer rr.Close()
	if _, err := rr.Next(); err != io.EOF {
		t.Fatalf("expected EOF on empty sheet, got %v", err)
	}
}

func TestOpenSheetOutOfRange(t *testing.T) {
	wb, err := Open(writePackage(t, fixtureParts()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wb.Close()

	_, err = wb.OpenSheet(3)
	if err == nil {
		t.Fatal("index 3 should fail")
	}
	if got, want := err.Error(), "sheet index 3 out of range (1..2)"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestDimensionWidth(t *testing.T) {
	cases := []struct {
		ref  string
		want int
	}{
		{"A1:D10", 4},
		{"A1", 1},
		{"B2:AA9", 27},
		{"A1:XFD1048576", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := dimensionWidth(tc.ref); got != tc.want {
			t.Errorf("dimensionWidth(%q) = %d, want %d", tc.ref, got, tc.want)
		}
	}
}

// The decoder must agree with workbooks produced by the library used for
// spreadsheet output.
func TestReadExcelizeWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	mustSet := func(cell string, v any) {
		t.Helper()
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	mustSet("A1", "hello")
	mustSet("B1", 19.99)
	mustSet("D1", 2.5)
	mustSet("A3", true)
	mustSet("B3", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	path := filepath.Join(t.TempDir(), "generated.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	wb, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wb.Close()

	if got := wb.SheetNames(); !reflect.DeepEqual(got, []string{"Sheet1"}) {
		t.Fatalf("sheet names = %v", got)
	}

	rr, err := wb.OpenSheet(1)
	if err != nil {
		t.Fatalf("open sheet: %v", err)
	}
	defer rr.Close()

	row1, err := rr.Next()
	if err != nil {
		t.Fatalf("row 1: %v", err)
	}
	if len(row1) < 4 {
		t.Fatalf("row 1 too short: %#v", row1)
	}
	if row1[0].Kind != sheet.KindText || row1[0].Text != "hello" {
		t.Errorf("A1 = %#v", row1[0])
	}
	if row1[1].Kind != sheet.KindNumber || row1[1].Number != 19.99 {
		t.Errorf("B1 = %#v", row1[1])
	}
	if row1[2].Kind != sheet.KindBlank {
		t.Errorf("C1 = %#v", row1[2])
	}
	if row1[3].Kind != sheet.KindNumber || row1[3].Number != 2.5 {
		t.Errorf("D1 = %#v", row1[3])
	}

	row2, err := rr.Next()
	if err != nil {
		t.Fatalf("row 2: %v", err)
	}
	for i, c := range row2 {
		if c.Kind != sheet.KindBlank {
			t.Errorf("row 2 cell %d = %#v", i, c)
		}
	}

	row3, err := rr.Next()
	if err != nil {
		t.Fatalf("row 3: %v", err)
	}
	if len(row3) < 2 {
		t.Fatalf("row 3 too short: %#v", row3)
	}
	if row3[0].Kind != sheet.KindBool || !row3[0].Bool {
		t.Errorf("A3 = %#v", row3[0])
	}
	if row3[1].Kind != sheet.KindNumber || !row3[1].DateStyled || row3[1].Number != 45296 {
		t.Errorf("B3 = %#v", row3[1])
	}

	if _, err := rr.Next(); err != io.EOF {
		t.Fatalf("expected EOF after last row, got %v", err)
	}
}
