package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"

	"sheetmill/internal/sheet"
	"sheetmill/internal/sheet/xlsb"
	"sheetmill/internal/sheet/xlsx"
)

// Options select the worksheet and output mode for one conversion.
type Options struct {
	// SheetIndex is the 1-based worksheet to convert. Zero selects the
	// first sheet.
	SheetIndex int
	// JSONLines emits one JSON array per row instead of rewriting the
	// sheet into a new workbook.
	JSONLines bool
}

// Result reports what a conversion produced.
type Result struct {
	SheetName string
	Rows      int
}

// freeMemoryRowThreshold marks a conversion as large enough to hand freed
// pages back to the OS once the streams are closed.
const freeMemoryRowThreshold = 100_000

// Run converts one worksheet of the spreadsheet at input into the artifact
// at output. The sheet index is validated before the output file is created,
// so a rejected index never leaves an empty artifact behind.
func Run(ctx context.Context, input, output string, opts Options) (Result, error) {
	index := opts.SheetIndex
	if index == 0 {
		index = 1
	}

	wb, err := openWorkbook(input, opts.JSONLines)
	if err != nil {
		return Result{}, err
	}
	names := wb.SheetNames()
	if err := sheet.CheckIndex(index, len(names)); err != nil {
		wb.Close()
		return Result{}, err
	}
	rows, err := wb.OpenSheet(index)
	if err != nil {
		wb.Close()
		return Result{}, err
	}

	res := Result{SheetName: names[index-1]}
	var werr error
	if opts.JSONLines {
		res.Rows, werr = writeJSONLines(ctx, rows, wb.Date1904(), output)
	} else {
		res.Rows, werr = writeWorkbook(ctx, rows, index, wb.Date1904(), output)
	}
	rows.Close()
	wb.Close()
	if werr != nil {
		return Result{}, werr
	}
	if res.Rows >= freeMemoryRowThreshold {
		debug.FreeOSMemory()
	}
	return res, nil
}

// openWorkbook picks a decoder by extension. Unknown or missing extensions
// try the binary decoder first and fall back to XML. Spreadsheet re-encoding
// accepts binary input only.
func openWorkbook(input string, jsonLines bool) (sheet.Workbook, error) {
	if !jsonLines {
		return xlsb.Open(input)
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".xlsb":
		return xlsb.Open(input)
	case ".xlsx", ".xlsm", ".xltx":
		return xlsx.Open(input)
	default:
		wb, berr := xlsb.Open(input)
		if berr == nil {
			return wb, nil
		}
		wb2, xerr := xlsx.Open(input)
		if xerr == nil {
			return wb2, nil
		}
		return nil, fmt.Errorf("open %s: not a readable workbook (binary: %v; xml: %v)",
			filepath.Base(input), berr, xerr)
	}
}
