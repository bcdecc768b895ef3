package sheet

import "fmt"

// Kind classifies a decoded cell value.
type Kind int

const (
	// KindBlank marks a cell with no stored value. It is the zero Kind so a
	// zero Cell is a blank cell.
	KindBlank Kind = iota
	// KindBool holds a boolean.
	KindBool
	// KindNumber holds a numeric value, possibly styled as a date.
	KindNumber
	// KindText holds a string.
	KindText
	// KindError holds a spreadsheet error literal such as #DIV/0!.
	KindError
)

// Cell is a single decoded cell. The value field selected by Kind is
// meaningful, the others hold zero values.
type Cell struct {
	Kind   Kind
	Bool   bool
	Number float64
	Text   string

	// DateStyled marks a KindNumber cell whose number format renders as a
	// date or time. The number itself stays a raw serial value.
	DateStyled bool
}

// Row is one worksheet row. Cells are ordered by column starting at the
// first column, with gaps filled by blank cells.
type Row []Cell

// Workbook is an open spreadsheet container.
type Workbook interface {
	// SheetNames returns the worksheet names in workbook order.
	SheetNames() []string
	// Date1904 reports whether serial date numbers count from the 1904
	// epoch instead of 1900.
	Date1904() bool
	// OpenSheet opens the worksheet at the given 1-based index for
	// streaming reads.
	OpenSheet(index int) (RowReader, error)
	// Close releases the container.
	Close() error
}

// RowReader streams worksheet rows in source order.
type RowReader interface {
	// Next returns the next row, or io.EOF once the sheet is exhausted.
	// Rows between two occupied rows come back as blank rows so row
	// positions are preserved.
	Next() (Row, error)
	// Close releases the reader without draining it.
	Close() error
}

// CheckIndex validates a 1-based worksheet index against a workbook's sheet
// count.
func CheckIndex(index, count int) error {
	if index < 1 || index > count {
		return fmt.Errorf("sheet index %d out of range (1..%d)", index, count)
	}
	return nil
}
