package convert

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"sheetmill/internal/sheet"
)

// flushEvery bounds how many rows sit in the output buffer, so a crash
// loses at most this many lines.
const flushEvery = 10000

// taggedNumber wraps a numeric cell so consumers can tell real numbers from
// text that merely looks numeric.
type taggedNumber struct {
	Num string `json:"__num__"`
}

func writeJSONLines(ctx context.Context, rows sheet.RowReader, date1904 bool, output string) (int, error) {
	f, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	count := 0
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			f.Close()
			return count, fmt.Errorf("read row %d: %w", count+1, err)
		}
		record := make([]any, len(row))
		for i, cell := range row {
			record[i] = jsonValue(cell, date1904)
		}
		if err := enc.Encode(record); err != nil {
			f.Close()
			return count, fmt.Errorf("write row %d: %w", count+1, err)
		}
		count++
		if count%flushEvery == 0 {
			if err := bw.Flush(); err != nil {
				f.Close()
				return count, fmt.Errorf("flush output: %w", err)
			}
			if err := ctx.Err(); err != nil {
				f.Close()
				return count, err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return count, fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		return count, fmt.Errorf("close output: %w", err)
	}
	return count, nil
}

// jsonValue maps one cell onto its line format value. Date-styled numbers
// become ISO-8601 text, every other number stays an exact decimal string
// wrapped in a tag object.
func jsonValue(c sheet.Cell, date1904 bool) any {
	switch c.Kind {
	case sheet.KindBool:
		return c.Bool
	case sheet.KindNumber:
		if c.DateStyled {
			if t, err := excelize.ExcelDateToTime(c.Number, date1904); err == nil {
				return isoText(t)
			}
		}
		return taggedNumber{Num: decimalText(c.Number)}
	case sheet.KindText, sheet.KindError:
		return c.Text
	default:
		return nil
	}
}

// decimalText renders a float in plain decimal notation with the fewest
// digits that survive a round-trip.
func decimalText(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isoText renders midnight timestamps as bare dates.
func isoText(t time.Time) string {
	t = t.Round(time.Second)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04:05")
}
