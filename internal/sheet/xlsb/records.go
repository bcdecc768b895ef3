package xlsb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Record type identifiers for the binary workbook parts. Only the records
// the reader acts on are listed, everything else is skipped by payload
// length.
const (
	recRowHdr         = 0x00
	recCellBlank      = 0x01
	recCellRK         = 0x02
	recCellError      = 0x03
	recCellBool       = 0x04
	recCellReal       = 0x05
	recCellSt         = 0x06
	recCellIsst       = 0x07
	recFmlaString     = 0x08
	recFmlaNum        = 0x09
	recFmlaBool       = 0x0A
	recFmlaError      = 0x0B
	recSSTItem        = 0x13
	recFmt            = 0x2C
	recXF             = 0x2F
	recBundleBegin    = 0x8F
	recBundleEnd      = 0x90
	recBeginSheetData = 0x91
	recEndSheetData   = 0x92
	recWsDim          = 0x94
	recWbProp         = 0x99
	recBundleSh       = 0x9C
	recBeginSst       = 0x9F
	recBeginCellXFs   = 617
	recEndCellXFs     = 618
)

// recordReader frames a binary part into records. Record ids are one or two
// bytes and payload lengths one to four bytes, each carrying seven value
// bits with the high bit marking a continuation byte.
type recordReader struct {
	r   *bufio.Reader
	buf []byte
}

func newRecordReader(r io.Reader) *recordReader {
	return &recordReader{r: bufio.NewReaderSize(r, 1<<16)}
}

// next returns the next record id and payload. The payload slice is reused
// between calls. io.EOF at a record boundary ends the part.
func (rr *recordReader) next() (uint16, []byte, error) {
	id, err := rr.readID()
	if err != nil {
		return 0, nil, err
	}
	size, err := rr.readSize()
	if err != nil {
		return 0, nil, clipEOF(err)
	}
	if cap(rr.buf) < size {
		rr.buf = make([]byte, size)
	}
	payload := rr.buf[:size]
	if _, err := io.ReadFull(rr.r, payload); err != nil {
		return 0, nil, clipEOF(err)
	}
	return id, payload, nil
}

func (rr *recordReader) readID() (uint16, error) {
	b0, err := rr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b0&0x80 == 0 {
		return uint16(b0), nil
	}
	b1, err := rr.r.ReadByte()
	if err != nil {
		return 0, clipEOF(err)
	}
	return uint16(b0&0x7F) | uint16(b1&0x7F)<<7, nil
}

func (rr *recordReader) readSize() (int, error) {
	size := 0
	for shift := 0; shift < 28; shift += 7 {
		b, err := rr.r.ReadByte()
		if err != nil {
			return 0, err
		}
		size |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
	}
	return size, nil
}

// clipEOF maps a clean EOF inside a record to io.ErrUnexpectedEOF so callers
// can tell a truncated part from an exhausted one.
func clipEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// cursor walks a record payload. Reads past the end latch an error instead
// of panicking on malformed records.
type cursor struct {
	b   []byte
	off int
	err error
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.b) {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out
}

func (c *cursor) u8() byte {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) f64() float64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// wideString reads an XLWideString, a 32-bit character count followed by
// UTF-16LE code units.
func (c *cursor) wideString(dec *encoding.Decoder) string {
	n := int(c.u32())
	raw := c.take(n * 2)
	if raw == nil {
		return ""
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		c.err = fmt.Errorf("decode utf-16 string: %w", err)
		return ""
	}
	return string(out)
}

// nullableWideString reads an XLNullableWideString where a character count
// of 0xFFFFFFFF means absent.
func (c *cursor) nullableWideString(dec *encoding.Decoder) string {
	n := c.u32()
	if c.err != nil || n == 0xFFFFFFFF {
		return ""
	}
	raw := c.take(int(n) * 2)
	if raw == nil {
		return ""
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		c.err = fmt.Errorf("decode utf-16 string: %w", err)
		return ""
	}
	return string(out)
}

func utf16Decoder() *encoding.Decoder {
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
}

// rkValue decodes an RkNumber. Bit 0 selects a hundredth divisor and bit 1
// selects a 30-bit integer over a truncated float encoding.
func rkValue(raw uint32) float64 {
	var v float64
	if raw&0x2 != 0 {
		v = float64(int32(raw) >> 2)
	} else {
		v = math.Float64frombits(uint64(raw&0xFFFFFFFC) << 32)
	}
	if raw&0x1 != 0 {
		v /= 100
	}
	return v
}

var errorLiterals = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
	0x2B: "#GETTING_DATA",
}

func errorLiteral(code byte) string {
	if s, ok := errorLiterals[code]; ok {
		return s
	}
	return fmt.Sprintf("#ERR:%#02x", code)
}
