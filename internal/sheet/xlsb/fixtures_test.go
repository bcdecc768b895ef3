package xlsb

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// partBuilder assembles a binary part record by record using the same
// framing the reader expects.
type partBuilder struct {
	buf bytes.Buffer
}

func (b *partBuilder) add(id uint16, payload []byte) *partBuilder {
	if id < 0x80 {
		b.buf.WriteByte(byte(id))
	} else {
		b.buf.WriteByte(byte(id&0x7F) | 0x80)
		b.buf.WriteByte(byte(id >> 7))
	}
	size := len(payload)
	for {
		c := byte(size & 0x7F)
		size >>= 7
		if size > 0 {
			b.buf.WriteByte(c | 0x80)
		} else {
			b.buf.WriteByte(c)
			break
		}
	}
	b.buf.Write(payload)
	return b
}

func (b *partBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// fieldBuilder assembles a single record payload.
type fieldBuilder struct {
	b []byte
}

func fields() *fieldBuilder {
	return &fieldBuilder{}
}

func (f *fieldBuilder) u8(v byte) *fieldBuilder {
	f.b = append(f.b, v)
	return f
}

func (f *fieldBuilder) u16(v uint16) *fieldBuilder {
	f.b = binary.LittleEndian.AppendUint16(f.b, v)
	return f
}

func (f *fieldBuilder) u32(v uint32) *fieldBuilder {
	f.b = binary.LittleEndian.AppendUint32(f.b, v)
	return f
}

func (f *fieldBuilder) f64(v float64) *fieldBuilder {
	f.b = binary.LittleEndian.AppendUint64(f.b, math.Float64bits(v))
	return f
}

func (f *fieldBuilder) pad(n int) *fieldBuilder {
	f.b = append(f.b, make([]byte, n)...)
	return f
}

func (f *fieldBuilder) wide(s string) *fieldBuilder {
	units := utf16.Encode([]rune(s))
	f.u32(uint32(len(units)))
	for _, u := range units {
		f.b = binary.LittleEndian.AppendUint16(f.b, u)
	}
	return f
}

func (f *fieldBuilder) bytes() []byte {
	return f.b
}

// rkInt encodes a 30-bit integer RK value.
func rkInt(v int32, hundredths bool) uint32 {
	raw := uint32(v)<<2 | 0x2
	if hundredths {
		raw |= 0x1
	}
	return raw
}

func writeContainer(t *testing.T, parts map[string][]byte) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "fixture.xlsb")
	f, err := os.Create(target)
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, data := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create part %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write part %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close container: %v", err)
	}
	return target
}

const workbookRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.bin"/>
</Relationships>`
