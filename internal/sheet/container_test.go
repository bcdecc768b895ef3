package sheet

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writePackage(t *testing.T, parts map[string]string) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "package.zip")
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
		t.Fatalf("close file: %v", err)
	}
	return target
}

func TestContainerParts(t *testing.T) {
	pkg := writePackage(t, map[string]string{
		"xl/workbook.bin": "payload",
	})
	c, err := OpenContainer(pkg)
	if err != nil {
		t.Fatalf("open container: %v", err)
	}
	defer c.Close()

	if !c.HasPart("xl/workbook.bin") {
		t.Error("workbook part should exist")
	}
	if c.HasPart("xl/styles.bin") {
		t.Error("styles part should not exist")
	}

	rc, err := c.Part("xl/workbook.bin")
	if err != nil {
		t.Fatalf("open part: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read part: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("part payload = %q", data)
	}

	if _, err := c.Part("xl/missing.bin"); err == nil {
		t.Error("missing part should fail")
	}
}

func TestContainerRels(t *testing.T) {
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://example/worksheet" Target="worksheets/sheet1.bin"/>
  <Relationship Id="rId2" Type="http://example/styles" Target="/xl/styles.bin"/>
</Relationships>`
	pkg := writePackage(t, map[string]string{
		"xl/workbook.bin":            "wb",
		"xl/_rels/workbook.bin.rels": rels,
	})
	c, err := OpenContainer(pkg)
	if err != nil {
		t.Fatalf("open container: %v", err)
	}
	defer c.Close()

	got, err := c.Rels("xl/workbook.bin")
	if err != nil {
		t.Fatalf("rels: %v", err)
	}
	if got["rId1"] != "xl/worksheets/sheet1.bin" {
		t.Errorf("relative target resolved to %q", got["rId1"])
	}
	if got["rId2"] != "xl/styles.bin" {
		t.Errorf("absolute target resolved to %q", got["rId2"])
	}
}

func TestContainerRelsMissingFile(t *testing.T) {
	pkg := writePackage(t, map[string]string{"xl/workbook.bin": "wb"})
	c, err := OpenContainer(pkg)
	if err != nil {
		t.Fatalf("open container: %v", err)
	}
	defer c.Close()

	got, err := c.Rels("xl/workbook.bin")
	if err != nil {
		t.Fatalf("rels: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no relationships, got %v", got)
	}
}
