package sheet

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// Container is an OPC zip package holding spreadsheet parts. Both workbook
// formats share this outer structure and only differ in the part payloads.
type Container struct {
	zr *zip.ReadCloser
}

// OpenContainer opens the zip package at path.
func OpenContainer(path string) (*Container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook container: %w", err)
	}
	return &Container{zr: zr}, nil
}

// Part opens a package part by its slash-separated path inside the package.
func (c *Container) Part(name string) (io.ReadCloser, error) {
	f := c.find(name)
	if f == nil {
		return nil, fmt.Errorf("workbook container: missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	return rc, nil
}

// HasPart reports whether the package contains the named part.
func (c *Container) HasPart(name string) bool {
	return c.find(name) != nil
}

func (c *Container) find(name string) *zip.File {
	for _, f := range c.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Close closes the underlying zip file.
func (c *Container) Close() error {
	return c.zr.Close()
}

type relationshipsXML struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// Rels parses the relationship part attached to the named part and returns
// relationship id mapped to the resolved target part path. A part without a
// relationship file yields an empty map.
func (c *Container) Rels(name string) (map[string]string, error) {
	relName := path.Join(path.Dir(name), "_rels", path.Base(name)+".rels")
	out := map[string]string{}
	if !c.HasPart(relName) {
		return out, nil
	}
	rc, err := c.Part(relName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc relationshipsXML
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relName, err)
	}
	base := path.Dir(name)
	for _, rel := range doc.Rels {
		out[rel.ID] = resolveTarget(base, rel.Target)
	}
	return out, nil
}

// resolveTarget turns a relationship target into a package part path.
// Absolute targets are anchored at the package root, relative ones at the
// directory of the part owning the relationship file.
func resolveTarget(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(path.Join(base, target))
}
