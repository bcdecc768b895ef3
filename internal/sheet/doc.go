// Package sheet defines the decoder-neutral spreadsheet model shared by the
// format-specific readers and the conversion engine.
//
// A Workbook enumerates worksheets and opens one at a time for streaming. A
// RowReader yields rows in source order without materializing the sheet, so
// memory stays bounded by a single row plus the shared-string table. The
// engine only depends on these interfaces, which also lets tests feed it
// synthetic workbooks.
package sheet
