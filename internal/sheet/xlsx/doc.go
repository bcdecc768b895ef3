// Package xlsx reads XML spreadsheet workbooks.
//
// Worksheet parts stream through a token decoder so large sheets read in
// bounded memory. Cell types and number formats are preserved rather than
// rendered, which keeps numbers, booleans, dates and error literals apart
// for the conversion engine.
package xlsx
