// Package convert streams one worksheet of a spreadsheet into a
// line-delimited JSON artifact or a rewritten single-sheet workbook.
//
// Rows flow from a format decoder through value normalization to the output
// writer one at a time, so neither input nor output is ever materialized in
// memory. Numbers keep their exact shortest decimal form, date-styled
// numbers become ISO-8601 text.
package convert
