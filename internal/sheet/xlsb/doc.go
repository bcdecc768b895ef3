// Package xlsb reads binary spreadsheet workbooks.
//
// The binary format stores each part as a stream of variable-length records.
// The reader keeps only the shared-string table and the per-format date
// flags in memory and streams worksheet cells record by record, so arbitrarily
// large sheets read in bounded memory.
package xlsb
