// Package logs provides offset-based log file tailing shared by the CLI and
// the daemon control socket.
//
// It reads log files with memory bounded by the requested line count,
// supports negative offsets for "last N lines", and polls for new lines in
// follow mode under a caller-supplied wait budget. The returned offset is
// always safe to resume from, so `sheetmill logs --follow` can chain requests
// across the control socket without losing or duplicating lines.
package logs
