// Package converter shells out to the conversion subprocess and turns its
// exit status and captured output into the diagnostic text recorded on
// failed jobs.
package converter
