// Package resolve locates uploaded source files from the path hints recorded
// in the job table. Hints accumulated across deployment generations, so one
// reference is expanded into an ordered candidate list spanning the current
// repository layout, configured legacy roots, and the upload directory, and
// the first candidate that exists wins.
package resolve
