// Package worker drives the background conversion loop.
//
// A Manager claims the oldest pending job from the shared store, locates the
// uploaded workbook on disk, runs the converter subprocess, and records the
// terminal outcome. The store connection is opened fresh for every iteration
// and closed before sleeping, so a wedged worker never pins the database.
// Infrastructure failures are retried with exponential backoff and never
// surface as job failures.
package worker
