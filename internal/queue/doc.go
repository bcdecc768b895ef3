// Package queue persists conversion jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, the atomic
// claim that hands a pending job to exactly one worker, terminal transitions
// (ready/failed), stale-claim recovery, and stats queries. Jobs carry only
// the columns the conversion pipeline needs: a source reference, lifecycle
// timestamps, an output reference, and an error message.
//
// The conversion_jobs table may be created and populated by the application
// that enqueues uploads, so the schema statements are idempotent and there is
// no worker-owned version marker.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or columns, update schema.sql and the expected column
// list in CheckHealth.
package queue
