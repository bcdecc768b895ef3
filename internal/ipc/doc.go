// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between queue rows and their wire representations. The server wraps the
// daemon facade and signals the run loop when a client requests shutdown; the
// client dials with a short timeout so CLI commands fail fast when the daemon
// is offline.
package ipc
