// Package services defines shared utilities consumed by the conversion worker
// and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent queue statuses (terminal vs retryable).
//   - Thin abstractions that make command execution against external tools
//     testable.
//
// Use these helpers when wiring new processing logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
