// Package services provides the shared error taxonomy and context annotation
// helpers used across pipeline components. Errors are tagged with sentinel
// markers so callers can classify failures (retryable, entry-fatal, run-fatal)
// without string matching.
package services
