// Package pipeline sequences a full run: catalog enumeration, checkpoint
// partitioning, scheduled fetching, group aggregation, and report emission.
// The coordinator owns all checkpoint writes; workers only report outcomes.
package pipeline
