// Package dedup fingerprints downloaded bytes and tracks which fingerprints
// already produced an artifact, so bit-identical assets fetched under
// different names are written exactly once.
package dedup
