// Package fetch downloads remote assets through a bounded worker pool with
// retry, backoff, and content deduplication, handing each outcome to a
// recorder for checkpointing.
package fetch
