// Command thumbsmith is the CLI for the thumbnail pipeline: run a fetch,
// inspect checkpoint progress, view run reports, and manage configuration.
package main
