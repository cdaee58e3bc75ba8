// Package main hosts the sieve CLI entrypoint and command graph.
//
// The Cobra command tree walks the pipeline in order: ingest fingerprints
// files into the signature store, match writes the candidate list, and the
// review commands export the review page, record marks, and produce the
// deletion list. Configuration resolution and logger setup live here so the
// internal packages stay free of CLI concerns.
package main
