// Package fpcalc mediates access to the chromaprint fpcalc CLI, the external
// fingerprinting collaborator used during ingestion.
//
// It normalizes command invocation (algorithm, overlap, sample length, raw
// output), applies a per-file timeout, parses the DURATION and FINGERPRINT
// lines, and tags failures with the services error markers so ingestion can
// skip a bad file and tell the operator why.
//
// Prefer this package over ad-hoc exec.Command usage when fingerprinting so
// timeout handling and error classification remain consistent.
package fpcalc
