// Package services defines shared utilities consumed by the external tool
// integrations.
//
// Structured error markers plus the Wrap helper let ingestion and review code
// classify collaborator failures (missing binary, timeout, undecodable file)
// without string matching, and pick an operator hint for the warning that
// records each skipped file.
package services
