// Package signature owns the catalogue of acoustic signatures: the canonical
// encoding of raw chromaprint words, the append-only CSV store that maps each
// file path to its signature and duration, and the ingester that fills it.
//
// The store is durable after every append, so a crash leaves every finished
// record on disk and a rerun skips it. A lock file next to the store keeps a
// writer (ingest) and readers (match, review) from overlapping; readers take a
// shared lock and hold it for their whole run, so the matcher always works on
// a stable snapshot.
//
// Paths are compared as exact strings. No normalization is applied, so a
// renamed file is a new entry; ingestion can still skip the fpcalc call when
// the new name carries an identity token already in the store.
package signature
