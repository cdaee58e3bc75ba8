// Package matcher compares every unordered pair of catalogued signatures and
// streams the pairs that look like the same recording.
//
// Pairs are enumerated lazily in index order and handed to a fixed pool of
// scoring workers in batches. Workers only read the record slice; accepted
// pairs travel back over a channel to the calling goroutine, which is the
// single writer of the candidate sink. Cancelling the context stops the
// producer, lets in-flight batches finish, and leaves the sink holding a
// valid partial result.
package matcher
