// Package review turns the candidate list into something an operator can
// decide on.
//
// Correlate sorts candidates deterministically and annotates each side with
// its identity key: the filename's identity token, or the path when there is
// none. Marks are stored per key, so marking a file once selects it in every
// pair it appears in, and the deletion list names each marked file once.
// Decisions persist in a small SQLite database so they survive re-running
// match and export.
package review
