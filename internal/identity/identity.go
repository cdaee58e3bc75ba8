// Package identity derives the content-identity token embedded in catalogue
// filenames.
//
// Files in the collection carry a 32-character hexadecimal digest in their
// name (for example "Artist - Title.3f2a...9c.mka"). The token survives moves
// and copies, so ingestion and review use it to recognise the same physical
// file wherever it appears.
package identity

import (
	"path/filepath"
	"strings"
)

// TokenLength is the number of hex digits in an identity token.
const TokenLength = 32

// Extract scans the basename of path for the first run of exactly
// TokenLength hex digits bounded by non-hex characters or the string edges,
// and returns it lower-cased. Longer hex runs do not match.
func Extract(path string) (string, bool) {
	base := basename(path)
	run := 0
	for i := 0; i <= len(base); i++ {
		if i < len(base) && isHex(base[i]) {
			run++
			continue
		}
		if run == TokenLength {
			return strings.ToLower(base[i-run : i]), true
		}
		run = 0
	}
	return "", false
}

// Key returns the grouping key for path: its identity token when present,
// otherwise the path itself.
func Key(path string) string {
	if token, ok := Extract(path); ok {
		return token
	}
	return path
}

// IsToken reports whether s is a bare identity token.
func IsToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

// basename handles both separators so catalogues written on Windows resolve
// the same way on Linux.
func basename(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return filepath.Base(path)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
