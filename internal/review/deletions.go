package review

import (
	"strings"

	"sieve/internal/fileutil"
)

// FormatDeletionList renders one path per line.
func FormatDeletionList(paths []string) []byte {
	if len(paths) == 0 {
		return nil
	}
	return []byte(strings.Join(paths, "\n") + "\n")
}

// WriteDeletionList atomically writes paths to dest.
func WriteDeletionList(dest string, paths []string) error {
	return fileutil.WriteFileAtomic(dest, FormatDeletionList(paths), 0o644)
}
