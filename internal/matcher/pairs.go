package matcher

import "iter"

// PairCount returns n(n-1)/2, the number of unordered pairs over n records.
func PairCount(n int) int64 {
	if n < 2 {
		return 0
	}
	return int64(n) * int64(n-1) / 2
}

// Pairs yields every index pair (i, j) with 0 <= i < j < n exactly once,
// without materializing them.
func Pairs(n int) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				if !yield(i, j) {
					return
				}
			}
		}
	}
}
