package matcher

import (
	"math"

	"github.com/hbollon/go-edlib"
)

// MaxScore is the score of two identical signatures.
const MaxScore = 100

// Score is the Levenshtein similarity of two signatures scaled to 0..100 and
// rounded to the nearest integer. It is symmetric, and identical inputs
// score MaxScore.
func Score(a, b string) int {
	longest := max(len(a), len(b))
	if longest == 0 {
		return MaxScore
	}
	if a == b {
		return MaxScore
	}
	distance := edlib.LevenshteinDistance(a, b)
	ratio := 1 - float64(distance)/float64(longest)
	return int(math.Round(ratio * MaxScore))
}

// Accept applies both inclusive acceptance bounds.
func Accept(score int, threshold float64, durationA, durationB, tolerance float64) bool {
	if float64(score) < threshold {
		return false
	}
	return math.Abs(durationA-durationB) <= tolerance
}
