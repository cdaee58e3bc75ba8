package signature

import "strings"

const (
	// DefaultLength is the canonical signature length L. It was chosen
	// against chromaprint algorithm 4 output so that most tracks fill it.
	DefaultLength = 3059
	// DigitsPerValue is the number of base-4 digits encoding one 32-bit word.
	DigitsPerValue = 16
	padDigit       = '0'
)

// Canonicalize encodes each raw word as DigitsPerValue base-4 digits, most
// significant first, concatenates them, and truncates or right-pads the result
// with '0' to exactly length characters. Words beyond the first
// ceil(length/16) never influence the result.
func Canonicalize(raw []uint32, length int) string {
	if length <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(length)
	for _, value := range raw {
		for shift := 2 * (DigitsPerValue - 1); shift >= 0; shift -= 2 {
			if b.Len() == length {
				return b.String()
			}
			b.WriteByte('0' + byte(value>>uint(shift)&3))
		}
	}
	for b.Len() < length {
		b.WriteByte(padDigit)
	}
	return b.String()
}

// Fit truncates or right-pads an already canonical signature to length. It
// lets a store written with one length be compared under another.
func Fit(signature string, length int) string {
	switch {
	case length <= 0:
		return ""
	case len(signature) >= length:
		return signature[:length]
	default:
		return signature + strings.Repeat(string(padDigit), length-len(signature))
	}
}

// Valid reports whether s uses only the base-4 alphabet and is non-empty.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '3' {
			return false
		}
	}
	return true
}
