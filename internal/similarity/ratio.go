package similarity

import "math"

// Ratio is the indel similarity 2*LCS / (len(a)+len(b)), computed over runes.
//
// "client" vs "clients" shares a 6-rune subsequence out of 13 runes, so it
// scores 12/13 ≈ 0.923.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	return float64(2*lcsLength(ra, rb)) / float64(total)
}

// Fuzz is Ratio rounded half-to-even to a whole percent, then scaled back to [0,1].
// It reproduces the scores of percentage-based fuzzy matchers, so "client"
// vs "clients" scores exactly 0.92.
func Fuzz(a, b string) float64 {
	return math.RoundToEven(Ratio(a, b)*100) / 100
}

// lcsLength returns the length of the longest common subsequence.
// Uses two rows sized to the shorter input.
func lcsLength(a, b []rune) int {
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for j := 1; j <= len(b); j++ {
		for i := 1; i <= len(a); i++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[i] = prev[i-1] + 1
			case prev[i] >= curr[i-1]:
				curr[i] = prev[i]
			default:
				curr[i] = curr[i-1]
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}
