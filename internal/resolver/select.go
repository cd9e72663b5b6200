package resolver

import "strings"

// sizeHints are substrings that mark a src as a "large" rendition.
var sizeHints = []string{"large", "big"}

// Score returns the penalty for c. Each rule adds one point:
// a size hint anywhere in the src, and a twitter source. The result
// is always in [0, 2].
func Score(c Candidate) int {
	score := 0
	if hasSizeHint(c.Src) {
		score++
	}
	if c.SourceType == SourceTwitter {
		score++
	}
	return score
}

func hasSizeHint(src string) bool {
	for _, hint := range sizeHints {
		if strings.Contains(src, hint) {
			return true
		}
	}
	return false
}

// Choose picks the main candidate and returns its index, or -1 when there
// are none. A single candidate is taken as-is without scoring. Otherwise
// every candidate is scored in place and the lowest score wins, earliest
// candidate first on ties.
func Choose(candidates []Candidate) int {
	switch len(candidates) {
	case 0:
		return -1
	case 1:
		return 0
	}

	best := -1
	for i := range candidates {
		candidates[i].Score += Score(candidates[i])
		if best < 0 || candidates[i].Score < candidates[best].Score {
			best = i
		}
	}
	return best
}
