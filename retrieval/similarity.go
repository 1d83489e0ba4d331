package retrieval

// levenshtein computes the edit distance between a and b with two rolling
// rows, O(len(a)*len(b)) time and O(len(b)) space.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// similarityRatio returns a normalized string-similarity score in [0, 1]:
// 1 minus the edit distance over the longer length. Two empty strings are
// identical.
func similarityRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// nameSimilarity is similarityRatio on the 0-100 scale used by the alias
// threshold.
func nameSimilarity(a, b string) float64 {
	return similarityRatio(a, b) * 100.0
}

// tokenOverlap returns the number of queryTokens that also occur in text,
// divided by denom. The denominator is the raw query's distinct token
// count, not the (possibly expanded) queryTokens size: alias tokens may
// raise the numerator but never the bar.
func tokenOverlap(queryTokens map[string]struct{}, text string, denom int) float64 {
	if denom <= 0 {
		return 0.0
	}
	textTokens := TokenSet(text)
	shared := 0
	for tok := range queryTokens {
		if _, ok := textTokens[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(denom)
}
