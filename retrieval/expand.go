package retrieval

import "strings"

// ExpandedQuery carries a query after alias expansion. Expansion only adds
// tokens; the original tokens always survive in order.
type ExpandedQuery struct {
	// Raw is the query exactly as the caller sent it.
	Raw string

	// Tokens is the normalized token sequence plus any alias tokens.
	Tokens []string

	// Added lists the tokens contributed by alias expansion, if any.
	Added []string
}

// Text joins the expanded tokens into a single search string.
func (e ExpandedQuery) Text() string {
	return strings.Join(e.Tokens, " ")
}

// Expand rewrites a raw query into an expanded token set: the normalized
// query tokens, plus the aliases of every indexed name that appears as a
// substring of the normalized query. Against an empty index this is a pure
// normalization and is idempotent.
func (a *AliasIndex) Expand(query string) ExpandedQuery {
	expanded := ExpandedQuery{
		Raw:    query,
		Tokens: Tokenize(query),
	}

	normalized := NormalizeName(query)
	if normalized == "" {
		return expanded
	}

	have := make(map[string]struct{}, len(expanded.Tokens))
	for _, tok := range expanded.Tokens {
		have[tok] = struct{}{}
	}

	for name, set := range a.snapshot() {
		if !strings.Contains(normalized, name) {
			continue
		}
		for alias := range set {
			for _, tok := range Tokenize(alias) {
				if _, ok := have[tok]; ok {
					continue
				}
				have[tok] = struct{}{}
				expanded.Tokens = append(expanded.Tokens, tok)
				expanded.Added = append(expanded.Added, tok)
			}
		}
	}
	return expanded
}
