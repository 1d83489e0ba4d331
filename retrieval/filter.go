package retrieval

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// minSequenceRatio is the sequence-similarity acceptance threshold.
	minSequenceRatio = 0.35

	// minTokenOverlap is the token-overlap acceptance threshold applied
	// when the sequence ratio alone does not qualify a candidate.
	minTokenOverlap = 0.15
)

// relevanceFilter discards candidates that look unrelated to the query and
// applies the per-intent domain exclusion rules.
type relevanceFilter struct {
	domain DomainConfig
	logger *zap.Logger
}

func newRelevanceFilter(domain DomainConfig, logger *zap.Logger) *relevanceFilter {
	return &relevanceFilter{
		domain: domain,
		logger: logger.With(zap.String("component", "relevance_filter")),
	}
}

// apply returns the relevant subset of candidates, capped to topK with
// score order preserved. A candidate passes when its text is similar enough
// to the query (sequence ratio or token overlap) and it does not contain a
// token excluded for the detected intent.
func (f *relevanceFilter) apply(rawQuery string, expanded ExpandedQuery, candidates []Result, topK int) []Result {
	if len(candidates) == 0 {
		return nil
	}

	intent := f.domain.QueryIntent(rawQuery)
	excluded := f.domain.ExcludedTokens(intent)
	queryLower := strings.ToLower(rawQuery)
	queryTokens := make(map[string]struct{}, len(expanded.Tokens))
	for _, tok := range expanded.Tokens {
		queryTokens[tok] = struct{}{}
	}
	rawTokenCount := len(TokenSet(rawQuery))

	var kept []Result
	for _, cand := range candidates {
		textLower := strings.ToLower(cand.Text)
		if isExcluded(textLower, excluded) {
			continue
		}
		if similarityRatio(queryLower, textLower) >= minSequenceRatio ||
			tokenOverlap(queryTokens, cand.Text, rawTokenCount) > minTokenOverlap {
			kept = append(kept, cand)
		}
	}

	if len(kept) < len(candidates) {
		f.logger.Debug("candidates filtered",
			zap.String("intent", intent),
			zap.Int("in", len(candidates)),
			zap.Int("kept", len(kept)))
	}
	return capResults(kept, topK)
}

func isExcluded(textLower string, excluded []string) bool {
	for _, tok := range excluded {
		if strings.Contains(textLower, tok) {
			return true
		}
	}
	return false
}
