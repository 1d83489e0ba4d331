package retrieval

import (
	"fmt"
	"strings"
)

const keywordMatchScore = 0.1

// keywordFallback produces the last-resort static responses keyed by domain
// vocabulary. It never returns an empty list and never fails: worst case is
// a single generic pseudo-result telling the downstream LLM to answer from
// general knowledge.
type keywordFallback struct {
	domain  DomainConfig
	kbLabel string
}

func newKeywordFallback(domain DomainConfig, kbLabel string) *keywordFallback {
	return &keywordFallback{domain: domain, kbLabel: kbLabel}
}

// respond returns one pseudo-result per domain keyword found in the query,
// or the generic no-match result, capped to topK.
func (k *keywordFallback) respond(query string, topK int) []Result {
	queryLower := strings.ToLower(query)

	var results []Result
	for _, kw := range k.domain.KeywordsFor(k.kbLabel) {
		if !strings.Contains(queryLower, kw) {
			continue
		}
		results = append(results, Result{
			Text: fmt.Sprintf("User asked about %q, but relevant context was not found. "+
				"Please answer directly using general legal reasoning.", kw),
			PredictedLabel: IntentGeneral,
			Source:         string(ModeKeywordFallback),
			Score:          keywordMatchScore,
			Mode:           ModeKeywordFallback,
		})
	}

	if len(results) == 0 {
		results = []Result{{
			Text: fmt.Sprintf("No exact legal context found for: %s. "+
				"Please answer briefly and accurately.", query),
			PredictedLabel: IntentGeneral,
			Source:         string(ModeKeywordFallback),
			Score:          0.0,
			Mode:           ModeKeywordFallback,
		}}
	}
	return capResults(results, topK)
}
