package retrieval

import "sort"

// Mode identifies which search strategy produced a result.
type Mode string

const (
	// ModeFullText is the ranked full-text strategy (to_tsvector / ts_rank).
	ModeFullText Mode = "fts"

	// ModeSubstring is the case-insensitive substring strategy.
	ModeSubstring Mode = "ilike"

	// ModeLabelMeta matches against the predicted topic label or serialized
	// metadata.
	ModeLabelMeta Mode = "label_meta"

	// ModeAdaptiveFuzzy is the token-overlap + fuzzy-ratio corpus rescan.
	ModeAdaptiveFuzzy Mode = "adaptive_fuzzy_fallback"

	// ModeKeywordFallback is the last-resort templated response.
	ModeKeywordFallback Mode = "keyword_fallback"
)

// Result is one retrieved chunk, scored and tagged with the strategy that
// produced it. Results are ephemeral: created per query and never persisted
// by this package.
type Result struct {
	// Text is the chunk body. Never empty.
	Text string `json:"text"`

	// PredictedLabel is the topic label assigned at ingestion time.
	// Empty when the ingestion pipeline produced no label.
	PredictedLabel string `json:"predicted_label,omitempty"`

	// Source is a citation string, e.g. "postgres:legal_document_chunks:doc42:7".
	Source string `json:"source"`

	// Metadata is the chunk's free-form metadata (page number etc.).
	// Nil when the chunk carries none.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Score is the strategy-specific relevance score. Rank value for
	// full-text results, fuzzy score for fallback results, 0 otherwise.
	Score float64 `json:"score"`

	// Mode tags the strategy that produced this result.
	Mode Mode `json:"retrieval_mode"`

	// DocID and ChunkID locate the chunk in the store. Empty/zero for
	// keyword-fallback pseudo-results.
	DocID   string `json:"doc_id,omitempty"`
	ChunkID int    `json:"chunk_id,omitempty"`
}

// sortResultsByScore orders results descending by score, stable so equal
// scores keep store order.
func sortResultsByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// capResults truncates results to at most topK entries.
func capResults(results []Result, topK int) []Result {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
