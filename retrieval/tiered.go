package retrieval

import (
	"context"

	"go.uber.org/zap"
)

// fetchHeadroom multiplies topK for the per-strategy fetch cap so the
// relevance filter has rows to discard.
const fetchHeadroom = 3

// strategyOutcome is the tagged result of one search strategy. Cascading is
// a deliberate state transition on this value, never exception suppression.
type strategyOutcome int

const (
	outcomeRows strategyOutcome = iota
	outcomeEmpty
	outcomeFailure
)

// tieredRetriever executes the three cascading relational strategies.
// A strategy is only tried when the previous one produced zero rows or
// failed; the first strategy with rows wins.
type tieredRetriever struct {
	store  ChunkStore
	logger *zap.Logger
}

func newTieredRetriever(store ChunkStore, logger *zap.Logger) *tieredRetriever {
	return &tieredRetriever{
		store:  store,
		logger: logger.With(zap.String("component", "tiered_retriever")),
	}
}

type searchStrategy struct {
	mode Mode
	run  func(ctx context.Context, query string, limit int) ([]Chunk, error)
}

// search cascades fts -> ilike -> label_meta on the raw query and returns
// the first strategy's rows as scored results, sorted descending. When the
// raw query misses every tier and alias expansion contributed tokens, one
// extra ranked pass ORs the expanded tokens. An empty slice means nothing
// matched; errors never propagate.
//
// The raw query drives the tiers: the full-text predicate ANDs its terms
// and the substring predicate needs a literal occurrence, so feeding them
// the expanded token string would only shrink their result sets. Aliases
// widen exclusively through the OR pass.
func (t *tieredRetriever) search(ctx context.Context, query ExpandedQuery, topK int) []Result {
	strategies := []searchStrategy{
		{ModeFullText, t.store.SearchFullText},
		{ModeSubstring, t.store.SearchSubstring},
		{ModeLabelMeta, t.store.SearchLabelMeta},
	}

	limit := topK * fetchHeadroom
	for _, strat := range strategies {
		results, outcome := t.runStrategy(ctx, strat, query.Raw, limit)
		switch outcome {
		case outcomeRows:
			sortResultsByScore(results)
			return results
		case outcomeEmpty, outcomeFailure:
			continue
		}
	}

	if len(query.Added) > 0 {
		widened := searchStrategy{ModeFullText, func(ctx context.Context, _ string, limit int) ([]Chunk, error) {
			return t.store.SearchFullTextAny(ctx, query.Tokens, limit)
		}}
		results, outcome := t.runStrategy(ctx, widened, query.Raw, limit)
		if outcome == outcomeRows {
			sortResultsByScore(results)
			return results
		}
	}
	return nil
}

func (t *tieredRetriever) runStrategy(ctx context.Context, strat searchStrategy, query string, limit int) ([]Result, strategyOutcome) {
	chunks, err := strat.run(ctx, query, limit)
	if err != nil {
		// Connectivity or query-syntax failures degrade to the next
		// strategy; the caller owns the final fallback.
		t.logger.Warn("search strategy failed",
			zap.String("mode", string(strat.mode)),
			zap.Error(err))
		return nil, outcomeFailure
	}
	if len(chunks) == 0 {
		return nil, outcomeEmpty
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		if c.Text == "" {
			continue
		}
		results = append(results, Result{
			Text:           c.Text,
			PredictedLabel: c.PredictedLabel,
			Source:         c.Source,
			Metadata:       c.Metadata,
			Score:          c.Rank,
			Mode:           strat.mode,
			DocID:          c.DocID,
			ChunkID:        c.ChunkID,
		})
	}
	if len(results) == 0 {
		return nil, outcomeEmpty
	}
	return results, outcomeRows
}
