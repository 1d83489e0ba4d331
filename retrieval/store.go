package retrieval

import "context"

// Chunk is one stored unit of document text as read from the chunk store.
// Chunks are read-only from the engine's perspective.
type Chunk struct {
	// DocID identifies the owning document.
	DocID string

	// ChunkID is the chunk's ordinal position within the document.
	ChunkID int

	// Text is the raw chunk body. The store guarantees it non-empty for
	// every row it hands to the engine.
	Text string

	// PredictedLabel is the ingestion-time topic label, empty when absent.
	PredictedLabel string

	// Metadata is the free-form key-value metadata, nil when absent.
	Metadata map[string]any

	// Rank is the relevance rank reported by the ranked full-text
	// strategy, 0 for strategies without a rank function.
	Rank float64

	// Source is the citation string for this row, filled by the store.
	Source string
}

// ChunkStore is the relational chunk store consumed by the engine. All
// methods are scoped to one configured table. Implementations report
// unavailability as an error; the engine treats every error as "this
// strategy produced nothing" and cascades.
type ChunkStore interface {
	// SearchFullText matches chunks whose text satisfies a full-text
	// predicate against the query, ordered descending by relevance rank.
	SearchFullText(ctx context.Context, query string, limit int) ([]Chunk, error)

	// SearchFullTextAny matches chunks containing ANY of the given terms,
	// ordered descending by relevance rank. Alias widening uses it: where
	// SearchFullText requires every query term, one alias term is enough
	// here, so adding terms can only grow the result set.
	SearchFullTextAny(ctx context.Context, terms []string, limit int) ([]Chunk, error)

	// SearchSubstring performs a case-insensitive contains search over
	// the raw chunk text.
	SearchSubstring(ctx context.Context, query string, limit int) ([]Chunk, error)

	// SearchLabelMeta matches the predicted topic label or the serialized
	// metadata, case-insensitively.
	SearchLabelMeta(ctx context.Context, query string, limit int) ([]Chunk, error)

	// Sample fetches up to limit chunks with no further filtering. The
	// fuzzy fallback and the alias builder use it as their bounded corpus
	// sample.
	Sample(ctx context.Context, limit int) ([]Chunk, error)
}
